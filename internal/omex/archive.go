// Package omex reads and writes COMBINE archives: a zip container whose
// manifest.xml lists every entry with its format and marks one entry as the
// master document.
package omex

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/beevik/etree"

	"enzymeml/pkg/domain"
)

// Format URIs written to and recognised in the manifest.
const (
	FormatOMEX     = "http://identifiers.org/combine.specifications/omex"
	FormatManifest = "http://identifiers.org/combine.specifications/omex-manifest"
	FormatSBML     = "http://identifiers.org/combine.specifications/sbml"
	FormatTSV      = "https://purl.org/NET/mediatypes/text/tab-separated-values"
	FormatCSV      = "https://purl.org/NET/mediatypes/text/csv"

	manifestNS   = "http://identifiers.org/combine.specifications/omex-manifest"
	manifestPath = "manifest.xml"
)

// Entry is one manifest line.
type Entry struct {
	Location string
	Format   string
	Master   bool
}

// IsSBML reports whether the entry holds an SBML document of any level.
func (e Entry) IsSBML() bool { return strings.HasPrefix(e.Format, FormatSBML) }

// IsTabular reports whether the entry holds a CSV or TSV table.
func (e Entry) IsTabular() bool {
	return strings.Contains(e.Format, "/csv") ||
		strings.Contains(e.Format, "/tab-separated-values") ||
		strings.Contains(e.Format, "/tsv")
}

// Separator is the field separator of a tabular entry.
func (e Entry) Separator() rune {
	if strings.Contains(e.Format, "/csv") {
		return ','
	}
	return '\t'
}

// HasHeader reports whether a tabular entry names its columns. Legacy CSV
// tables are addressed by column index instead.
func (e Entry) HasHeader() bool { return !strings.Contains(e.Format, "/csv") }

// Archive is an in-memory COMBINE archive.
type Archive struct {
	entries []Entry
	files   map[string][]byte
}

// New returns an empty archive.
func New() *Archive {
	return &Archive{files: make(map[string][]byte)}
}

// Read loads an archive from r. Every manifest entry must be present in the
// container.
func Read(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, domain.Structuralf("read archive", "open zip: %v", err)
	}
	contents := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, domain.Structuralf("read archive", "%s: %v", f.Name, err)
		}
		contents[clean(f.Name)] = data
	}

	raw, ok := contents[manifestPath]
	if !ok {
		return nil, domain.Structuralf("read archive", "missing %s", manifestPath)
	}
	entries, err := decodeManifest(raw)
	if err != nil {
		return nil, err
	}

	a := New()
	for _, e := range entries {
		data, ok := contents[clean(e.Location)]
		if !ok {
			return nil, domain.Structuralf("read archive", "manifest entry %s is not in the container", e.Location)
		}
		a.entries = append(a.entries, e)
		a.files[clean(e.Location)] = data
	}
	return a, nil
}

// ReadBytes loads an archive held in memory.
func ReadBytes(data []byte) (*Archive, error) {
	return Read(bytes.NewReader(data), int64(len(data)))
}

// ReadFile loads an archive from disk.
func ReadFile(name string) (*Archive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	return Read(f, info.Size())
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func decodeManifest(raw []byte) ([]Entry, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, domain.Structuralf("read manifest", "%v", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "omexManifest" {
		return nil, domain.Structuralf("read manifest", "root element is not omexManifest")
	}
	var entries []Entry
	for _, el := range root.SelectElements("content") {
		e := Entry{
			Location: el.SelectAttrValue("location", ""),
			Format:   el.SelectAttrValue("format", ""),
			Master:   el.SelectAttrValue("master", "false") == "true",
		}
		if e.Location == "" {
			return nil, domain.Structuralf("read manifest", "content without location")
		}
		if e.Format == FormatOMEX || e.Format == FormatManifest || clean(e.Location) == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Entries lists the content entries in manifest order.
func (a *Archive) Entries() []Entry {
	return append([]Entry(nil), a.entries...)
}

// Master returns the single master entry, which must be SBML.
func (a *Archive) Master() (Entry, error) {
	var masters []Entry
	for _, e := range a.entries {
		if e.Master {
			masters = append(masters, e)
		}
	}
	switch len(masters) {
	case 0:
		return Entry{}, domain.Structuralf("master entry", "archive has no master file")
	case 1:
	default:
		return Entry{}, domain.Structuralf("master entry", "archive has %d master files", len(masters))
	}
	if !masters[0].IsSBML() {
		return Entry{}, domain.Structuralf("master entry", "master %s has format %s, not SBML", masters[0].Location, masters[0].Format)
	}
	return masters[0], nil
}

// TabularEntries lists every CSV or TSV entry.
func (a *Archive) TabularEntries() []Entry {
	var out []Entry
	for _, e := range a.entries {
		if e.IsTabular() {
			out = append(out, e)
		}
	}
	return out
}

// Tabular returns the first CSV or TSV entry.
func (a *Archive) Tabular() (Entry, bool) {
	entries := a.TabularEntries()
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0], true
}

// Bytes returns the content stored at location. "./x" and "x" name the same
// entry.
func (a *Archive) Bytes(location string) ([]byte, error) {
	data, ok := a.files[clean(location)]
	if !ok {
		return nil, &domain.LookupError{Kind: "archive entry", ID: location}
	}
	return data, nil
}

// Add stores data under e.Location, replacing an earlier entry at the same
// location. Adding a second master demotes nothing; Master reports the
// conflict.
func (a *Archive) Add(e Entry, data []byte) error {
	key := clean(e.Location)
	if key == "" || key == manifestPath {
		return fmt.Errorf("invalid archive location %q", e.Location)
	}
	e.Location = "./" + key
	for i := range a.entries {
		if clean(a.entries[i].Location) == key {
			a.entries[i] = e
			a.files[key] = data
			return nil
		}
	}
	a.entries = append(a.entries, e)
	a.files[key] = data
	return nil
}

// WriteTo writes the zip container with a generated manifest.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	if err := writeEntry(zw, manifestPath, a.manifest()); err != nil {
		return cw.n, err
	}
	for _, e := range a.entries {
		key := clean(e.Location)
		if err := writeEntry(zw, key, a.files[key]); err != nil {
			return cw.n, err
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("close archive: %w", err)
	}
	return cw.n, nil
}

// WriteFile writes the archive to name, replacing any existing file.
func (a *Archive) WriteFile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if _, err := a.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (a *Archive) manifest() []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("omexManifest")
	root.CreateAttr("xmlns", manifestNS)
	content := func(location, format string, master bool) {
		el := root.CreateElement("content")
		el.CreateAttr("location", location)
		el.CreateAttr("format", format)
		if master {
			el.CreateAttr("master", "true")
		}
	}
	content(".", FormatOMEX, false)
	content("./"+manifestPath, FormatManifest, false)
	for _, e := range a.entries {
		content(e.Location, e.Format, e.Master)
	}
	doc.Indent(2)
	out, _ := doc.WriteToBytes()
	return out
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func clean(location string) string {
	p := path.Clean("/" + strings.TrimSpace(location))
	return strings.TrimPrefix(p, "/")
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
