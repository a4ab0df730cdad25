package annotation

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// Namespaces of the two annotation generations.
const (
	NamespaceV1 = "http://sbml.org/enzymeml/version2"
	NamespaceV2 = "https://www.enzymeml.org/v2"
)

// Version identifies an annotation generation.
type Version int

const (
	V1 Version = iota + 1
	V2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	}
	return "unknown"
}

// Schema is implemented by each annotation generation. A document is read
// with exactly one Schema, chosen by Detect.
type Schema interface {
	Version() Version
	Namespace() string
	SmallMolecule() Mapping
	Protein() Mapping
	Complex() Mapping
	Parameter() Mapping
	Modifier() Mapping
	Variables() Mapping
	// DataOnReactions reports whether the measurement annotation hangs off
	// listOfReactions instead of the model.
	DataOnReactions() bool
	DecodeData(el *etree.Element) (*Data, error)
}

// Detect picks the schema from the namespace URIs declared in a model. When
// neither generation is declared the current schema is used; its annotations
// will simply not be found.
func Detect(uris []string) Schema {
	for _, uri := range uris {
		switch uri {
		case NamespaceV1:
			return SchemaV1{}
		case NamespaceV2:
			return SchemaV2{}
		}
	}
	return SchemaV2{}
}

// DeclaredNamespaces lists every namespace URI declared anywhere under root.
func DeclaredNamespaces(root *etree.Element) []string {
	seen := make(map[string]struct{})
	var out []string
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, a := range el.Attr {
			if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
				if _, ok := seen[a.Value]; !ok {
					seen[a.Value] = struct{}{}
					out = append(out, a.Value)
				}
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Data is the version neutral form of the measurement annotation.
type Data struct {
	// File is the companion table of every measurement (v2).
	File         string
	Measurements []MeasurementMeta
}

// MeasurementMeta describes one measurement. Unit fields hold wire ids.
type MeasurementMeta struct {
	ID              string
	Name            string
	TimeUnit        string
	PH              *float64
	Temperature     *float64
	TemperatureUnit string
	// File overrides Data.File (v1 stores one file per measurement).
	File    string
	Species []SpeciesMeta
	// Columns describe a header-less table by index (v1). Nil means the
	// table has a header naming species columns.
	Columns []Column
}

// SpeciesMeta is the per-species metadata of a measurement.
type SpeciesMeta struct {
	SpeciesID string
	Initial   *float64
	Type      string
	Unit      string
}

// Column maps a column of a header-less table.
type Column struct {
	Index        int
	Type         string
	SpeciesID    string
	Unit         string
	Replica      string
	IsCalculated bool
}

func parseIndex(v Values, key string) (int, error) {
	s := v.String(key)
	if s == "" {
		return 0, fmt.Errorf("column without %s", key)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("column %s %q: %w", key, s, err)
	}
	return n, nil
}
