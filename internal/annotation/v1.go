package annotation

import (
	"fmt"

	"github.com/beevik/etree"
)

// SchemaV1 reads legacy documents. Nothing is ever written with it.
type SchemaV1 struct{}

var (
	v1Reactant = Mapping{Tag: "reactant", Fields: []Field{
		{Key: "inchi", Path: "inchi"},
		{Key: "canonical_smiles", Path: "smiles"},
		{Key: "chebi_id", Path: "chebiID"},
	}}
	v1Protein = Mapping{Tag: "protein", Fields: []Field{
		{Key: "sequence", Path: "sequence"},
		{Key: "ecnumber", Path: "ECnumber"},
		{Key: "uniprot_id", Path: "uniprotID"},
		{Key: "organism", Path: "organism"},
		{Key: "organism_tax_id", Path: "organismTaxID"},
	}}
	v1Complex = Mapping{Tag: "complex", Fields: []Field{
		{Key: "participants", Path: "participant", Kind: List},
	}}
	v1Parameter = Mapping{Tag: "parameter", Fields: []Field{
		{Key: "initial_value", Path: "initialValue"},
		{Key: "upper_bound", Path: "upperBound"},
		{Key: "lower_bound", Path: "lowerBound"},
	}}
	v1Data = Mapping{Tag: "data", Fields: []Field{
		{Key: "formats", Path: "formats/format", Kind: Records, Fields: []Field{
			{Key: "id", Path: "@id"},
			{Key: "columns", Path: "column", Kind: Records, Fields: []Field{
				{Key: "species_id", Path: "@species"},
				{Key: "type", Path: "@type"},
				{Key: "unit", Path: "@unit"},
				{Key: "index", Path: "@index"},
				{Key: "replica", Path: "@replica"},
				{Key: "is_calculated", Path: "@isCalculated"},
			}},
		}},
		{Key: "measurements", Path: "listOfMeasurements/measurement", Kind: Records, Fields: []Field{
			{Key: "id", Path: "@id"},
			{Key: "name", Path: "@name"},
			{Key: "file", Path: "@file"},
			{Key: "init_concs", Path: "initConc", Kind: Records, Fields: []Field{
				{Key: "protein", Path: "@protein"},
				{Key: "reactant", Path: "@reactant"},
				{Key: "value", Path: "@value"},
				{Key: "unit", Path: "@unit"},
			}},
		}},
		{Key: "files", Path: "files/file", Kind: Records, Fields: []Field{
			{Key: "id", Path: "@id"},
			{Key: "location", Path: "@file"},
			{Key: "format", Path: "@format"},
		}},
	}}
)

func (SchemaV1) Version() Version       { return V1 }
func (SchemaV1) Namespace() string      { return NamespaceV1 }
func (SchemaV1) SmallMolecule() Mapping { return v1Reactant }
func (SchemaV1) Protein() Mapping       { return v1Protein }
func (SchemaV1) Complex() Mapping       { return v1Complex }
func (SchemaV1) Parameter() Mapping     { return v1Parameter }
func (SchemaV1) Modifier() Mapping      { return Mapping{} }
func (SchemaV1) Variables() Mapping     { return Mapping{} }
func (SchemaV1) DataOnReactions() bool  { return true }

// DecodeData resolves the file and format indirections of a legacy data
// annotation so that each measurement carries its own location and columns.
func (SchemaV1) DecodeData(el *etree.Element) (*Data, error) {
	if el == nil {
		return nil, nil
	}
	vals := Import(v1Data, el)

	formats := make(map[string][]Column)
	for _, f := range vals.Records("formats") {
		var cols []Column
		for _, c := range f.Records("columns") {
			idx, err := parseIndex(c, "index")
			if err != nil {
				return nil, fmt.Errorf("format %s: %w", f.String("id"), err)
			}
			cols = append(cols, Column{
				Index:        idx,
				Type:         c.String("type"),
				SpeciesID:    c.String("species_id"),
				Unit:         c.String("unit"),
				Replica:      c.String("replica"),
				IsCalculated: c.Bool("is_calculated"),
			})
		}
		formats[f.String("id")] = cols
	}

	type fileRef struct{ location, format string }
	files := make(map[string]fileRef)
	for _, f := range vals.Records("files") {
		files[f.String("id")] = fileRef{location: f.String("location"), format: f.String("format")}
	}

	data := &Data{}
	for _, m := range vals.Records("measurements") {
		meta := MeasurementMeta{ID: m.String("id"), Name: m.String("name")}
		if meta.ID == "" {
			return nil, fmt.Errorf("measurement annotation without id")
		}
		if fileID := m.String("file"); fileID != "" {
			ref, ok := files[fileID]
			if !ok {
				return nil, fmt.Errorf("measurement %s: unknown file %q", meta.ID, fileID)
			}
			cols, ok := formats[ref.format]
			if !ok {
				return nil, fmt.Errorf("measurement %s: unknown format %q", meta.ID, ref.format)
			}
			meta.File = ref.location
			meta.Columns = cols
		}
		for _, c := range m.Records("init_concs") {
			protein, reactant := c.String("protein"), c.String("reactant")
			if (protein == "") == (reactant == "") {
				return nil, fmt.Errorf("measurement %s: initConc needs exactly one of protein or reactant", meta.ID)
			}
			initial, err := c.Float("value")
			if err != nil {
				return nil, fmt.Errorf("measurement %s: %w", meta.ID, err)
			}
			if initial == nil {
				zero := 0.0
				initial = &zero
			}
			meta.Species = append(meta.Species, SpeciesMeta{
				SpeciesID: protein + reactant,
				Initial:   initial,
				Type:      "conc",
				Unit:      c.String("unit"),
			})
		}
		data.Measurements = append(data.Measurements, meta)
	}
	return data, nil
}
