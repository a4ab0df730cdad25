package annotation

import (
	"fmt"

	"github.com/beevik/etree"

	"enzymeml/pkg/domain"
)

// SchemaV2 is the current annotation generation. It is the only one written.
type SchemaV2 struct{}

var (
	v2SmallMolecule = Mapping{Tag: "smallMolecule", Fields: []Field{
		{Key: "inchikey", Path: "inchiKey"},
		{Key: "canonical_smiles", Path: "smiles"},
	}}
	v2Protein = Mapping{Tag: "protein", Fields: []Field{
		{Key: "ecnumber", Path: "ecnumber"},
		{Key: "organism", Path: "organism"},
		{Key: "organism_tax_id", Path: "organismTaxId"},
		{Key: "sequence", Path: "sequence"},
	}}
	v2Complex = Mapping{Tag: "complex", Fields: []Field{
		{Key: "participants", Path: "participants", Kind: List},
	}}
	v2Modifier = Mapping{Tag: "modifier", Fields: []Field{
		{Key: "modifier_role", Path: "@modifierRole"},
	}}
	v2Parameter = Mapping{Tag: "parameter", Fields: []Field{
		{Key: "lower_bound", Path: "lowerBound"},
		{Key: "upper_bound", Path: "upperBound"},
		{Key: "stderr", Path: "stdDeviation"},
	}}
	v2Variables = Mapping{Tag: "variables", Fields: []Field{
		{Key: "variables", Path: "variable", Kind: Records, Fields: []Field{
			{Key: "id", Path: "@id"},
			{Key: "name", Path: "@name"},
			{Key: "symbol", Path: "@symbol"},
		}},
	}}
	v2Data = Mapping{Tag: "data", Fields: []Field{
		{Key: "file", Path: "@file"},
		{Key: "measurements", Path: "measurement", Kind: Records, Fields: []Field{
			{Key: "id", Path: "@id"},
			{Key: "name", Path: "@name"},
			{Key: "time_unit", Path: "@timeUnit", Kind: UnitRef},
			{Key: "ph", Path: "conditions/ph/@value"},
			{Key: "temperature", Path: "conditions/temperature/@value"},
			{Key: "temperature_unit", Path: "conditions/temperature/@unit", Kind: UnitRef},
			{Key: "species_data", Path: "speciesData", Kind: Records, Fields: []Field{
				{Key: "species_id", Path: "@species"},
				{Key: "initial", Path: "@value"},
				{Key: "type", Path: "@type"},
				{Key: "unit", Path: "@unit", Kind: UnitRef},
			}},
		}},
	}}
)

func (SchemaV2) Version() Version       { return V2 }
func (SchemaV2) Namespace() string      { return NamespaceV2 }
func (SchemaV2) SmallMolecule() Mapping { return v2SmallMolecule }
func (SchemaV2) Protein() Mapping       { return v2Protein }
func (SchemaV2) Complex() Mapping       { return v2Complex }
func (SchemaV2) Parameter() Mapping     { return v2Parameter }
func (SchemaV2) Modifier() Mapping      { return v2Modifier }
func (SchemaV2) Variables() Mapping     { return v2Variables }
func (SchemaV2) DataOnReactions() bool  { return false }
func (SchemaV2) DataMapping() Mapping   { return v2Data }

// DecodeData reads a <data> element.
func (SchemaV2) DecodeData(el *etree.Element) (*Data, error) {
	if el == nil {
		return nil, nil
	}
	vals := Import(v2Data, el)
	data := &Data{File: vals.String("file")}
	for _, m := range vals.Records("measurements") {
		meta := MeasurementMeta{
			ID:              m.String("id"),
			Name:            m.String("name"),
			TimeUnit:        m.String("time_unit"),
			TemperatureUnit: m.String("temperature_unit"),
		}
		if meta.ID == "" {
			return nil, fmt.Errorf("measurement annotation without id")
		}
		var err error
		if meta.PH, err = m.Float("ph"); err != nil {
			return nil, fmt.Errorf("measurement %s: %w", meta.ID, err)
		}
		if meta.Temperature, err = m.Float("temperature"); err != nil {
			return nil, fmt.Errorf("measurement %s: %w", meta.ID, err)
		}
		for _, s := range m.Records("species_data") {
			initial, err := s.Float("initial")
			if err != nil {
				return nil, fmt.Errorf("measurement %s: %w", meta.ID, err)
			}
			meta.Species = append(meta.Species, SpeciesMeta{
				SpeciesID: s.String("species_id"),
				Initial:   initial,
				Type:      s.String("type"),
				Unit:      s.String("unit"),
			})
		}
		data.Measurements = append(data.Measurements, meta)
	}
	return data, nil
}

// EncodeData renders the measurement annotation of a document pointing at
// file. Nil is returned when there are no measurements.
func (s SchemaV2) EncodeData(file string, ms []domain.Measurement, ids UnitIDs) (*etree.Element, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	recs := make([]Values, 0, len(ms))
	for _, m := range ms {
		rec := Values{
			"id":          m.ID,
			"name":        m.Name,
			"ph":          m.PH,
			"temperature": m.Temperature,
		}
		if m.TemperatureUnit != nil {
			rec["temperature_unit"] = m.TemperatureUnit
		}
		species := make([]Values, 0, len(m.SpeciesData))
		for _, d := range m.SpeciesData {
			if rec["time_unit"] == nil && d.TimeUnit != nil {
				rec["time_unit"] = d.TimeUnit
			}
			entry := Values{
				"species_id": d.SpeciesID,
				"initial":    d.Initial,
				"type":       string(d.DataType),
			}
			if d.DataUnit != nil {
				entry["unit"] = d.DataUnit
			}
			species = append(species, entry)
		}
		rec["species_data"] = species
		recs = append(recs, rec)
	}
	return Export(s.Namespace(), v2Data, Values{"file": file, "measurements": recs}, ids)
}

// EncodeVariables renders a <variables> element, or nil for none.
func (s SchemaV2) EncodeVariables(vars []domain.Variable) (*etree.Element, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	recs := make([]Values, 0, len(vars))
	for _, v := range vars {
		recs = append(recs, Values{"id": v.ID, "name": v.Name, "symbol": v.Symbol})
	}
	return Export(s.Namespace(), v2Variables, Values{"variables": recs}, nil)
}

// DecodeVariables reads the variables of an equation.
func DecodeVariables(s Schema, annotation *etree.Element) []domain.Variable {
	m := s.Variables()
	if m.Empty() {
		return nil
	}
	vals := Import(m, Find(annotation, s.Namespace(), m.Tag))
	var out []domain.Variable
	for _, rec := range vals.Records("variables") {
		out = append(out, domain.Variable{ID: rec.String("id"), Name: rec.String("name"), Symbol: rec.String("symbol")})
	}
	return out
}
