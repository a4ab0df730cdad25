package annotation

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enzymeml/internal/units"
	"enzymeml/pkg/domain"
)

type fixedIDs map[string]string

func (f fixedIDs) IDOf(u *domain.UnitDefinition) (string, error) {
	return f[u.Key()], nil
}

func xmlString(t *testing.T, el *etree.Element) string {
	t.Helper()
	doc := etree.NewDocument()
	doc.SetRoot(el)
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return s
}

func TestExportOmitsEmptyValues(t *testing.T) {
	el, err := Export(NamespaceV2, v2SmallMolecule, Values{"inchikey": "", "canonical_smiles": nil}, nil)
	require.NoError(t, err)
	assert.Nil(t, el)

	el, err = Export(NamespaceV2, v2SmallMolecule, Values{"inchikey": "XLYOFNOQVPJJNP-UHFFFAOYSA-N"}, nil)
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t,
		`<smallMolecule xmlns="https://www.enzymeml.org/v2"><inchiKey>XLYOFNOQVPJJNP-UHFFFAOYSA-N</inchiKey></smallMolecule>`,
		xmlString(t, el))
}

func TestExportImportProtein(t *testing.T) {
	vals := Values{
		"ecnumber":        "1.1.1.1",
		"organism":        "E. coli",
		"organism_tax_id": "562",
		"sequence":        "MTEY",
	}
	el, err := Export(NamespaceV2, v2Protein, vals, nil)
	require.NoError(t, err)

	raw := `<annotation>` + xmlString(t, el) + `</annotation>`
	got, err := ImportString(NamespaceV2, v2Protein, raw)
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestImportStringIgnoresOtherNamespaces(t *testing.T) {
	raw := `<annotation><protein xmlns="http://example.org/other"><sequence>MK</sequence></protein></annotation>`
	got, err := ImportString(NamespaceV2, v2Protein, raw)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestComplexParticipantsRepeat(t *testing.T) {
	el, err := Export(NamespaceV2, v2Complex, Values{"participants": []string{"p0", "s0"}}, nil)
	require.NoError(t, err)
	assert.Len(t, el.SelectElements("participants"), 2)

	got := Import(v2Complex, el)
	assert.Equal(t, []string{"p0", "s0"}, got.Strings("participants"))
}

func TestFloatTreatsNaNAsAbsent(t *testing.T) {
	v := Values{"a": "NaN", "b": "2.5", "c": "x"}
	a, err := v.Float("a")
	require.NoError(t, err)
	assert.Nil(t, a)

	b, err := v.Float("b")
	require.NoError(t, err)
	assert.Equal(t, 2.5, *b)

	_, err = v.Float("c")
	assert.Error(t, err)
}

func TestV2DataRoundTrip(t *testing.T) {
	mM := units.MustParse("mmol / l")
	sec := units.MustParse("s")
	kelvin := units.MustParse("K")
	ids := fixedIDs{mM.Key(): "u1", sec.Key(): "u2", kelvin.Key(): "u3"}

	ph, temp, initial := 7.0, 298.15, 10.0
	ms := []domain.Measurement{{
		ID: "m0", Name: "run", PH: &ph, Temperature: &temp, TemperatureUnit: kelvin,
		SpeciesData: []domain.MeasurementData{{
			SpeciesID: "s0", Initial: &initial, DataType: domain.DataConcentration,
			DataUnit: mM, TimeUnit: sec,
		}},
	}}

	el, err := SchemaV2{}.EncodeData("data.tsv", ms, ids)
	require.NoError(t, err)
	assert.Equal(t, "u2", el.FindElement("measurement").SelectAttrValue("timeUnit", ""))
	assert.Equal(t, "u3", el.FindElement("measurement/conditions/temperature").SelectAttrValue("unit", ""))

	data, err := SchemaV2{}.DecodeData(el)
	require.NoError(t, err)
	assert.Equal(t, "data.tsv", data.File)
	require.Len(t, data.Measurements, 1)
	m := data.Measurements[0]
	assert.Equal(t, "m0", m.ID)
	assert.Equal(t, "u2", m.TimeUnit)
	assert.Equal(t, 7.0, *m.PH)
	assert.Equal(t, 298.15, *m.Temperature)
	assert.Equal(t, []SpeciesMeta{{SpeciesID: "s0", Initial: &initial, Type: "conc", Unit: "u1"}}, m.Species)
	assert.Nil(t, m.Columns)
}

func TestV1DataResolvesFilesAndFormats(t *testing.T) {
	raw := `<data xmlns="http://sbml.org/enzymeml/version2">
  <formats>
    <format id="format0">
      <column type="time" unit="u1" index="0"/>
      <column species="s0" type="conc" unit="u0" index="1" replica="r0" isCalculated="False"/>
    </format>
  </formats>
  <listOfMeasurements>
    <measurement file="file0" id="m0" name="Measurement 0">
      <initConc reactant="s0" value="10.0" unit="u0"/>
      <initConc protein="p0" value="2.5" unit="u0"/>
    </measurement>
  </listOfMeasurements>
  <files>
    <file file="./data/m0.csv" format="format0" id="file0"/>
  </files>
</data>`
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(raw))

	data, err := SchemaV1{}.DecodeData(doc.Root())
	require.NoError(t, err)
	require.Len(t, data.Measurements, 1)
	m := data.Measurements[0]
	assert.Equal(t, "./data/m0.csv", m.File)
	require.Len(t, m.Columns, 2)
	assert.Equal(t, Column{Index: 1, Type: "conc", SpeciesID: "s0", Unit: "u0", Replica: "r0"}, m.Columns[1])
	require.Len(t, m.Species, 2)
	assert.Equal(t, "p0", m.Species[1].SpeciesID)
	assert.Equal(t, 2.5, *m.Species[1].Initial)
}

func TestV1DataRejectsAmbiguousInitConc(t *testing.T) {
	raw := `<data><listOfMeasurements><measurement id="m0"><initConc protein="p0" reactant="s0" value="1" unit="u0"/></measurement></listOfMeasurements></data>`
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(raw))
	_, err := SchemaV1{}.DecodeData(doc.Root())
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	assert.Equal(t, V1, Detect([]string{"http://www.sbml.org/sbml/level3/version2/core", NamespaceV1}).Version())
	assert.Equal(t, V2, Detect([]string{NamespaceV2}).Version())
	assert.Equal(t, V2, Detect(nil).Version())
}

func TestDeclaredNamespaces(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(
		`<sbml xmlns="http://www.sbml.org/sbml/level3/version2/core"><model><annotation><data xmlns="`+NamespaceV1+`"/></annotation></model></sbml>`))
	assert.Equal(t, []string{"http://www.sbml.org/sbml/level3/version2/core", NamespaceV1}, DeclaredNamespaces(doc.Root()))
}

func TestProvenanceRoundTrip(t *testing.T) {
	p := Provenance{Identifier: "mM", Title: "millimolar", References: []string{"https://identifiers.org/chebi:CHEBI:17234"}}
	ann := etree.NewElement("annotation")
	ann.AddChild(p.Element(MetaID("u0")))

	assert.Equal(t, "#metaid_u0", ann.FindElement("RDF/Description").SelectAttrValue("rdf:about", ""))
	assert.Equal(t, p, ReadProvenance(ann))
	assert.Nil(t, Provenance{}.Element("x"))
}

func TestIdentifiersOrg(t *testing.T) {
	assert.Equal(t, "https://identifiers.org/uniprot:P07327", IdentifiersOrg("uniprot", "P07327"))
	assert.Equal(t, "https://identifiers.org/uniprot:P07327", IdentifiersOrg("uniprot", "uniprot:P07327"))
	assert.Equal(t, "https://example.org/x", IdentifiersOrg("chebi", "https://example.org/x"))
	assert.Empty(t, IdentifiersOrg("chebi", " "))
}
