package domain

import (
	"errors"
	"testing"
)

func TestUnitEqualityIgnoresIdentity(t *testing.T) {
	a := &UnitDefinition{ID: "mM", Name: "mmol / l", BaseUnits: []BaseUnit{
		{Kind: UnitMole, Exponent: 1, Scale: -3},
		{Kind: UnitLitre, Exponent: -1},
	}}
	b := &UnitDefinition{ID: "other", BaseUnits: []BaseUnit{
		{Kind: UnitMole, Exponent: 1, Scale: -3, Multiplier: 1},
		{Kind: UnitLitre, Exponent: -1},
	}}
	if !a.Equal(b) {
		t.Fatalf("expected structural equality, keys %q vs %q", a.Key(), b.Key())
	}
	b.BaseUnits[1].Exponent = 1
	if a.Equal(b) {
		t.Fatalf("expected inequality after exponent change")
	}
	var nilUnit *UnitDefinition
	if !nilUnit.Equal(nil) || nilUnit.Equal(a) {
		t.Fatalf("nil units compare equal only to nil")
	}
}

func TestAddParameterIsIdempotentByName(t *testing.T) {
	var doc Document
	if _, added := doc.AddParameter(Parameter{ID: "k", Name: "k"}); !added {
		t.Fatalf("expected first add to succeed")
	}
	stored, added := doc.AddParameter(Parameter{ID: "k2", Name: "k"})
	if added {
		t.Fatalf("expected duplicate name to be ignored")
	}
	if stored.ID != "k" || len(doc.Parameters) != 1 {
		t.Fatalf("unexpected parameters %+v", doc.Parameters)
	}
}

func TestAcceptVisitsUnitsInDocumentOrder(t *testing.T) {
	ml := &UnitDefinition{Name: "ml", BaseUnits: []BaseUnit{{Kind: UnitLitre, Exponent: 1, Scale: -3}}}
	mM := &UnitDefinition{Name: "mM", BaseUnits: []BaseUnit{{Kind: UnitMole, Exponent: 1, Scale: -3}, {Kind: UnitLitre, Exponent: -1}}}
	s := &UnitDefinition{Name: "s", BaseUnits: []BaseUnit{{Kind: UnitSecond, Exponent: 1}}}
	perS := &UnitDefinition{Name: "1 / s", BaseUnits: []BaseUnit{{Kind: UnitSecond, Exponent: -1}}}
	doc := Document{
		Vessels:    []Vessel{{ID: "v0", Unit: ml}},
		Parameters: []Parameter{{ID: "k", Unit: perS}},
		Measurements: []Measurement{{ID: "m0", SpeciesData: []MeasurementData{
			{SpeciesID: "s0", DataUnit: mM, TimeUnit: s},
		}}},
	}
	var names []string
	doc.Accept(FuncVisitor{Unit: func(u *UnitDefinition) { names = append(names, u.Name) }})
	want := []string{"ml", "mM", "s", "1 / s"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestFirstInitialUsesFirstReferencingMeasurement(t *testing.T) {
	ten, five := 10.0, 5.0
	doc := Document{Measurements: []Measurement{
		{ID: "m0", SpeciesData: []MeasurementData{{SpeciesID: "s1"}}},
		{ID: "m1", SpeciesData: []MeasurementData{{SpeciesID: "s0", Initial: &ten}}},
		{ID: "m2", SpeciesData: []MeasurementData{{SpeciesID: "s0", Initial: &five}}},
	}}
	initial, _, ok := doc.FirstInitial("s0")
	if !ok || initial == nil || *initial != 10 {
		t.Fatalf("expected 10 from m1, got %v", initial)
	}
	if _, _, ok := doc.FirstInitial("missing"); ok {
		t.Fatalf("expected no initial for unknown species")
	}
}

func TestParseDataType(t *testing.T) {
	cases := map[string]DataType{
		"":              DataConcentration,
		"conc":          DataConcentration,
		"CONCENTRATION": DataConcentration,
		"peak-area":     DataPeakArea,
		"ABSORBANCE":    DataAbsorbance,
	}
	for in, want := range cases {
		got, err := ParseDataType(in)
		if err != nil || got != want {
			t.Fatalf("ParseDataType(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	_, err := ParseDataType("weird")
	var lookup *LookupError
	if !errors.As(err, &lookup) || lookup.ID != "weird" {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestLookupErrorNamesMeasurement(t *testing.T) {
	err := &LookupError{Kind: "measurement", ID: "m9"}
	if err.Error() != "No data found for measurement with ID 'm9'" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
