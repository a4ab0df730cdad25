package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enzymeml/pkg/domain"
)

func TestParseUnitStrings(t *testing.T) {
	cases := []struct {
		in   string
		want []domain.BaseUnit
		name string
	}{
		{"mM", []domain.BaseUnit{{Kind: domain.UnitMole, Exponent: 1, Scale: -3}, {Kind: domain.UnitLitre, Exponent: -1}}, "mmol / l"},
		{"mmol / l", []domain.BaseUnit{{Kind: domain.UnitMole, Exponent: 1, Scale: -3}, {Kind: domain.UnitLitre, Exponent: -1}}, "mmol / l"},
		{"1/s", []domain.BaseUnit{{Kind: domain.UnitSecond, Exponent: -1}}, "1 / s"},
		{"1 / s", []domain.BaseUnit{{Kind: domain.UnitSecond, Exponent: -1}}, "1 / s"},
		{"ml", []domain.BaseUnit{{Kind: domain.UnitLitre, Exponent: 1, Scale: -3}}, "ml"},
		{"K", []domain.BaseUnit{{Kind: domain.UnitKelvin, Exponent: 1}}, "K"},
		{"C", []domain.BaseUnit{{Kind: domain.UnitCelsius, Exponent: 1}}, "Celsius"},
		{"min", []domain.BaseUnit{{Kind: domain.UnitSecond, Exponent: 1, Multiplier: 60}}, "min"},
		{"h", []domain.BaseUnit{{Kind: domain.UnitSecond, Exponent: 1, Multiplier: 3600}}, "h"},
		{"1 / min", []domain.BaseUnit{{Kind: domain.UnitSecond, Exponent: -1, Multiplier: 60}}, "1 / min"},
		{"m^2", []domain.BaseUnit{{Kind: domain.UnitMetre, Exponent: 2}}, "Metre^2"},
		{"umol/l/min", []domain.BaseUnit{
			{Kind: domain.UnitMole, Exponent: 1, Scale: -6},
			{Kind: domain.UnitLitre, Exponent: -1},
			{Kind: domain.UnitSecond, Exponent: -1, Multiplier: 60},
		}, "umol / l min"},
		{"mol/(l*s)", []domain.BaseUnit{
			{Kind: domain.UnitMole, Exponent: 1},
			{Kind: domain.UnitLitre, Exponent: -1},
			{Kind: domain.UnitSecond, Exponent: -1},
		}, "mol / l s"},
		{"mol / (l / s)", []domain.BaseUnit{
			{Kind: domain.UnitMole, Exponent: 1},
			{Kind: domain.UnitLitre, Exponent: -1},
			{Kind: domain.UnitSecond, Exponent: 1},
		}, "mol s / l"},
		{"l^(-1)", []domain.BaseUnit{{Kind: domain.UnitLitre, Exponent: -1}}, "1 / l"},
		{"mol*l^-1", []domain.BaseUnit{{Kind: domain.UnitMole, Exponent: 1}, {Kind: domain.UnitLitre, Exponent: -1}}, "mol / l"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.BaseUnits)
			assert.Equal(t, tc.name, got.Name)
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "/s", "mol /", "xyz", "mol^0", "qM", "mol^x", "mol/(l", "mol/l)", "mol/()"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}
