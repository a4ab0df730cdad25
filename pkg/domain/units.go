// Package domain defines the EnzymeML document model, its traversal
// primitives and the error taxonomy shared by the transcoder packages.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// UnitKind names an SBML base unit.
type UnitKind string

// SBML Level 3 base unit kinds.
const (
	UnitAmpere        UnitKind = "ampere"
	UnitAvogadro      UnitKind = "avogadro"
	UnitBecquerel     UnitKind = "becquerel"
	UnitCandela       UnitKind = "candela"
	UnitCelsius       UnitKind = "celsius"
	UnitCoulomb       UnitKind = "coulomb"
	UnitDimensionless UnitKind = "dimensionless"
	UnitFarad         UnitKind = "farad"
	UnitGram          UnitKind = "gram"
	UnitGray          UnitKind = "gray"
	UnitHenry         UnitKind = "henry"
	UnitHertz         UnitKind = "hertz"
	UnitItem          UnitKind = "item"
	UnitJoule         UnitKind = "joule"
	UnitKatal         UnitKind = "katal"
	UnitKelvin        UnitKind = "kelvin"
	UnitKilogram      UnitKind = "kilogram"
	UnitLitre         UnitKind = "litre"
	UnitLumen         UnitKind = "lumen"
	UnitLux           UnitKind = "lux"
	UnitMetre         UnitKind = "metre"
	UnitMole          UnitKind = "mole"
	UnitNewton        UnitKind = "newton"
	UnitOhm           UnitKind = "ohm"
	UnitPascal        UnitKind = "pascal"
	UnitRadian        UnitKind = "radian"
	UnitSecond        UnitKind = "second"
	UnitSiemens       UnitKind = "siemens"
	UnitSievert       UnitKind = "sievert"
	UnitSteradian     UnitKind = "steradian"
	UnitTesla         UnitKind = "tesla"
	UnitVolt          UnitKind = "volt"
	UnitWatt          UnitKind = "watt"
	UnitWeber         UnitKind = "weber"
)

var knownUnitKinds = map[UnitKind]struct{}{
	UnitAmpere: {}, UnitAvogadro: {}, UnitBecquerel: {}, UnitCandela: {}, UnitCelsius: {},
	UnitCoulomb: {}, UnitDimensionless: {}, UnitFarad: {}, UnitGram: {}, UnitGray: {},
	UnitHenry: {}, UnitHertz: {}, UnitItem: {}, UnitJoule: {}, UnitKatal: {}, UnitKelvin: {},
	UnitKilogram: {}, UnitLitre: {}, UnitLumen: {}, UnitLux: {}, UnitMetre: {}, UnitMole: {},
	UnitNewton: {}, UnitOhm: {}, UnitPascal: {}, UnitRadian: {}, UnitSecond: {}, UnitSiemens: {},
	UnitSievert: {}, UnitSteradian: {}, UnitTesla: {}, UnitVolt: {}, UnitWatt: {}, UnitWeber: {},
}

// Valid reports whether k is one of the SBML base unit kinds.
func (k UnitKind) Valid() bool {
	_, ok := knownUnitKinds[k]
	return ok
}

// BaseUnit is one factor of a unit definition: (multiplier * 10^scale * kind)^exponent.
// A zero Multiplier means unset and behaves as 1.
type BaseUnit struct {
	Kind       UnitKind `json:"kind"`
	Exponent   int      `json:"exponent"`
	Scale      int      `json:"scale"`
	Multiplier float64  `json:"multiplier,omitempty"`
}

// EffectiveMultiplier returns the multiplier with the unset value resolved to 1.
func (b BaseUnit) EffectiveMultiplier() float64 {
	if b.Multiplier == 0 {
		return 1
	}
	return b.Multiplier
}

// UnitDefinition is a named product of base units.
type UnitDefinition struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name,omitempty"`
	BaseUnits []BaseUnit `json:"base_units"`
}

// Key returns a canonical structural key. Two definitions share a key exactly
// when Equal reports true.
func (u *UnitDefinition) Key() string {
	if u == nil {
		return ""
	}
	var b strings.Builder
	for i, base := range u.BaseUnits {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%s:%d:%d:%s", base.Kind, base.Exponent, base.Scale,
			strconv.FormatFloat(base.EffectiveMultiplier(), 'g', -1, 64))
	}
	return b.String()
}

// Equal compares two definitions structurally, ignoring ID and Name.
func (u *UnitDefinition) Equal(other *UnitDefinition) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Key() == other.Key()
}

// Clone returns a deep copy.
func (u *UnitDefinition) Clone() *UnitDefinition {
	if u == nil {
		return nil
	}
	out := *u
	out.BaseUnits = append([]BaseUnit(nil), u.BaseUnits...)
	return &out
}

// HasKind reports whether any base unit is of the given kind.
func (u *UnitDefinition) HasKind(kind UnitKind) bool {
	if u == nil {
		return false
	}
	for _, base := range u.BaseUnits {
		if base.Kind == kind {
			return true
		}
	}
	return false
}

// Accept implements Node.
func (u *UnitDefinition) Accept(v Visitor) {
	if u != nil {
		v.VisitUnit(u)
	}
}
