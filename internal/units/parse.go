package units

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"enzymeml/pkg/domain"
)

var prefixes = map[string]int{
	"k": 3,
	"d": -1,
	"c": -2,
	"m": -3,
	"u": -6,
	"µ": -6,
	"μ": -6,
	"n": -9,
	"p": -12,
	"f": -15,
}

var symbols = map[string][]domain.BaseUnit{
	"mol":           {{Kind: domain.UnitMole, Exponent: 1}},
	"l":             {{Kind: domain.UnitLitre, Exponent: 1}},
	"L":             {{Kind: domain.UnitLitre, Exponent: 1}},
	"g":             {{Kind: domain.UnitGram, Exponent: 1}},
	"s":             {{Kind: domain.UnitSecond, Exponent: 1}},
	"sec":           {{Kind: domain.UnitSecond, Exponent: 1}},
	"min":           {{Kind: domain.UnitSecond, Exponent: 1, Multiplier: 60}},
	"h":             {{Kind: domain.UnitSecond, Exponent: 1, Multiplier: 3600}},
	"hr":            {{Kind: domain.UnitSecond, Exponent: 1, Multiplier: 3600}},
	"day":           {{Kind: domain.UnitSecond, Exponent: 1, Multiplier: 86400}},
	"K":             {{Kind: domain.UnitKelvin, Exponent: 1}},
	"C":             {{Kind: domain.UnitCelsius, Exponent: 1}},
	"°C":            {{Kind: domain.UnitCelsius, Exponent: 1}},
	"M":             {{Kind: domain.UnitMole, Exponent: 1}, {Kind: domain.UnitLitre, Exponent: -1}},
	"m":             {{Kind: domain.UnitMetre, Exponent: 1}},
	"dimensionless": {{Kind: domain.UnitDimensionless, Exponent: 1}},
}

var (
	unitToken = regexp.MustCompile(`\s*([/*()]|[^\s/*()^]+(?:\^\(?-?\d+\)?)?)`)
	unitTerm  = regexp.MustCompile(`^([^\s^]+?)(?:\^\(?(-?\d+)\)?)?$`)
)

// Parse converts a unit string into a definition. Terms separated by "/" go
// to the denominator, terms separated by "*" or blanks to the numerator, and
// a bare "1" only marks an empty numerator: "mM", "mmol / l", "1/s",
// "umol/l/min", "mol*l^-1". Parentheses group terms, so "mol/(l*s)" divides
// by both. The returned definition is named by Name.
func Parse(s string) (*domain.UnitDefinition, error) {
	src := strings.TrimSpace(s)
	if src == "" {
		return nil, fmt.Errorf("parse unit: empty unit string")
	}
	tokens := unitToken.FindAllStringSubmatch(src, -1)
	consumed := 0
	for _, tok := range tokens {
		consumed += len(tok[0])
	}
	if consumed != len(src) {
		return nil, fmt.Errorf("parse unit %q: invalid characters", s)
	}

	def := &domain.UnitDefinition{}
	groups := []int{1}
	sign := 1
	expectTerm := true
	for _, tok := range tokens {
		switch text := tok[1]; text {
		case "/", "*":
			if expectTerm {
				return nil, fmt.Errorf("parse unit %q: dangling %q", s, text)
			}
			sign = 1
			if text == "/" {
				sign = -1
			}
			expectTerm = true
		case "(":
			groups = append(groups, groups[len(groups)-1]*sign)
			sign = 1
			expectTerm = true
		case ")":
			if expectTerm || len(groups) == 1 {
				return nil, fmt.Errorf("parse unit %q: unexpected %q", s, text)
			}
			groups = groups[:len(groups)-1]
			sign = 1
			expectTerm = false
		default:
			bases, err := parseTerm(text)
			if err != nil {
				return nil, fmt.Errorf("parse unit %q: %w", s, err)
			}
			for _, b := range bases {
				b.Exponent *= groups[len(groups)-1] * sign
				def.BaseUnits = append(def.BaseUnits, b)
			}
			sign = 1
			expectTerm = false
		}
	}
	if expectTerm {
		return nil, fmt.Errorf("parse unit %q: missing term", s)
	}
	if len(groups) != 1 {
		return nil, fmt.Errorf("parse unit %q: unclosed %q", s, "(")
	}
	if len(def.BaseUnits) == 0 {
		return nil, fmt.Errorf("parse unit %q: no base units", s)
	}
	def.Name = Name(def)
	return def, nil
}

// MustParse is Parse for package-level tables and tests.
func MustParse(s string) *domain.UnitDefinition {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

func parseTerm(text string) ([]domain.BaseUnit, error) {
	if text == "1" {
		return nil, nil
	}
	m := unitTerm.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("invalid term %q", text)
	}
	exp := 1
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid exponent in %q", text)
		}
		exp = n
	}
	bases, err := resolveSymbol(m[1])
	if err != nil {
		return nil, err
	}
	out := make([]domain.BaseUnit, len(bases))
	for i, b := range bases {
		b.Exponent *= exp
		out[i] = b
	}
	return out, nil
}

// resolveSymbol prefers an exact symbol so that "m", "min" and "M" are not
// read as prefixed units.
func resolveSymbol(sym string) ([]domain.BaseUnit, error) {
	if bases, ok := symbols[sym]; ok {
		return append([]domain.BaseUnit(nil), bases...), nil
	}
	r, size := utf8.DecodeRuneInString(sym)
	if r == utf8.RuneError || size == len(sym) {
		return nil, fmt.Errorf("unknown unit %q", sym)
	}
	scale, ok := prefixes[sym[:size]]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", sym)
	}
	bases, ok := symbols[sym[size:]]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", sym)
	}
	out := append([]domain.BaseUnit(nil), bases...)
	out[0].Scale = scale
	return out, nil
}

var shortNames = map[domain.UnitKind]string{
	domain.UnitLitre:  "l",
	domain.UnitMole:   "mol",
	domain.UnitSecond: "s",
	domain.UnitGram:   "g",
	domain.UnitKelvin: "K",
}

var scalePrefixes = map[int]string{3: "k", -3: "m", -6: "u", -9: "n"}

// timeNames names seconds scaled by a multiplier.
var timeNames = map[float64]string{60: "min", 3600: "h", 86400: "day"}

// Name renders a definition as "numerator / denominator", for example
// "mmol / l", "1 / s" or "umol / l min". Exponents other than one are written
// as "^n".
func Name(u *domain.UnitDefinition) string {
	if u == nil {
		return ""
	}
	var num, den []string
	for _, b := range u.BaseUnits {
		term := baseName(b)
		if abs := absInt(b.Exponent); abs != 1 && abs != 0 {
			term += "^" + strconv.Itoa(abs)
		}
		switch {
		case b.Exponent > 0:
			num = append(num, term)
		case b.Exponent < 0:
			den = append(den, term)
		}
	}
	switch {
	case len(num) > 0 && len(den) > 0:
		return strings.Join(num, " ") + " / " + strings.Join(den, " ")
	case len(num) > 0:
		return strings.Join(num, " ")
	case len(den) > 0:
		return "1 / " + strings.Join(den, " ")
	default:
		return ""
	}
}

func baseName(b domain.BaseUnit) string {
	if b.Multiplier == 0 || b.Multiplier == 1 {
		return scalePrefixes[b.Scale] + kindName(b.Kind)
	}
	if name, ok := timeNames[b.Multiplier]; ok && b.Kind == domain.UnitSecond && b.Scale == 0 {
		return name
	}
	return strconv.FormatFloat(b.Multiplier, 'g', -1, 64) + " " + scalePrefixes[b.Scale] + kindName(b.Kind)
}

func kindName(k domain.UnitKind) string {
	if short, ok := shortNames[k]; ok {
		return short
	}
	s := string(k)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
