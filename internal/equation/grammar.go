package equation

import (
	"regexp"
	"strings"

	"enzymeml/pkg/domain"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokPrime
	tokOpen
	tokClose
	tokInvalid
)

type token struct {
	kind tokenKind
	text string
}

var targetToken = regexp.MustCompile(`\s*(?:([A-Za-z][A-Za-z0-9_]*)|(')|(\()|(\))|(\S+))`)

func tokenize(s string) []token {
	var out []token
	for _, m := range targetToken.FindAllStringSubmatch(s, -1) {
		switch {
		case m[1] != "":
			out = append(out, token{tokIdent, m[1]})
		case m[2] != "":
			out = append(out, token{tokPrime, m[2]})
		case m[3] != "":
			out = append(out, token{tokOpen, m[3]})
		case m[4] != "":
			out = append(out, token{tokClose, m[4]})
		default:
			out = append(out, token{tokInvalid, m[5]})
		}
	}
	return out
}

// target is the classified left-hand side of an equation.
type target struct {
	name string
	kind domain.EquationType
}

// parseTarget classifies a left-hand side against
//
//	target ::= derivative | timed-variable | identifier | empty
//	derivative     ::= ident "'" "(" "t" ")"
//	timed-variable ::= ident "(" "t" ")"
//
// Anything else is rejected.
func parseTarget(left string) (target, error) {
	toks := tokenize(left)
	switch {
	case len(toks) == 0:
		return target{kind: domain.EquationRateLaw}, nil
	case matches(toks, tokIdent, tokPrime, tokOpen, tokIdent, tokClose) && toks[3].text == "t":
		return target{name: toks[0].text, kind: domain.EquationODE}, nil
	case matches(toks, tokIdent, tokOpen, tokIdent, tokClose) && toks[2].text == "t":
		return target{name: toks[0].text, kind: domain.EquationAssignment}, nil
	case matches(toks, tokIdent):
		return target{name: toks[0].text, kind: domain.EquationInitialAssignment}, nil
	}
	return target{}, domain.Structuralf("classify equation",
		"cannot infer equation type from %q; expected y'(t), y(t) or y on the left-hand side", strings.TrimSpace(left))
}

func matches(toks []token, kinds ...tokenKind) bool {
	if len(toks) != len(kinds) {
		return false
	}
	for i, k := range kinds {
		if toks[i].kind != k {
			return false
		}
	}
	return true
}

// splitSides cuts at the first "=". Without "=" the whole text is the right side.
func splitSides(text string) (string, string, error) {
	left, right, found := strings.Cut(text, "=")
	if !found {
		return "", text, nil
	}
	if strings.TrimSpace(right) == "" {
		return "", "", domain.Structuralf("split equation", "equation %q must contain a right-hand side", text)
	}
	if strings.TrimSpace(left) == "" {
		return "", "", domain.Structuralf("split equation", "equation %q must contain a left-hand side", text)
	}
	return left, right, nil
}

var (
	timedVariable = regexp.MustCompile(`([A-Za-z0-9_]+)'?\(t\)`)
	elemental     = map[string]struct{}{
		"exp": {}, "log": {}, "ln": {}, "sin": {}, "cos": {}, "tan": {}, "sqrt": {}, "abs": {},
	}
)

// stripTime rewrites x(t) and x'(t) to x, leaving calls of elemental
// functions such as exp(t) untouched.
func stripTime(s string) string {
	return strings.TrimSpace(timedVariable.ReplaceAllStringFunc(s, func(m string) string {
		name := timedVariable.FindStringSubmatch(m)[1]
		if _, ok := elemental[name]; ok {
			return m
		}
		return name
	}))
}
