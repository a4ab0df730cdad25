// Package equation classifies equation text and extracts its variables and
// parameters.
package equation

import (
	"fmt"

	"go.uber.org/zap"

	"enzymeml/internal/formula"
	"enzymeml/internal/units"
	"enzymeml/pkg/domain"
)

type options struct {
	kind        domain.EquationType
	units       map[string]*domain.UnitDefinition
	unitStrings map[string]string
	logger      *zap.Logger
}

// Option configures Build.
type Option func(*options)

// WithType skips classification and uses kind. The left-hand side must still
// name a target unless kind is a rate law.
func WithType(kind domain.EquationType) Option {
	return func(o *options) { o.kind = kind }
}

// WithUnits assigns units to newly discovered parameters by name.
func WithUnits(m map[string]*domain.UnitDefinition) Option {
	return func(o *options) { o.units = m }
}

// WithUnitStrings is WithUnits for unit strings such as "1/s".
func WithUnitStrings(m map[string]string) Option {
	return func(o *options) { o.unitStrings = m }
}

// WithLogger sets the logger used for skipped parameters.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Build parses text into a classified equation. Symbols of the right-hand
// side that are species ids or targets of non-ODE equations become
// variables; every other symbol, and the target of an assignment, is added
// to doc as a parameter unless one with that name exists.
func Build(doc *domain.Document, text string, opts ...Option) (domain.Equation, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	left, right, err := splitSides(text)
	if err != nil {
		return domain.Equation{}, err
	}
	tgt, err := parseTarget(left)
	if err != nil {
		return domain.Equation{}, err
	}
	kind := tgt.kind
	if o.kind != "" {
		kind = o.kind
	}
	if kind != domain.EquationRateLaw && tgt.name == "" {
		return domain.Equation{}, domain.Structuralf("build equation", "%s equation %q has no target", kind, text)
	}

	expr, err := formula.Parse(stripTime(right))
	if err != nil {
		return domain.Equation{}, err
	}

	known := knownIDs(doc)
	var variables []domain.Variable
	var parameters []string
	for _, sym := range formula.Symbols(expr) {
		if _, ok := known[sym]; ok {
			variables = append(variables, domain.Variable{ID: sym, Name: sym, Symbol: sym})
			continue
		}
		parameters = append(parameters, sym)
	}
	if kind == domain.EquationAssignment {
		parameters = append(parameters, tgt.name)
	}

	for _, name := range parameters {
		unit, err := o.unitFor(name)
		if err != nil {
			return domain.Equation{}, err
		}
		if _, added := doc.AddParameter(domain.Parameter{
			ID:       name,
			Name:     name,
			Symbol:   name,
			Unit:     unit,
			Constant: true,
		}); !added {
			o.logger.Debug("parameter already exists, skipping", zap.String("parameter", name))
		}
	}

	return domain.Equation{
		SpeciesID: tgt.name,
		Equation:  formula.String(expr),
		Type:      kind,
		Variables: variables,
	}, nil
}

// BuildAll builds equations in order and appends each to doc, so later
// equations see the targets of earlier ones.
func BuildAll(doc *domain.Document, texts []string, opts ...Option) ([]domain.Equation, error) {
	out := make([]domain.Equation, 0, len(texts))
	for _, text := range texts {
		eq, err := Build(doc, text, opts...)
		if err != nil {
			return nil, err
		}
		doc.Equations = append(doc.Equations, eq)
		out = append(out, eq)
	}
	return out, nil
}

func (o *options) unitFor(name string) (*domain.UnitDefinition, error) {
	if u, ok := o.units[name]; ok {
		return u.Clone(), nil
	}
	if s, ok := o.unitStrings[name]; ok {
		u, err := units.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("unit of parameter %s: %w", name, err)
		}
		return u, nil
	}
	return nil, nil
}

func knownIDs(doc *domain.Document) map[string]struct{} {
	known := make(map[string]struct{})
	for _, id := range doc.SpeciesIDs() {
		known[id] = struct{}{}
	}
	for _, eq := range doc.Equations {
		if eq.Type != domain.EquationODE && eq.SpeciesID != "" {
			known[eq.SpeciesID] = struct{}{}
		}
	}
	return known
}
