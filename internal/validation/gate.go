// Package validation runs the pre-export checks a document must pass before
// it is written. Each check is a Rule; the Gate evaluates all of them, logs
// every finding and blocks export when any finding is blocking.
package validation

import (
	"context"

	"go.uber.org/zap"

	"enzymeml/pkg/domain"
)

// Severity ranks a violation.
type Severity string

const (
	// SeverityBlock rejects the document.
	SeverityBlock Severity = "block"
	// SeverityWarn is reported and, where possible, repaired in place.
	SeverityWarn Severity = "warn"
)

// Violation is one finding of a rule.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	EntityID string
}

// Result collects the violations of one or more rules.
type Result struct {
	Violations []Violation
}

// Merge appends the violations of other.
func (r *Result) Merge(other Result) {
	r.Violations = append(r.Violations, other.Violations...)
}

// Blocking reports whether any violation rejects the document.
func (r Result) Blocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Rule inspects a document. Rules may repair the document and report the
// repair as a warning.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, doc *domain.Document) (Result, error)
}

// Gate evaluates registered rules in order.
type Gate struct {
	rules  []Rule
	logger *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger findings are written to.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate constructs a gate without rules.
func NewGate(opts ...Option) *Gate {
	g := &Gate{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewDefaultGate builds a gate with the built-in export checks.
func NewDefaultGate(opts ...Option) *Gate {
	g := NewGate(opts...)
	g.Register(identifierRule{})
	g.Register(vesselReferenceRule{})
	g.Register(odeParticipantRule{})
	g.Register(zeroStoichiometryRule{})
	g.Register(unitPresenceRule{})
	g.Register(assignedParameterRule{})
	return g
}

// Register appends a rule.
func (g *Gate) Register(rule Rule) {
	g.rules = append(g.rules, rule)
}

// Evaluate runs every rule and aggregates the results. Every rule runs even
// when an earlier one found blocking violations.
func (g *Gate) Evaluate(ctx context.Context, doc *domain.Document) (Result, error) {
	var combined Result
	for _, rule := range g.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, doc)
		if err != nil {
			return Result{}, err
		}
		for _, v := range res.Violations {
			fields := []zap.Field{zap.String("rule", v.Rule), zap.String("id", v.EntityID)}
			if v.Severity == SeverityBlock {
				g.logger.Error(v.Message, fields...)
			} else {
				g.logger.Warn(v.Message, fields...)
			}
		}
		combined.Merge(res)
	}
	return combined, nil
}

// Validate evaluates the rules and turns blocking violations into a
// *domain.ValidationError.
func (g *Gate) Validate(ctx context.Context, doc *domain.Document) error {
	res, err := g.Evaluate(ctx, doc)
	if err != nil {
		return err
	}
	if !res.Blocking() {
		return nil
	}
	verr := &domain.ValidationError{}
	for _, v := range res.Violations {
		if v.Severity == SeverityBlock {
			verr.Problems = append(verr.Problems, v.Message)
		}
	}
	return verr
}
