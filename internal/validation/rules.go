package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"enzymeml/pkg/domain"
)

var sidPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func structs() *validator.Validate {
	structValidatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("sid", func(fl validator.FieldLevel) bool {
			return sidPattern.MatchString(fl.Field().String())
		})
		structValidator = v
	})
	return structValidator
}

// IsSID reports whether id is a valid SBML identifier.
func IsSID(id string) bool { return sidPattern.MatchString(id) }

// identifierRule checks the struct tags of every identified entity.
type identifierRule struct{}

func (identifierRule) Name() string { return "identifiers" }

func (r identifierRule) Evaluate(_ context.Context, doc *domain.Document) (Result, error) {
	var res Result
	check := func(kind, id string, value any) {
		err := structs().Struct(value)
		if err == nil {
			return
		}
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			res.Violations = append(res.Violations, r.violation(id, fmt.Sprintf("%s %q: %v", kind, id, err)))
			return
		}
		for _, fe := range fieldErrs {
			res.Violations = append(res.Violations, r.violation(id, describeField(kind, id, fe)))
		}
	}
	for i := range doc.Vessels {
		check("vessel", doc.Vessels[i].ID, &doc.Vessels[i])
	}
	for i := range doc.SmallMolecules {
		check("small molecule", doc.SmallMolecules[i].ID, &doc.SmallMolecules[i])
	}
	for i := range doc.Proteins {
		check("protein", doc.Proteins[i].ID, &doc.Proteins[i])
	}
	for i := range doc.Complexes {
		check("complex", doc.Complexes[i].ID, &doc.Complexes[i])
	}
	for i := range doc.Reactions {
		check("reaction", doc.Reactions[i].ID, &doc.Reactions[i])
	}
	for i := range doc.Measurements {
		check("measurement", doc.Measurements[i].ID, &doc.Measurements[i])
	}
	for i := range doc.Parameters {
		check("parameter", doc.Parameters[i].ID, &doc.Parameters[i])
	}
	return res, nil
}

func (r identifierRule) violation(id, msg string) Violation {
	return Violation{Rule: r.Name(), Severity: SeverityBlock, Message: msg, EntityID: id}
}

func describeField(kind, id string, fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s %q: %s is required", kind, id, field)
	case "sid":
		return fmt.Sprintf("%s %q: %s is not a valid SBML identifier", kind, id, field)
	}
	return fmt.Sprintf("%s %q: %s is invalid", kind, id, field)
}

// vesselReferenceRule requires every small molecule and protein to sit in a
// declared vessel. Complexes carry no vessel.
type vesselReferenceRule struct{}

func (vesselReferenceRule) Name() string { return "vessel_reference" }

func (r vesselReferenceRule) Evaluate(_ context.Context, doc *domain.Document) (Result, error) {
	var res Result
	for _, s := range doc.Species() {
		if s.Kind() == domain.KindComplex {
			continue
		}
		var msg string
		switch _, ok := doc.FindVessel(s.Vessel()); {
		case s.Vessel() == "":
			msg = fmt.Sprintf("species '%s' of type '%s' does not have a vessel id", s.SpeciesID(), s.Kind())
		case !ok:
			msg = fmt.Sprintf("species '%s' of type '%s' references vessel '%s' which does not exist", s.SpeciesID(), s.Kind(), s.Vessel())
		default:
			continue
		}
		res.Violations = append(res.Violations, Violation{Rule: r.Name(), Severity: SeverityBlock, Message: msg, EntityID: s.SpeciesID()})
	}
	return res, nil
}

// odeParticipantRule forbids a species from being governed by a rate rule and
// taking part in a reaction at the same time.
type odeParticipantRule struct{}

func (odeParticipantRule) Name() string { return "ode_or_reaction" }

func (r odeParticipantRule) Evaluate(_ context.Context, doc *domain.Document) (Result, error) {
	governed := make(map[string]struct{})
	for _, eq := range doc.EquationsOfType(domain.EquationODE) {
		governed[eq.SpeciesID] = struct{}{}
	}
	var res Result
	reported := make(map[string]struct{})
	doc.Accept(domain.FuncVisitor{ReactionElement: func(e *domain.ReactionElement) {
		if _, ok := governed[e.SpeciesID]; !ok {
			return
		}
		if _, done := reported[e.SpeciesID]; done {
			return
		}
		reported[e.SpeciesID] = struct{}{}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("species '%s' is part of a reaction and has a rate equation", e.SpeciesID),
			EntityID: e.SpeciesID,
		})
	}})
	return res, nil
}

// zeroStoichiometryRule rejects reaction participants with a stoichiometry of
// zero, which are neither reactants nor products.
type zeroStoichiometryRule struct{}

func (zeroStoichiometryRule) Name() string { return "zero_stoichiometry" }

func (r zeroStoichiometryRule) Evaluate(_ context.Context, doc *domain.Document) (Result, error) {
	var res Result
	for _, rx := range doc.Reactions {
		for _, e := range rx.Species {
			if e.Stoichiometry != 0 {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule: r.Name(), Severity: SeverityBlock, EntityID: e.SpeciesID,
				Message: fmt.Sprintf("reaction '%s': species '%s' has zero stoichiometry", rx.ID, e.SpeciesID),
			})
		}
	}
	return res, nil
}

// unitPresenceRule requires a unit on every measurement data entry and
// recommends one on every parameter.
type unitPresenceRule struct{}

func (unitPresenceRule) Name() string { return "units" }

func (r unitPresenceRule) Evaluate(_ context.Context, doc *domain.Document) (Result, error) {
	var res Result
	for _, m := range doc.Measurements {
		for _, d := range m.SpeciesData {
			if d.DataUnit != nil {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("measurement '%s': data of species '%s' does not have a unit", m.ID, d.SpeciesID),
				EntityID: d.SpeciesID,
			})
		}
	}
	for _, p := range doc.Parameters {
		if p.Unit != nil {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("parameter '%s' should have a unit", p.ID),
			EntityID: p.ID,
		})
	}
	return res, nil
}

// assignedParameterRule requires every assignment target to name exactly one
// parameter and makes that parameter non-constant.
type assignedParameterRule struct{}

func (assignedParameterRule) Name() string { return "assigned_parameter" }

func (r assignedParameterRule) Evaluate(_ context.Context, doc *domain.Document) (Result, error) {
	var res Result
	for _, eq := range doc.EquationsOfType(domain.EquationAssignment) {
		var matches []int
		for i := range doc.Parameters {
			if doc.Parameters[i].ID == eq.SpeciesID {
				matches = append(matches, i)
			}
		}
		switch len(matches) {
		case 0:
			res.Violations = append(res.Violations, Violation{
				Rule: r.Name(), Severity: SeverityBlock, EntityID: eq.SpeciesID,
				Message: fmt.Sprintf("assignment '%s' does not have a parameter defined", eq.SpeciesID),
			})
			continue
		case 1:
		default:
			res.Violations = append(res.Violations, Violation{
				Rule: r.Name(), Severity: SeverityBlock, EntityID: eq.SpeciesID,
				Message: fmt.Sprintf("assignment '%s' has %d parameters defined", eq.SpeciesID, len(matches)),
			})
			continue
		}
		p := &doc.Parameters[matches[0]]
		if !p.Constant {
			continue
		}
		p.Constant = false
		res.Violations = append(res.Violations, Violation{
			Rule: r.Name(), Severity: SeverityWarn, EntityID: p.ID,
			Message: domain.RepairableWarning{
				Subject: "parameter '" + p.ID + "'",
				Message: "has an assignment rule but was constant; set to non-constant",
			}.String(),
		})
	}
	return res, nil
}
