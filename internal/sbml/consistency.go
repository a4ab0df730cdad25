package sbml

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"enzymeml/pkg/domain"
)

// checker inspects an emitted model for internal consistency. Errors are
// fatal; warnings are advisory.
type checker struct {
	ids      map[string]string
	units    map[string]struct{}
	errs     error
	warnings []string
}

// checkConsistency verifies the emitted model and returns its warnings.
// Every error is logged and the errors are returned combined. Warnings are
// logged one by one when verbose, otherwise summarized in a single line.
func checkConsistency(root *etree.Element, logger *zap.Logger, verbose bool) ([]string, error) {
	c := &checker{ids: make(map[string]string), units: make(map[string]struct{})}
	model := child(root, "model")
	if model == nil {
		return nil, domain.Structuralf("check model", "document has no <model>")
	}
	c.collect(model)
	c.checkUnits(model)
	c.checkSpecies(model)
	c.checkReactions(model)
	c.checkRules(model)
	c.checkMath(model)

	for _, err := range multierr.Errors(c.errs) {
		logger.Error(err.Error(), zap.String("check", "consistency"))
	}
	switch {
	case len(c.warnings) == 0:
	case verbose:
		for _, w := range c.warnings {
			logger.Warn(w, zap.String("check", "consistency"))
		}
	default:
		logger.Warn(fmt.Sprintf("model has %d consistency warnings; enable verbose output to list them", len(c.warnings)))
	}
	if c.errs != nil {
		return c.warnings, &domain.StructuralError{Op: "check model", Err: c.errs}
	}
	return c.warnings, nil
}

func (c *checker) errorf(format string, args ...any) {
	c.errs = multierr.Append(c.errs, fmt.Errorf(format, args...))
}

func (c *checker) warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// collect registers every SId of the model. SBML shares one identifier
// space across compartments, species, parameters and reactions; unit
// definitions have their own.
func (c *checker) collect(model *etree.Element) {
	for _, el := range listOf(model, "listOfUnitDefinitions", "unitDefinition") {
		id := el.SelectAttrValue("id", "")
		if _, dup := c.units[id]; dup {
			c.errorf("unit definition %q is defined twice", id)
		}
		c.units[id] = struct{}{}
	}
	for _, group := range []struct{ list, item string }{
		{"listOfCompartments", "compartment"},
		{"listOfSpecies", "species"},
		{"listOfParameters", "parameter"},
		{"listOfReactions", "reaction"},
	} {
		for _, el := range listOf(model, group.list, group.item) {
			id := el.SelectAttrValue("id", "")
			if id == "" {
				c.errorf("%s without id", group.item)
				continue
			}
			if prev, dup := c.ids[id]; dup {
				c.errorf("id %q of %s is already used by a %s", id, group.item, prev)
				continue
			}
			c.ids[id] = group.item
		}
	}
}

func (c *checker) unitRef(owner, ref string) {
	if ref == "" {
		return
	}
	if _, ok := c.units[ref]; ok {
		return
	}
	if domain.UnitKind(ref).Valid() {
		return
	}
	c.errorf("%s references undefined unit %q", owner, ref)
}

func (c *checker) checkUnits(model *etree.Element) {
	c.unitRef("model", model.SelectAttrValue("volumeUnits", ""))
	for _, el := range listOf(model, "listOfCompartments", "compartment") {
		c.unitRef("compartment "+el.SelectAttrValue("id", ""), el.SelectAttrValue("units", ""))
	}
	for _, el := range listOf(model, "listOfParameters", "parameter") {
		id := el.SelectAttrValue("id", "")
		c.unitRef("parameter "+id, el.SelectAttrValue("units", ""))
		if el.SelectAttr("units") == nil {
			c.warnf("parameter %q has no units", id)
		}
		if el.SelectAttr("value") == nil {
			c.warnf("parameter %q has no value", id)
		}
	}
}

func (c *checker) checkSpecies(model *etree.Element) {
	for _, el := range listOf(model, "listOfSpecies", "species") {
		id := el.SelectAttrValue("id", "")
		comp := el.SelectAttrValue("compartment", "")
		switch {
		case comp == "":
			c.errorf("species %q has no compartment", id)
		case c.ids[comp] != "compartment":
			c.errorf("species %q references undefined compartment %q", id, comp)
		}
		if el.SelectAttr("initialConcentration") == nil && el.SelectAttr("initialAmount") == nil {
			c.warnf("species %q has no initial value", id)
		}
	}
}

func (c *checker) checkReactions(model *etree.Element) {
	for _, r := range listOf(model, "listOfReactions", "reaction") {
		rid := r.SelectAttrValue("id", "")
		refs := append(listOf(r, "listOfReactants", "speciesReference"), listOf(r, "listOfProducts", "speciesReference")...)
		refs = append(refs, listOf(r, "listOfModifiers", "modifierSpeciesReference")...)
		if len(refs) == 0 {
			c.warnf("reaction %q has no participants", rid)
		}
		for _, ref := range refs {
			if sp := ref.SelectAttrValue("species", ""); c.ids[sp] != "species" {
				c.errorf("reaction %q references undefined species %q", rid, sp)
			}
		}
		if child(r, "kineticLaw") == nil {
			c.warnf("reaction %q has no kinetic law", rid)
		}
	}
}

func (c *checker) checkRules(model *etree.Element) {
	targets := make(map[string]string)
	check := func(el *etree.Element, attr string) {
		target := el.SelectAttrValue(attr, "")
		kind := c.ids[target]
		if kind != "species" && kind != "parameter" && kind != "compartment" {
			c.errorf("%s targets undefined symbol %q", el.Tag, target)
			return
		}
		if el.Tag == "initialAssignment" {
			return
		}
		if prev, dup := targets[target]; dup {
			c.errorf("%q is the target of a %s and a %s", target, prev, el.Tag)
		}
		targets[target] = el.Tag
	}
	for _, el := range listOf(model, "listOfInitialAssignments", "initialAssignment") {
		check(el, "symbol")
	}
	if rules := child(model, "listOfRules"); rules != nil {
		for _, el := range rules.ChildElements() {
			check(el, "variable")
		}
	}
}

// checkMath requires every <ci> inside a MathML block to name a defined
// SId. The head of a user function application is exempt.
func (c *checker) checkMath(model *etree.Element) {
	var walk func(owner string, el *etree.Element)
	walk = func(owner string, el *etree.Element) {
		children := el.ChildElements()
		for i, ch := range children {
			if ch.Tag == "ci" {
				if el.Tag == "apply" && i == 0 {
					continue
				}
				name := strings.TrimSpace(ch.Text())
				if _, ok := c.ids[name]; !ok {
					c.errorf("%s uses undefined symbol %q", owner, name)
				}
				continue
			}
			walk(owner, ch)
		}
	}
	var visit func(el *etree.Element)
	visit = func(el *etree.Element) {
		for _, ch := range el.ChildElements() {
			if ch.Tag == "annotation" {
				continue
			}
			if ch.Tag == "math" {
				walk(describe(el), ch)
				continue
			}
			visit(ch)
		}
	}
	visit(model)
}

func describe(el *etree.Element) string {
	for _, attr := range []string{"id", "variable", "symbol"} {
		if v := el.SelectAttrValue(attr, ""); v != "" {
			return fmt.Sprintf("%s %q", el.Tag, v)
		}
	}
	if parent := el.Parent(); parent != nil && el.Tag == "kineticLaw" {
		return "kinetic law of " + describe(parent)
	}
	return el.Tag
}
