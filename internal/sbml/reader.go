package sbml

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"enzymeml/internal/annotation"
	"enzymeml/internal/formula"
	"enzymeml/internal/omex"
	"enzymeml/internal/units"
	"enzymeml/pkg/domain"
)

// importContext carries the state of one Parse call.
type importContext struct {
	ctx     context.Context
	archive *omex.Archive
	schema  annotation.Schema
	units   units.Index
	model   *etree.Element
	doc     *domain.Document
	logger  *zap.Logger
}

// ParseFile reads a COMBINE archive from disk.
func ParseFile(ctx context.Context, name string, opts ...Option) (*domain.Document, error) {
	a, err := omex.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, a, opts...)
}

// ParseBytes reads an in-memory COMBINE archive.
func ParseBytes(ctx context.Context, data []byte, opts ...Option) (*domain.Document, error) {
	a, err := omex.ReadBytes(data)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, a, opts...)
}

// Parse rebuilds a document from the master SBML model of a and the tabular
// entries it references. The annotation generation is chosen from the
// namespaces the model declares.
func Parse(ctx context.Context, a *omex.Archive, opts ...Option) (*domain.Document, error) {
	o := buildOptions(opts)
	master, err := a.Master()
	if err != nil {
		return nil, err
	}
	raw, err := a.Bytes(master.Location)
	if err != nil {
		return nil, err
	}
	xml := etree.NewDocument()
	if err := xml.ReadFromBytes(raw); err != nil {
		return nil, &domain.StructuralError{Op: "read model " + master.Location, Err: err}
	}
	root := xml.Root()
	if root == nil || root.Tag != "sbml" {
		return nil, domain.Structuralf("read model "+master.Location, "root element is not <sbml>")
	}
	model := child(root, "model")
	if model == nil {
		return nil, domain.Structuralf("read model "+master.Location, "document has no <model>")
	}

	ic := &importContext{
		ctx:     ctx,
		archive: a,
		schema:  annotation.Detect(annotation.DeclaredNamespaces(root)),
		model:   model,
		doc:     &domain.Document{Name: model.SelectAttrValue("name", "")},
		logger:  o.logger,
	}
	ic.logger.Debug("parsing model", zap.String("location", master.Location), zap.Stringer("annotations", ic.schema.Version()))

	steps := []func() error{
		ic.readUnits,
		ic.readVessels,
		ic.readSpecies,
		ic.readParameters,
		ic.readInitialAssignments,
		ic.readRules,
		ic.readReactions,
		ic.readMeasurements,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(); err != nil {
			return nil, err
		}
	}
	return ic.doc, nil
}

// readUnits indexes the unit definitions by wire id. A definition written
// with provenance gets its original id and name back.
func (ic *importContext) readUnits() error {
	defs := make(map[string]*domain.UnitDefinition)
	for _, el := range listOf(ic.model, "listOfUnitDefinitions", "unitDefinition") {
		wireID := el.SelectAttrValue("id", "")
		if wireID == "" {
			return domain.Structuralf("read units", "unit definition without id")
		}
		u := &domain.UnitDefinition{ID: wireID, Name: el.SelectAttrValue("name", "")}
		prov := annotation.ReadProvenance(child(el, "annotation"))
		if prov.Identifier != "" {
			u.ID = prov.Identifier
		}
		if prov.Title != "" {
			u.Name = prov.Title
		}
		for _, b := range listOf(el, "listOfUnits", "unit") {
			base := domain.BaseUnit{
				Kind:     domain.UnitKind(b.SelectAttrValue("kind", "")),
				Exponent: 1,
			}
			if !base.Kind.Valid() {
				return domain.Structuralf("read units", "unit %s: unknown kind %q", wireID, base.Kind)
			}
			if v := floatAttr(b, "exponent"); v != nil {
				base.Exponent = int(*v)
			}
			if v := floatAttr(b, "scale"); v != nil {
				base.Scale = int(*v)
			}
			if v := floatAttr(b, "multiplier"); v != nil && *v != 1 {
				base.Multiplier = *v
			}
			u.BaseUnits = append(u.BaseUnits, base)
		}
		defs[wireID] = u
	}
	ic.units = units.NewIndex(defs)
	return nil
}

func (ic *importContext) unit(id string) (*domain.UnitDefinition, error) {
	return ic.units.Resolve(strings.TrimSpace(id))
}

func (ic *importContext) readVessels() error {
	for _, el := range listOf(ic.model, "listOfCompartments", "compartment") {
		v := domain.Vessel{
			ID:       el.SelectAttrValue("id", ""),
			Name:     el.SelectAttrValue("name", ""),
			Constant: boolAttr(el, "constant", true),
		}
		if size := floatAttr(el, "size"); size != nil {
			v.Volume = *size
		}
		u, err := ic.unit(el.SelectAttrValue("units", ""))
		if err != nil {
			return err
		}
		v.Unit = u
		ic.doc.Vessels = append(ic.doc.Vessels, v)
	}
	return nil
}

func (ic *importContext) readSpecies() error {
	ns := ic.schema.Namespace()
	for _, el := range listOf(ic.model, "listOfSpecies", "species") {
		id := el.SelectAttrValue("id", "")
		name := el.SelectAttrValue("name", "")
		vessel := el.SelectAttrValue("compartment", "")
		constant := boolAttr(el, "constant", false)
		ann := child(el, "annotation")
		refs := annotation.ReadProvenance(ann).References

		switch sbo := el.SelectAttrValue("sboTerm", ""); sbo {
		case sboSmallMolecule:
			m := ic.schema.SmallMolecule()
			vals := annotation.Import(m, annotation.Find(ann, ns, m.Tag))
			sm := domain.SmallMolecule{
				ID:              id,
				Name:            name,
				VesselID:        vessel,
				Constant:        constant,
				CanonicalSMILES: vals.String("canonical_smiles"),
				InChI:           vals.String("inchi"),
				InChIKey:        vals.String("inchikey"),
				References:      refs,
			}
			if chebi := annotation.IdentifiersOrg("chebi", vals.String("chebi_id")); chebi != "" {
				sm.References = append(sm.References, chebi)
			}
			ic.doc.SmallMolecules = append(ic.doc.SmallMolecules, sm)
		case sboProtein:
			m := ic.schema.Protein()
			vals := annotation.Import(m, annotation.Find(ann, ns, m.Tag))
			p := domain.Protein{
				ID:            id,
				Name:          name,
				VesselID:      vessel,
				Constant:      constant,
				Sequence:      vals.String("sequence"),
				ECNumber:      vals.String("ecnumber"),
				Organism:      vals.String("organism"),
				OrganismTaxID: vals.String("organism_tax_id"),
				References:    refs,
			}
			if uniprot := annotation.IdentifiersOrg("uniprot", vals.String("uniprot_id")); uniprot != "" {
				p.References = append(p.References, uniprot)
			}
			ic.doc.Proteins = append(ic.doc.Proteins, p)
		case sboComplex:
			m := ic.schema.Complex()
			vals := annotation.Import(m, annotation.Find(ann, ns, m.Tag))
			ic.doc.Complexes = append(ic.doc.Complexes, domain.Complex{
				ID:           id,
				Name:         name,
				Constant:     constant,
				Participants: vals.Strings("participants"),
			})
		default:
			ic.logger.Error("species has an unknown SBO term and is skipped",
				zap.String("species", id), zap.String("sbo", sbo))
		}
	}
	return nil
}

func (ic *importContext) readParameters() error {
	ns := ic.schema.Namespace()
	m := ic.schema.Parameter()
	for _, el := range listOf(ic.model, "listOfParameters", "parameter") {
		id := el.SelectAttrValue("id", "")
		p := domain.Parameter{
			ID:       id,
			Name:     el.SelectAttrValue("name", id),
			Symbol:   id,
			Value:    floatAttr(el, "value"),
			Constant: boolAttr(el, "constant", true),
		}
		u, err := ic.unit(el.SelectAttrValue("units", ""))
		if err != nil {
			return err
		}
		p.Unit = u

		vals := annotation.Import(m, annotation.Find(child(el, "annotation"), ns, m.Tag))
		for key, dst := range map[string]**float64{
			"initial_value": &p.InitialValue,
			"lower_bound":   &p.LowerBound,
			"upper_bound":   &p.UpperBound,
			"stderr":        &p.Stderr,
		} {
			v, err := vals.Float(key)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", id, err)
			}
			*dst = v
		}
		ic.doc.Parameters = append(ic.doc.Parameters, p)
	}
	return nil
}

func (ic *importContext) readInitialAssignments() error {
	for _, el := range listOf(ic.model, "listOfInitialAssignments", "initialAssignment") {
		eq, err := ic.readEquation(el, el.SelectAttrValue("symbol", ""), domain.EquationInitialAssignment)
		if err != nil {
			return err
		}
		ic.doc.Equations = append(ic.doc.Equations, eq)
	}
	return nil
}

func (ic *importContext) readRules() error {
	list := child(ic.model, "listOfRules")
	if list == nil {
		return nil
	}
	for _, el := range list.ChildElements() {
		var kind domain.EquationType
		switch el.Tag {
		case "rateRule":
			kind = domain.EquationODE
		case "assignmentRule":
			kind = domain.EquationAssignment
		default:
			ic.logger.Warn("unsupported rule is skipped", zap.String("rule", el.Tag))
			continue
		}
		eq, err := ic.readEquation(el, el.SelectAttrValue("variable", ""), kind)
		if err != nil {
			return err
		}
		ic.doc.Equations = append(ic.doc.Equations, eq)
	}
	return nil
}

// readEquation decodes the MathML of el. Legacy models carry no variables
// annotation; their variables are the species named in the equation.
func (ic *importContext) readEquation(el *etree.Element, target string, kind domain.EquationType) (domain.Equation, error) {
	mathEl := annotation.Find(el, formula.MathMLNamespace, "math")
	if mathEl == nil {
		return domain.Equation{}, domain.Structuralf("read equation", "%s of %q has no math", el.Tag, target)
	}
	expr, err := formula.FromMathML(mathEl)
	if err != nil {
		return domain.Equation{}, &domain.StructuralError{Op: fmt.Sprintf("read %s of %q", el.Tag, target), Err: err}
	}
	eq := domain.Equation{SpeciesID: target, Equation: formula.String(expr), Type: kind}
	if ic.schema.Version() == annotation.V1 {
		eq.Variables = ic.speciesIn(eq.Equation)
	} else {
		eq.Variables = annotation.DecodeVariables(ic.schema, child(el, "annotation"))
	}
	return eq, nil
}

// speciesIn lists the species whose id occurs as a whole word in text.
func (ic *importContext) speciesIn(text string) []domain.Variable {
	var out []domain.Variable
	for _, s := range ic.doc.Species() {
		pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(s.SpeciesID()) + `\b`)
		if pattern.MatchString(text) {
			out = append(out, domain.Variable{ID: s.SpeciesID(), Name: s.SpeciesName(), Symbol: s.SpeciesID()})
		}
	}
	return out
}

func (ic *importContext) readReactions() error {
	ns := ic.schema.Namespace()
	for _, el := range listOf(ic.model, "listOfReactions", "reaction") {
		r := domain.Reaction{
			ID:         el.SelectAttrValue("id", ""),
			Name:       el.SelectAttrValue("name", ""),
			Reversible: boolAttr(el, "reversible", false),
		}
		for _, ref := range listOf(el, "listOfReactants", "speciesReference") {
			r.Species = append(r.Species, domain.ReactionElement{
				SpeciesID:     ref.SelectAttrValue("species", ""),
				Stoichiometry: -stoichiometry(ref),
			})
		}
		for _, ref := range listOf(el, "listOfProducts", "speciesReference") {
			r.Species = append(r.Species, domain.ReactionElement{
				SpeciesID:     ref.SelectAttrValue("species", ""),
				Stoichiometry: stoichiometry(ref),
			})
		}
		for _, ref := range listOf(el, "listOfModifiers", "modifierSpeciesReference") {
			mod := domain.ModifierElement{SpeciesID: ref.SelectAttrValue("species", ""), Role: domain.RoleCatalyst}
			if m := ic.schema.Modifier(); !m.Empty() {
				vals := annotation.Import(m, annotation.Find(child(ref, "annotation"), ns, m.Tag))
				if role := vals.String("modifier_role"); role != "" {
					mod.Role = domain.ModifierRole(strings.ToLower(role))
				}
			}
			r.Modifiers = append(r.Modifiers, mod)
		}
		if law := child(el, "kineticLaw"); law != nil {
			eq, err := ic.readEquation(law, "", domain.EquationRateLaw)
			if err != nil {
				return fmt.Errorf("reaction %s: %w", r.ID, err)
			}
			r.KineticLaw = &eq
		}
		ic.doc.Reactions = append(ic.doc.Reactions, r)
	}
	return nil
}

func stoichiometry(ref *etree.Element) float64 {
	v := floatAttr(ref, "stoichiometry")
	if v == nil {
		return 1
	}
	return math.Abs(*v)
}
