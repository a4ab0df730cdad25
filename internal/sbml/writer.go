package sbml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"enzymeml/internal/annotation"
	"enzymeml/internal/formula"
	"enzymeml/internal/omex"
	"enzymeml/internal/tabular"
	"enzymeml/internal/units"
	"enzymeml/internal/validation"
	"enzymeml/pkg/domain"
)

// Result is the output of Serialize. Data is nil when no measurement carries
// a series.
type Result struct {
	Model []byte
	Data  []byte
	// Units is the number of unit definitions written.
	Units int
	// Warnings lists the consistency warnings of the model.
	Warnings []string
}

// Archive packs the result into a COMBINE archive with the model as master.
func (r *Result) Archive() (*omex.Archive, error) {
	a := omex.New()
	if err := a.Add(omex.Entry{Location: ModelLocation, Format: omex.FormatSBML, Master: true}, r.Model); err != nil {
		return nil, err
	}
	if r.Data != nil {
		if err := a.Add(omex.Entry{Location: DataLocation, Format: omex.FormatTSV}, r.Data); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// exportContext carries the state of one Serialize call.
type exportContext struct {
	ctx      context.Context
	doc      *domain.Document
	registry *units.Registry
	schema   annotation.SchemaV2
	logger   *zap.Logger
}

// Serialize validates doc and renders it as an SBML model plus its
// measurement table. doc itself is never modified; repairs and temperature
// conversions are applied to a private copy.
func Serialize(ctx context.Context, doc *domain.Document, opts ...Option) (*Result, error) {
	o := buildOptions(opts)
	work := workingCopy(doc)

	gate := validation.NewDefaultGate(validation.WithLogger(o.logger))
	if err := gate.Validate(ctx, work); err != nil {
		return nil, err
	}
	convertTemperatures(work, o.logger)

	ec := &exportContext{
		ctx:      ctx,
		doc:      work,
		registry: units.Intern(work),
		logger:   o.logger,
	}

	table, err := tabular.FromMeasurements(work.Measurements)
	if err != nil {
		return nil, err
	}
	dataFile := ""
	if table != nil {
		dataFile = DataLocation
	}

	xml, err := ec.build(dataFile)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	warnings, err := checkConsistency(xml.Root(), o.logger, o.verbose)
	if err != nil {
		return nil, err
	}

	xml.Indent(2)
	model, err := xml.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("write model: %w", err)
	}
	res := &Result{Model: model, Units: ec.registry.Len(), Warnings: warnings}
	if table != nil {
		var buf bytes.Buffer
		if err := table.Encode(&buf, '\t'); err != nil {
			return nil, err
		}
		res.Data = buf.Bytes()
	}
	return res, nil
}

// WriteArchive serializes doc and writes the COMBINE archive to w.
func WriteArchive(ctx context.Context, doc *domain.Document, w io.Writer, opts ...Option) error {
	res, err := Serialize(ctx, doc, opts...)
	if err != nil {
		return err
	}
	a, err := res.Archive()
	if err != nil {
		return err
	}
	_, err = a.WriteTo(w)
	return err
}

// workingCopy copies the parts of doc that validation and temperature
// conversion modify.
func workingCopy(doc *domain.Document) *domain.Document {
	work := *doc
	work.Parameters = append([]domain.Parameter(nil), doc.Parameters...)
	work.Measurements = make([]domain.Measurement, len(doc.Measurements))
	for i, m := range doc.Measurements {
		m.SpeciesData = append([]domain.MeasurementData(nil), m.SpeciesData...)
		if m.Temperature != nil {
			t := *m.Temperature
			m.Temperature = &t
		}
		m.TemperatureUnit = m.TemperatureUnit.Clone()
		work.Measurements[i] = m
	}
	return &work
}

// convertTemperatures rewrites Celsius temperatures to Kelvin, keeping the
// exponent, scale and multiplier of the unit.
func convertTemperatures(doc *domain.Document, logger *zap.Logger) {
	for i := range doc.Measurements {
		m := &doc.Measurements[i]
		if m.Temperature == nil || !m.TemperatureUnit.HasKind(domain.UnitCelsius) {
			continue
		}
		logger.Warn(fmt.Sprintf("Converting measurement (%s) temperature from Celsius to Kelvin", m.ID),
			zap.String("measurement", m.ID), zap.Float64("celsius", *m.Temperature))
		kelvin := *m.Temperature + celsiusOffset
		m.Temperature = &kelvin
		for j := range m.TemperatureUnit.BaseUnits {
			if m.TemperatureUnit.BaseUnits[j].Kind == domain.UnitCelsius {
				m.TemperatureUnit.BaseUnits[j].Kind = domain.UnitKelvin
			}
		}
		m.TemperatureUnit.Name = "Kelvin"
	}
}

func (ec *exportContext) build(dataFile string) (*etree.Document, error) {
	xml := etree.NewDocument()
	xml.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := xml.CreateElement("sbml")
	root.CreateAttr("xmlns", coreNS)
	root.CreateAttr("level", "3")
	root.CreateAttr("version", "2")

	model := root.CreateElement("model")
	if ec.doc.Name != "" {
		model.CreateAttr("name", ec.doc.Name)
	}

	data, err := ec.schema.EncodeData(dataFile, ec.doc.Measurements, ec.registry)
	if err != nil {
		return nil, err
	}
	if data != nil {
		model.CreateElement("annotation").AddChild(data)
	}

	steps := []func(*etree.Element) error{
		ec.writeUnits,
		ec.writeCompartments,
		ec.writeSpecies,
		ec.writeParameters,
		ec.writeInitialAssignments,
		ec.writeRules,
		ec.writeReactions,
	}
	for _, step := range steps {
		if err := ec.ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(model); err != nil {
			return nil, err
		}
	}
	return xml, nil
}

func (ec *exportContext) writeUnits(model *etree.Element) error {
	entries := ec.registry.Entries()
	if len(entries) == 0 {
		return nil
	}
	list := model.CreateElement("listOfUnitDefinitions")
	for _, e := range entries {
		def := list.CreateElement("unitDefinition")
		def.CreateAttr("metaid", annotation.MetaID(e.WireID))
		def.CreateAttr("id", e.WireID)
		def.CreateAttr("name", e.DisplayName)
		prov := annotation.Provenance{Identifier: e.Unit.ID, Title: e.Unit.Name}
		if rdf := prov.Element(annotation.MetaID(e.WireID)); rdf != nil {
			def.CreateElement("annotation").AddChild(rdf)
		}
		bases := def.CreateElement("listOfUnits")
		for _, b := range e.Unit.BaseUnits {
			u := bases.CreateElement("unit")
			u.CreateAttr("kind", string(b.Kind))
			u.CreateAttr("exponent", fmt.Sprint(b.Exponent))
			u.CreateAttr("scale", fmt.Sprint(b.Scale))
			u.CreateAttr("multiplier", formatFloat(b.EffectiveMultiplier()))
		}
	}
	return nil
}

func (ec *exportContext) writeCompartments(model *etree.Element) error {
	if len(ec.doc.Vessels) == 0 {
		return nil
	}
	list := model.CreateElement("listOfCompartments")
	for _, v := range ec.doc.Vessels {
		if v.Unit == nil {
			return domain.Structuralf("write compartment", "vessel %s has no unit", v.ID)
		}
		unitID, err := ec.registry.IDOf(v.Unit)
		if err != nil {
			return err
		}
		c := list.CreateElement("compartment")
		c.CreateAttr("id", v.ID)
		if v.Name != "" {
			c.CreateAttr("name", v.Name)
		}
		c.CreateAttr("spatialDimensions", "3")
		c.CreateAttr("size", formatFloat(v.Volume))
		c.CreateAttr("units", unitID)
		setBool(c, "constant", v.Constant)
		if model.SelectAttr("volumeUnits") == nil {
			model.CreateAttr("volumeUnits", unitID)
		}
	}
	return nil
}

func (ec *exportContext) writeSpecies(model *etree.Element) error {
	species := ec.doc.Species()
	if len(species) == 0 {
		return nil
	}
	list := model.CreateElement("listOfSpecies")
	for _, s := range species {
		el := list.CreateElement("species")
		el.CreateAttr("id", s.SpeciesID())
		if s.SpeciesName() != "" {
			el.CreateAttr("name", s.SpeciesName())
		}
		if vessel := ec.compartmentOf(s); vessel != "" {
			el.CreateAttr("compartment", vessel)
		}
		el.CreateAttr("hasOnlySubstanceUnits", "false")
		el.CreateAttr("boundaryCondition", "false")

		var (
			island *etree.Element
			refs   []string
			err    error
		)
		switch x := s.(type) {
		case *domain.SmallMolecule:
			el.CreateAttr("sboTerm", sboSmallMolecule)
			setBool(el, "constant", x.Constant)
			refs = x.References
			island, err = annotation.Export(ec.schema.Namespace(), ec.schema.SmallMolecule(), annotation.Values{
				"inchikey":         x.InChIKey,
				"canonical_smiles": x.CanonicalSMILES,
			}, nil)
		case *domain.Protein:
			el.CreateAttr("sboTerm", sboProtein)
			setBool(el, "constant", x.Constant)
			refs = x.References
			island, err = annotation.Export(ec.schema.Namespace(), ec.schema.Protein(), annotation.Values{
				"ecnumber":        x.ECNumber,
				"organism":        x.Organism,
				"organism_tax_id": x.OrganismTaxID,
				"sequence":        x.Sequence,
			}, nil)
		case *domain.Complex:
			el.CreateAttr("sboTerm", sboComplex)
			el.CreateAttr("constant", "true")
			island, err = annotation.Export(ec.schema.Namespace(), ec.schema.Complex(), annotation.Values{
				"participants": x.Participants,
			}, nil)
		}
		if err != nil {
			return err
		}
		if s.Kind() != domain.KindComplex {
			if initial, _, ok := ec.doc.FirstInitial(s.SpeciesID()); ok && initial != nil {
				el.CreateAttr("initialConcentration", formatFloat(*initial))
			}
		}

		rdf := annotation.Provenance{References: refs}.Element(annotation.MetaID(s.SpeciesID()))
		if rdf != nil {
			el.CreateAttr("metaid", annotation.MetaID(s.SpeciesID()))
		}
		addAnnotation(el, rdf, island)
	}
	return nil
}

// compartmentOf returns the vessel of a species. Complexes have none of
// their own and borrow the vessel of their first located participant, or
// else the first vessel of the document.
func (ec *exportContext) compartmentOf(s domain.Species) string {
	if s.Kind() != domain.KindComplex {
		return s.Vessel()
	}
	c := s.(*domain.Complex)
	for _, id := range c.Participants {
		if p, ok := ec.doc.FindSpecies(id); ok && p.Vessel() != "" {
			return p.Vessel()
		}
	}
	if len(ec.doc.Vessels) > 0 {
		return ec.doc.Vessels[0].ID
	}
	return ""
}

func (ec *exportContext) writeParameters(model *etree.Element) error {
	if len(ec.doc.Parameters) == 0 {
		return nil
	}
	list := model.CreateElement("listOfParameters")
	for i := range ec.doc.Parameters {
		p := &ec.doc.Parameters[i]
		el := list.CreateElement("parameter")
		el.CreateAttr("id", p.ID)
		if p.Name != "" {
			el.CreateAttr("name", p.Name)
		}
		if v := p.EffectiveValue(); v != nil && !math.IsNaN(*v) {
			el.CreateAttr("value", formatFloat(*v))
		}
		if p.Unit != nil {
			unitID, err := ec.registry.IDOf(p.Unit)
			if err != nil {
				return err
			}
			el.CreateAttr("units", unitID)
		}
		setBool(el, "constant", p.Constant)

		island, err := annotation.Export(ec.schema.Namespace(), ec.schema.Parameter(), annotation.Values{
			"lower_bound": p.LowerBound,
			"upper_bound": p.UpperBound,
			"stderr":      p.Stderr,
		}, nil)
		if err != nil {
			return err
		}
		addAnnotation(el, island)
	}
	return nil
}

func (ec *exportContext) writeInitialAssignments(model *etree.Element) error {
	eqs := ec.doc.EquationsOfType(domain.EquationInitialAssignment)
	if len(eqs) == 0 {
		return nil
	}
	list := model.CreateElement("listOfInitialAssignments")
	for _, eq := range eqs {
		el := list.CreateElement("initialAssignment")
		el.CreateAttr("symbol", eq.SpeciesID)
		if err := ec.writeMath(el, eq); err != nil {
			return err
		}
	}
	return nil
}

func (ec *exportContext) writeRules(model *etree.Element) error {
	var list *etree.Element
	for _, eq := range ec.doc.Equations {
		var tag string
		switch eq.Type {
		case domain.EquationODE:
			tag = "rateRule"
		case domain.EquationAssignment:
			tag = "assignmentRule"
		default:
			continue
		}
		if list == nil {
			list = model.CreateElement("listOfRules")
		}
		el := list.CreateElement(tag)
		el.CreateAttr("variable", eq.SpeciesID)
		if err := ec.writeMath(el, eq); err != nil {
			return err
		}
	}
	return nil
}

// writeMath appends the variables annotation and the MathML of eq to el.
func (ec *exportContext) writeMath(el *etree.Element, eq domain.Equation) error {
	expr, err := formula.Parse(eq.Equation)
	if err != nil {
		return err
	}
	vars, err := ec.schema.EncodeVariables(eq.Variables)
	if err != nil {
		return err
	}
	addAnnotation(el, vars)
	el.AddChild(formula.ToMathML(expr))
	return nil
}

func (ec *exportContext) writeReactions(model *etree.Element) error {
	if len(ec.doc.Reactions) == 0 {
		return nil
	}
	list := model.CreateElement("listOfReactions")
	for i := range ec.doc.Reactions {
		r := &ec.doc.Reactions[i]
		el := list.CreateElement("reaction")
		el.CreateAttr("id", r.ID)
		if r.Name != "" {
			el.CreateAttr("name", r.Name)
		}
		setBool(el, "reversible", r.Reversible)

		var reactants, products []domain.ReactionElement
		for _, e := range r.Species {
			switch {
			case e.Stoichiometry < 0:
				reactants = append(reactants, e)
			case e.Stoichiometry > 0:
				products = append(products, e)
			default:
				return domain.Structuralf("write reaction "+r.ID, "species %s has zero stoichiometry", e.SpeciesID)
			}
		}
		writeParticipants(el, "listOfReactants", reactants)
		writeParticipants(el, "listOfProducts", products)

		if len(r.Modifiers) > 0 {
			mods := el.CreateElement("listOfModifiers")
			for _, m := range r.Modifiers {
				ref := mods.CreateElement("modifierSpeciesReference")
				ref.CreateAttr("species", m.SpeciesID)
				island, err := annotation.Export(ec.schema.Namespace(), ec.schema.Modifier(), annotation.Values{
					"modifier_role": string(m.Role),
				}, nil)
				if err != nil {
					return err
				}
				addAnnotation(ref, island)
			}
		}

		if r.KineticLaw != nil {
			if err := ec.writeMath(el.CreateElement("kineticLaw"), *r.KineticLaw); err != nil {
				return fmt.Errorf("reaction %s: %w", r.ID, err)
			}
		}
	}
	return nil
}

func writeParticipants(reaction *etree.Element, tag string, elems []domain.ReactionElement) {
	if len(elems) == 0 {
		return
	}
	list := reaction.CreateElement(tag)
	for _, e := range elems {
		ref := list.CreateElement("speciesReference")
		ref.CreateAttr("species", e.SpeciesID)
		ref.CreateAttr("stoichiometry", formatFloat(math.Abs(e.Stoichiometry)))
		ref.CreateAttr("constant", "false")
	}
}

// addAnnotation wraps the non-nil children in an <annotation> element. The
// annotation is inserted before any MathML so the SBML child order holds.
func addAnnotation(el *etree.Element, children ...*etree.Element) {
	var ann *etree.Element
	for _, c := range children {
		if c == nil {
			continue
		}
		if ann == nil {
			ann = etree.NewElement("annotation")
			el.InsertChildAt(0, ann)
		}
		ann.AddChild(c)
	}
}
