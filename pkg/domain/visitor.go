package domain

// Node is implemented by every document model type.
type Node interface {
	Accept(v Visitor)
}

// Visitor receives each node of a document walk. A node is visited before its
// children; units are visited wherever they are referenced.
type Visitor interface {
	VisitDocument(*Document)
	VisitVessel(*Vessel)
	VisitSmallMolecule(*SmallMolecule)
	VisitProtein(*Protein)
	VisitComplex(*Complex)
	VisitReaction(*Reaction)
	VisitReactionElement(*ReactionElement)
	VisitModifier(*ModifierElement)
	VisitEquation(*Equation)
	VisitParameter(*Parameter)
	VisitMeasurement(*Measurement)
	VisitMeasurementData(*MeasurementData)
	VisitUnit(*UnitDefinition)
}

// BaseVisitor implements Visitor with no-ops. Embed it and override the
// methods of interest.
type BaseVisitor struct{}

func (BaseVisitor) VisitDocument(*Document)               {}
func (BaseVisitor) VisitVessel(*Vessel)                   {}
func (BaseVisitor) VisitSmallMolecule(*SmallMolecule)     {}
func (BaseVisitor) VisitProtein(*Protein)                 {}
func (BaseVisitor) VisitComplex(*Complex)                 {}
func (BaseVisitor) VisitReaction(*Reaction)               {}
func (BaseVisitor) VisitReactionElement(*ReactionElement) {}
func (BaseVisitor) VisitModifier(*ModifierElement)        {}
func (BaseVisitor) VisitEquation(*Equation)               {}
func (BaseVisitor) VisitParameter(*Parameter)             {}
func (BaseVisitor) VisitMeasurement(*Measurement)         {}
func (BaseVisitor) VisitMeasurementData(*MeasurementData) {}
func (BaseVisitor) VisitUnit(*UnitDefinition)             {}

// Accept walks vessels, proteins, complexes, small molecules, reactions,
// measurements, equations and parameters in that order.
func (d *Document) Accept(v Visitor) {
	v.VisitDocument(d)
	for i := range d.Vessels {
		d.Vessels[i].Accept(v)
	}
	for i := range d.Proteins {
		d.Proteins[i].Accept(v)
	}
	for i := range d.Complexes {
		d.Complexes[i].Accept(v)
	}
	for i := range d.SmallMolecules {
		d.SmallMolecules[i].Accept(v)
	}
	for i := range d.Reactions {
		d.Reactions[i].Accept(v)
	}
	for i := range d.Measurements {
		d.Measurements[i].Accept(v)
	}
	for i := range d.Equations {
		d.Equations[i].Accept(v)
	}
	for i := range d.Parameters {
		d.Parameters[i].Accept(v)
	}
}

func (x *Vessel) Accept(v Visitor) {
	v.VisitVessel(x)
	x.Unit.Accept(v)
}

func (s *SmallMolecule) Accept(v Visitor) { v.VisitSmallMolecule(s) }
func (p *Protein) Accept(v Visitor)       { v.VisitProtein(p) }
func (c *Complex) Accept(v Visitor)       { v.VisitComplex(c) }

func (r *Reaction) Accept(v Visitor) {
	v.VisitReaction(r)
	if r.KineticLaw != nil {
		r.KineticLaw.Accept(v)
	}
	for i := range r.Species {
		r.Species[i].Accept(v)
	}
	for i := range r.Modifiers {
		r.Modifiers[i].Accept(v)
	}
}

func (e *ReactionElement) Accept(v Visitor) { v.VisitReactionElement(e) }
func (m *ModifierElement) Accept(v Visitor) { v.VisitModifier(m) }
func (e *Equation) Accept(v Visitor)        { v.VisitEquation(e) }

func (p *Parameter) Accept(v Visitor) {
	v.VisitParameter(p)
	p.Unit.Accept(v)
}

func (m *Measurement) Accept(v Visitor) {
	v.VisitMeasurement(m)
	for i := range m.SpeciesData {
		m.SpeciesData[i].Accept(v)
	}
	m.TemperatureUnit.Accept(v)
}

func (d *MeasurementData) Accept(v Visitor) {
	v.VisitMeasurementData(d)
	d.DataUnit.Accept(v)
	d.TimeUnit.Accept(v)
}

// FuncVisitor adapts plain functions to a Visitor; nil fields are skipped.
type FuncVisitor struct {
	BaseVisitor
	Unit            func(*UnitDefinition)
	ReactionElement func(*ReactionElement)
	MeasurementData func(*MeasurementData)
}

func (f FuncVisitor) VisitUnit(u *UnitDefinition) {
	if f.Unit != nil {
		f.Unit(u)
	}
}

func (f FuncVisitor) VisitReactionElement(e *ReactionElement) {
	if f.ReactionElement != nil {
		f.ReactionElement(e)
	}
}

func (f FuncVisitor) VisitMeasurementData(d *MeasurementData) {
	if f.MeasurementData != nil {
		f.MeasurementData(d)
	}
}
