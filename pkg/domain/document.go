package domain

// Document aggregates everything an EnzymeML archive carries. IDs are unique
// within each collection and species, parameters and equation targets share
// one name space.
type Document struct {
	Name           string          `json:"name"`
	Vessels        []Vessel        `json:"vessels"`
	Proteins       []Protein       `json:"proteins"`
	Complexes      []Complex       `json:"complexes"`
	SmallMolecules []SmallMolecule `json:"small_molecules"`
	Reactions      []Reaction      `json:"reactions"`
	Measurements   []Measurement   `json:"measurements"`
	Equations      []Equation      `json:"equations"`
	Parameters     []Parameter     `json:"parameters"`
}

// Species returns small molecules, proteins and complexes, in that order.
func (d *Document) Species() []Species {
	out := make([]Species, 0, len(d.Proteins)+len(d.Complexes)+len(d.SmallMolecules))
	for i := range d.SmallMolecules {
		out = append(out, &d.SmallMolecules[i])
	}
	for i := range d.Proteins {
		out = append(out, &d.Proteins[i])
	}
	for i := range d.Complexes {
		out = append(out, &d.Complexes[i])
	}
	return out
}

// SpeciesIDs lists species ids in the order of Species.
func (d *Document) SpeciesIDs() []string {
	species := d.Species()
	ids := make([]string, 0, len(species))
	for _, s := range species {
		ids = append(ids, s.SpeciesID())
	}
	return ids
}

// FindSpecies looks a species up by id.
func (d *Document) FindSpecies(id string) (Species, bool) {
	for _, s := range d.Species() {
		if s.SpeciesID() == id {
			return s, true
		}
	}
	return nil, false
}

// FindVessel looks a vessel up by id.
func (d *Document) FindVessel(id string) (*Vessel, bool) {
	for i := range d.Vessels {
		if d.Vessels[i].ID == id {
			return &d.Vessels[i], true
		}
	}
	return nil, false
}

// ParameterByName returns the parameter whose name equals name.
func (d *Document) ParameterByName(name string) (*Parameter, bool) {
	for i := range d.Parameters {
		if d.Parameters[i].Name == name {
			return &d.Parameters[i], true
		}
	}
	return nil, false
}

// FindParameter returns the parameter with the given id.
func (d *Document) FindParameter(id string) (*Parameter, bool) {
	for i := range d.Parameters {
		if d.Parameters[i].ID == id {
			return &d.Parameters[i], true
		}
	}
	return nil, false
}

// AddParameter appends p unless a parameter with the same name exists. It
// reports whether p was added and returns the stored parameter either way.
func (d *Document) AddParameter(p Parameter) (*Parameter, bool) {
	if existing, ok := d.ParameterByName(p.Name); ok {
		return existing, false
	}
	d.Parameters = append(d.Parameters, p)
	return &d.Parameters[len(d.Parameters)-1], true
}

// EquationsOfType filters equations by classification.
func (d *Document) EquationsOfType(t EquationType) []Equation {
	var out []Equation
	for _, eq := range d.Equations {
		if eq.Type == t {
			out = append(out, eq)
		}
	}
	return out
}

// FirstInitial returns the initial value recorded for a species by the first
// measurement that lists it.
func (d *Document) FirstInitial(speciesID string) (*float64, *UnitDefinition, bool) {
	for i := range d.Measurements {
		if data := d.Measurements[i].DataFor(speciesID); data != nil {
			return data.Initial, data.DataUnit, true
		}
	}
	return nil, nil, false
}
