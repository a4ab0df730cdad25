package domain

// SpeciesKind tags the three species variants.
type SpeciesKind string

// Species variants, matching the SBO terms written on the wire.
const (
	KindSmallMolecule SpeciesKind = "small_molecule"
	KindProtein       SpeciesKind = "protein"
	KindComplex       SpeciesKind = "complex"
)

// Species is implemented by SmallMolecule, Protein and Complex.
type Species interface {
	Node
	SpeciesID() string
	SpeciesName() string
	// Vessel returns the vessel id; complexes return "".
	Vessel() string
	IsConstant() bool
	Kind() SpeciesKind
}

// Vessel is a reaction compartment.
type Vessel struct {
	ID       string          `json:"id" validate:"required,sid"`
	Name     string          `json:"name"`
	Volume   float64         `json:"volume"`
	Unit     *UnitDefinition `json:"unit,omitempty"`
	Constant bool            `json:"constant"`
}

// SmallMolecule is a low molecular weight compound.
type SmallMolecule struct {
	ID              string   `json:"id" validate:"required,sid"`
	Name            string   `json:"name"`
	VesselID        string   `json:"vessel_id"`
	Constant        bool     `json:"constant"`
	CanonicalSMILES string   `json:"canonical_smiles,omitempty"`
	InChI           string   `json:"inchi,omitempty"`
	InChIKey        string   `json:"inchikey,omitempty"`
	References      []string `json:"references,omitempty"`
}

func (s *SmallMolecule) SpeciesID() string   { return s.ID }
func (s *SmallMolecule) SpeciesName() string { return s.Name }
func (s *SmallMolecule) Vessel() string      { return s.VesselID }
func (s *SmallMolecule) IsConstant() bool    { return s.Constant }
func (s *SmallMolecule) Kind() SpeciesKind   { return KindSmallMolecule }

// Protein is an enzyme or other polypeptide.
type Protein struct {
	ID            string   `json:"id" validate:"required,sid"`
	Name          string   `json:"name"`
	VesselID      string   `json:"vessel_id"`
	Constant      bool     `json:"constant"`
	Sequence      string   `json:"sequence,omitempty"`
	ECNumber      string   `json:"ecnumber,omitempty"`
	Organism      string   `json:"organism,omitempty"`
	OrganismTaxID string   `json:"organism_tax_id,omitempty"`
	References    []string `json:"references,omitempty"`
}

func (p *Protein) SpeciesID() string   { return p.ID }
func (p *Protein) SpeciesName() string { return p.Name }
func (p *Protein) Vessel() string      { return p.VesselID }
func (p *Protein) IsConstant() bool    { return p.Constant }
func (p *Protein) Kind() SpeciesKind   { return KindProtein }

// Complex groups other species.
type Complex struct {
	ID           string   `json:"id" validate:"required,sid"`
	Name         string   `json:"name"`
	Constant     bool     `json:"constant"`
	Participants []string `json:"participants,omitempty"`
}

func (c *Complex) SpeciesID() string   { return c.ID }
func (c *Complex) SpeciesName() string { return c.Name }
func (c *Complex) Vessel() string      { return "" }
func (c *Complex) IsConstant() bool    { return c.Constant }
func (c *Complex) Kind() SpeciesKind   { return KindComplex }

// Parameter is a named quantity referenced by equations.
type Parameter struct {
	ID           string          `json:"id" validate:"required,sid"`
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Value        *float64        `json:"value,omitempty"`
	InitialValue *float64        `json:"initial_value,omitempty"`
	Unit         *UnitDefinition `json:"unit,omitempty"`
	Constant     bool            `json:"constant"`
	LowerBound   *float64        `json:"lower_bound,omitempty"`
	UpperBound   *float64        `json:"upper_bound,omitempty"`
	Stderr       *float64        `json:"stderr,omitempty"`
}

// EffectiveValue returns Value, falling back to InitialValue.
func (p *Parameter) EffectiveValue() *float64 {
	if p.Value != nil {
		return p.Value
	}
	return p.InitialValue
}

// EquationType classifies an equation.
type EquationType string

// Equation classifications.
const (
	EquationODE               EquationType = "ode"
	EquationAssignment        EquationType = "assignment"
	EquationInitialAssignment EquationType = "initialAssignment"
	EquationRateLaw           EquationType = "rateLaw"
)

// Variable is a symbol of an equation that refers to a species or another
// equation target.
type Variable struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Equation is a classified algebraic expression. SpeciesID is the target of
// the equation and is empty for rate laws.
type Equation struct {
	SpeciesID string       `json:"species_id,omitempty"`
	Equation  string       `json:"equation"`
	Type      EquationType `json:"equation_type"`
	Variables []Variable   `json:"variables,omitempty"`
}

// ReactionElement is a reaction participant. Negative stoichiometry marks a
// reactant, positive a product.
type ReactionElement struct {
	SpeciesID     string  `json:"species_id"`
	Stoichiometry float64 `json:"stoichiometry"`
}

// ModifierRole describes how a modifier acts on a reaction.
type ModifierRole string

// Modifier roles understood by the annotation layer.
const (
	RoleActivator   ModifierRole = "activator"
	RoleAdditive    ModifierRole = "additive"
	RoleBiocatalyst ModifierRole = "biocatalyst"
	RoleBuffer      ModifierRole = "buffer"
	RoleCatalyst    ModifierRole = "catalyst"
	RoleInhibitor   ModifierRole = "inhibitor"
	RoleSolvent     ModifierRole = "solvent"
)

// ModifierElement is a species that affects a reaction without being consumed.
type ModifierElement struct {
	SpeciesID string       `json:"species_id"`
	Role      ModifierRole `json:"role,omitempty"`
}

// Reaction converts reactants into products.
type Reaction struct {
	ID         string            `json:"id" validate:"required,sid"`
	Name       string            `json:"name"`
	Reversible bool              `json:"reversible"`
	KineticLaw *Equation         `json:"kinetic_law,omitempty"`
	Species    []ReactionElement `json:"species"`
	Modifiers  []ModifierElement `json:"modifiers,omitempty"`
}

// DataType describes what a measured series contains.
type DataType string

// Measurement data types.
const (
	DataAbsorbance    DataType = "abs"
	DataBiomass       DataType = "biomass"
	DataConcentration DataType = "conc"
	DataConversion    DataType = "conversion"
	DataFeed          DataType = "feed"
	DataPeakArea      DataType = "peak-area"
)

var dataTypeNames = map[string]DataType{
	"ABSORBANCE":    DataAbsorbance,
	"BIOMASS":       DataBiomass,
	"CONCENTRATION": DataConcentration,
	"CONVERSION":    DataConversion,
	"FEED":          DataFeed,
	"PEAK_AREA":     DataPeakArea,
}

// ParseDataType accepts either the wire value ("conc") or the enumeration
// name ("CONCENTRATION"). An empty string yields DataConcentration.
func ParseDataType(s string) (DataType, error) {
	if s == "" {
		return DataConcentration, nil
	}
	for _, dt := range dataTypeNames {
		if string(dt) == s {
			return dt, nil
		}
	}
	if dt, ok := dataTypeNames[s]; ok {
		return dt, nil
	}
	return "", &LookupError{Kind: "data type", ID: s}
}

// MeasurementData is the series of one species within a measurement.
type MeasurementData struct {
	SpeciesID string          `json:"species_id"`
	Initial   *float64        `json:"initial,omitempty"`
	DataType  DataType        `json:"data_type,omitempty"`
	DataUnit  *UnitDefinition `json:"data_unit,omitempty"`
	TimeUnit  *UnitDefinition `json:"time_unit,omitempty"`
	Time      []float64       `json:"time,omitempty"`
	Data      []float64       `json:"data,omitempty"`
}

// Measurement is one experimental run.
type Measurement struct {
	ID              string            `json:"id" validate:"required,sid"`
	Name            string            `json:"name"`
	PH              *float64          `json:"ph,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	TemperatureUnit *UnitDefinition   `json:"temperature_unit,omitempty"`
	SpeciesData     []MeasurementData `json:"species_data"`
}

// DataFor returns the series of a species, or nil.
func (m *Measurement) DataFor(speciesID string) *MeasurementData {
	for i := range m.SpeciesData {
		if m.SpeciesData[i].SpeciesID == speciesID {
			return &m.SpeciesData[i]
		}
	}
	return nil
}
