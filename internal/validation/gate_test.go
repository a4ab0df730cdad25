package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"enzymeml/internal/units"
	"enzymeml/pkg/domain"
)

func validDoc() *domain.Document {
	mM := units.MustParse("mM")
	perSecond := units.MustParse("1/s")
	return &domain.Document{
		Vessels:        []domain.Vessel{{ID: "v0", Volume: 10, Unit: units.MustParse("ml")}},
		SmallMolecules: []domain.SmallMolecule{{ID: "s0", VesselID: "v0"}, {ID: "s1", VesselID: "v0"}},
		Proteins:       []domain.Protein{{ID: "p0", VesselID: "v0"}},
		Complexes:      []domain.Complex{{ID: "c0", Participants: []string{"p0", "s0"}}},
		Reactions: []domain.Reaction{{ID: "r0", Species: []domain.ReactionElement{
			{SpeciesID: "s0", Stoichiometry: -1},
			{SpeciesID: "s1", Stoichiometry: 1},
		}}},
		Parameters: []domain.Parameter{{ID: "k", Name: "k", Symbol: "k", Unit: perSecond, Constant: true}},
		Measurements: []domain.Measurement{{ID: "m0", SpeciesData: []domain.MeasurementData{
			{SpeciesID: "s0", DataUnit: mM},
		}}},
	}
}

func newObservedGate() (*Gate, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewDefaultGate(WithLogger(zap.New(core))), logs
}

func TestValidDocumentPasses(t *testing.T) {
	gate, logs := newObservedGate()
	require.NoError(t, gate.Validate(context.Background(), validDoc()))
	assert.Zero(t, logs.Len())
}

func TestMissingVesselIsRejected(t *testing.T) {
	doc := validDoc()
	doc.SmallMolecules[1].VesselID = "v9"
	doc.Proteins[0].VesselID = ""

	gate, logs := newObservedGate()
	err := gate.Validate(context.Background(), doc)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)
	assert.Contains(t, verr.Problems[0], "v9")
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestODEGovernedParticipantIsRejected(t *testing.T) {
	doc := validDoc()
	doc.Equations = []domain.Equation{{SpeciesID: "s0", Equation: "-k * s0", Type: domain.EquationODE}}

	err := NewDefaultGate().Validate(context.Background(), doc)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Problems, 1)
	assert.Contains(t, verr.Problems[0], "s0")
}

func TestMissingDataUnitBlocksAndParameterUnitWarns(t *testing.T) {
	doc := validDoc()
	doc.Measurements[0].SpeciesData[0].DataUnit = nil
	doc.Parameters[0].Unit = nil

	gate, logs := newObservedGate()
	res, err := gate.Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, res.Blocking())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestZeroStoichiometryIsRejected(t *testing.T) {
	doc := validDoc()
	doc.Reactions[0].Species[1].Stoichiometry = 0

	gate, logs := newObservedGate()
	err := gate.Validate(context.Background(), doc)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"reaction 'r0': species 's1' has zero stoichiometry"}, verr.Problems)
	assert.Equal(t, 1, logs.FilterField(zap.String("rule", "zero_stoichiometry")).Len())
}

func TestAssignedParameterIsMadeVariable(t *testing.T) {
	doc := validDoc()
	doc.Equations = []domain.Equation{{SpeciesID: "k", Equation: "s0 / s1", Type: domain.EquationAssignment}}

	gate, logs := newObservedGate()
	require.NoError(t, gate.Validate(context.Background(), doc))
	assert.False(t, doc.Parameters[0].Constant)
	require.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Contains(t, logs.All()[0].Message, "non-constant")
}

func TestAssignmentWithoutParameterIsRejected(t *testing.T) {
	doc := validDoc()
	doc.Equations = []domain.Equation{{SpeciesID: "ratio", Equation: "s0 / s1", Type: domain.EquationAssignment}}
	assert.Error(t, NewDefaultGate().Validate(context.Background(), doc))
}

func TestIdentifiersMustBeSIds(t *testing.T) {
	doc := validDoc()
	doc.Reactions[0].ID = "1r"
	doc.Vessels = append(doc.Vessels, domain.Vessel{})

	err := NewDefaultGate().Validate(context.Background(), doc)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, `vessel "": id is required`)
	assert.Contains(t, verr.Problems, `reaction "1r": id is not a valid SBML identifier`)
	assert.True(t, IsSID("_k1"))
	assert.False(t, IsSID("k-1"))
}

func TestCancelledContextStopsEvaluation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDefaultGate().Evaluate(ctx, validDoc())
	assert.ErrorIs(t, err, context.Canceled)
}
