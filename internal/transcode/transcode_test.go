package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"enzymeml/internal/blob"
	"enzymeml/internal/catalog"
	"enzymeml/internal/observability"
	"enzymeml/internal/units"
	"enzymeml/pkg/domain"
)

func ptr(v float64) *float64 { return &v }

func sampleDoc() *domain.Document {
	mM := units.MustParse("mM")
	minutes := units.MustParse("min")
	return &domain.Document{
		Name:           "Hydrolysis",
		Vessels:        []domain.Vessel{{ID: "v0", Name: "Tube", Volume: 1, Unit: units.MustParse("ml"), Constant: true}},
		SmallMolecules: []domain.SmallMolecule{{ID: "s0", Name: "Ester", VesselID: "v0"}},
		Measurements: []domain.Measurement{{
			ID:   "m0",
			Name: "Run",
			SpeciesData: []domain.MeasurementData{{
				SpeciesID: "s0", Initial: ptr(5), DataType: domain.DataConcentration, DataUnit: mM, TimeUnit: minutes,
				Time: []float64{0, 5, 10}, Data: []float64{5, 3, 1},
			}},
		}},
	}
}

type fixture struct {
	store   *blob.Memory
	catalog *catalog.Memory
	metrics *observability.Recorder
	logs    *observer.ObservedLogs
	service *Service
}

func newFixture() *fixture {
	core, logs := observer.New(zapcore.InfoLevel)
	f := &fixture{
		store:   blob.NewMemory(),
		catalog: catalog.NewMemory(),
		metrics: observability.NewRecorder("test"),
		logs:    logs,
	}
	seq := 0
	f.service = NewService(f.store, f.catalog, WithLogger(zap.New(core)), WithMetrics(f.metrics))
	f.service.newID = func() string {
		seq++
		return fmt.Sprintf("run-%d", seq)
	}
	return f
}

func counter(f *fixture, direction string, success bool) float64 {
	families, _ := f.metrics.Registry().Gather()
	for _, fam := range families {
		if fam.GetName() != "test_transcode_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["direction"] == direction && labels["success"] == fmt.Sprint(success) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestExportThenImport(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rec, err := f.service.Export(ctx, sampleDoc(), "")
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.ID)
	assert.Equal(t, "archives/run-1.omex", rec.ArchiveKey)
	assert.Equal(t, catalog.StatusSucceeded, rec.Status)
	assert.Equal(t, catalog.DirectionExport, rec.Direction)
	assert.Equal(t, "Hydrolysis", rec.Name)
	assert.Equal(t, 1, rec.Species)
	assert.Equal(t, 1, rec.Measurements)
	assert.Positive(t, rec.Units)

	info, err := f.store.Head(ctx, rec.ArchiveKey)
	require.NoError(t, err)
	assert.Equal(t, blob.ArchiveContentType, info.ContentType)
	assert.Equal(t, "run-1", info.Metadata["run"])

	doc, imported, err := f.service.Import(ctx, rec.ArchiveKey)
	require.NoError(t, err)
	assert.Equal(t, catalog.DirectionImport, imported.Direction)
	assert.Equal(t, catalog.StatusSucceeded, imported.Status)
	assert.Equal(t, "Hydrolysis", doc.Name)
	require.Len(t, doc.Measurements, 1)
	assert.Equal(t, []float64{5, 3, 1}, doc.Measurements[0].SpeciesData[0].Data)

	runs, err := f.service.Runs(ctx, catalog.Filter{Status: catalog.StatusSucceeded})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, 1.0, counter(f, "export", true))
	assert.Equal(t, 1.0, counter(f, "import", true))
	assert.Equal(t, 2, f.logs.FilterMessage("transcode finished").Len())

	url, err := f.service.Link(ctx, rec.ID, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "memory://archives/run-1.omex", url)
	_, err = f.service.Link(ctx, imported.ID, time.Minute)
	assert.Error(t, err)
}

func TestExportRecordsConsistencyWarnings(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := sampleDoc()
	doc.Reactions = []domain.Reaction{{ID: "r0", Species: []domain.ReactionElement{{SpeciesID: "s0", Stoichiometry: -1}}}}

	rec, err := f.service.Export(ctx, doc, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Warnings)
	stored, err := f.catalog.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Warnings)
}

func TestFailedExportIsCatalogued(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doc := sampleDoc()
	doc.SmallMolecules[0].VesselID = "nowhere"

	rec, err := f.service.Export(ctx, doc, "archives/bad.omex")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, catalog.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Error)

	stored, err := f.catalog.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusFailed, stored.Status)
	_, err = f.store.Head(ctx, "archives/bad.omex")
	assert.ErrorIs(t, err, blob.ErrNotFound)
	assert.Equal(t, 1.0, counter(f, "export", false))
	assert.Equal(t, 1, f.logs.FilterMessage("transcode failed").Len())
}

func TestExportDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.store.Put(ctx, "archives/taken.omex", bytes.NewReader([]byte("x")), blob.PutOptions{})
	require.NoError(t, err)

	rec, err := f.service.Export(ctx, sampleDoc(), "archives/taken.omex")
	assert.ErrorIs(t, err, blob.ErrExists)
	assert.Equal(t, catalog.StatusFailed, rec.Status)
}

func TestImportOfMissingArchive(t *testing.T) {
	f := newFixture()
	_, rec, err := f.service.Import(context.Background(), "archives/missing.omex")
	var lerr *domain.LookupError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "archive", lerr.Kind)
	assert.Equal(t, catalog.StatusFailed, rec.Status)
	assert.Equal(t, catalog.DirectionImport, rec.Direction)
}

func TestWorkerRunsQueuedExports(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	w := NewWorker(f.service, 4, 2)
	w.Start()
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := w.Enqueue(ctx, sampleDoc(), fmt.Sprintf("archives/batch-%d.omex", i))
		require.NoError(t, err)
		assert.Equal(t, catalog.StatusQueued, rec.Status)
		ids = append(ids, rec.ID)
	}
	for _, id := range ids {
		require.Eventually(t, func() bool {
			rec, err := w.Status(ctx, id)
			return err == nil && rec.Status.Terminal()
		}, 5*time.Second, 10*time.Millisecond)
		rec, err := w.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, catalog.StatusSucceeded, rec.Status)
	}
	list, err := f.store.List(ctx, "archives/batch-")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestWorkerQueueFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	w := NewWorker(f.service, 1, 1)

	_, err := w.Enqueue(ctx, sampleDoc(), "")
	require.NoError(t, err)
	_, err = w.Enqueue(ctx, sampleDoc(), "")
	require.True(t, errors.Is(err, ErrQueueFull))

	failed, err := f.catalog.List(ctx, catalog.Filter{Status: catalog.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ErrQueueFull.Error(), failed[0].Error)

	require.NoError(t, w.Stop(ctx))
	_, err = w.Enqueue(ctx, sampleDoc(), "")
	assert.Error(t, err)
}
