package tabular

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enzymeml/pkg/domain"
)

func measurements() []domain.Measurement {
	return []domain.Measurement{
		{ID: "m0", SpeciesData: []domain.MeasurementData{
			{SpeciesID: "s0", Time: []float64{0, 1, 2}, Data: []float64{10, 8, 6}},
			{SpeciesID: "s1", Time: []float64{0, 1, 2}, Data: []float64{0, 2, 4}},
			{SpeciesID: "p0"},
		}},
		{ID: "m1", SpeciesData: []domain.MeasurementData{
			{SpeciesID: "s1", Time: []float64{0, 5}, Data: []float64{1, 3}},
		}},
	}
}

func TestFromMeasurementsEncode(t *testing.T) {
	table, err := FromMeasurements(measurements())
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "s0", "s1"}, table.Columns)
	assert.Equal(t, []string{"m0", "m0", "m0", "m1", "m1"}, table.IDs)

	var buf bytes.Buffer
	require.NoError(t, table.Encode(&buf, '\t'))
	assert.Equal(t, "time\ts0\ts1\tid\n"+
		"0\t10\t0\tm0\n"+
		"1\t8\t2\tm0\n"+
		"2\t6\t4\tm0\n"+
		"0\t\t1\tm1\n"+
		"5\t\t3\tm1\n", buf.String())
}

func TestFromMeasurementsWithoutData(t *testing.T) {
	table, err := FromMeasurements([]domain.Measurement{{ID: "m0", SpeciesData: []domain.MeasurementData{{SpeciesID: "s0"}}}})
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestMeasurementWithoutSeriesKeepsPlaceholderRow(t *testing.T) {
	ms := append(measurements(), domain.Measurement{ID: "m2", SpeciesData: []domain.MeasurementData{{SpeciesID: "s0"}}})
	table, err := FromMeasurements(ms)
	require.NoError(t, err)
	require.True(t, table.Has("m2"))

	m := ms[2]
	require.NoError(t, table.Slice("m2").Fill(&m))
	assert.Empty(t, m.SpeciesData[0].Time)
	assert.Empty(t, m.SpeciesData[0].Data)

	var buf bytes.Buffer
	require.NoError(t, table.Encode(&buf, '\t'))
	assert.True(t, strings.HasSuffix(buf.String(), "0\t\t\tm2\n"))
}

func TestFromMeasurementsRejectsInconsistentTime(t *testing.T) {
	_, err := FromMeasurements([]domain.Measurement{{ID: "m0", SpeciesData: []domain.MeasurementData{
		{SpeciesID: "s0", Time: []float64{0, 1}, Data: []float64{1, 2}},
		{SpeciesID: "s1", Time: []float64{0, 2}, Data: []float64{1, 2}},
	}}})
	var structural *domain.StructuralError
	assert.True(t, errors.As(err, &structural))

	_, err = FromMeasurements([]domain.Measurement{{ID: "m0", SpeciesData: []domain.MeasurementData{
		{SpeciesID: "s0", Time: []float64{0, 1}, Data: []float64{1}},
	}}})
	assert.Error(t, err)
}

func TestDecodeWithHeaderAndFill(t *testing.T) {
	src := "time\ts0\ts1\tid\n0\t10\t0\tm0\n1\t8\t2\tm0\n0\t\t1\tm1\n"
	table, err := Decode(strings.NewReader(src), '\t', true)
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "s0", "s1"}, table.Columns)
	assert.True(t, table.Has("m1"))
	assert.False(t, table.Has("m9"))

	m := domain.Measurement{ID: "m1", SpeciesData: []domain.MeasurementData{{SpeciesID: "s0"}, {SpeciesID: "s1"}}}
	require.NoError(t, table.Slice("m1").Fill(&m))
	assert.Empty(t, m.SpeciesData[0].Data)
	assert.Equal(t, []float64{0}, m.SpeciesData[1].Time)
	assert.Equal(t, []float64{1}, m.SpeciesData[1].Data)
}

func TestDecodeWithoutHeader(t *testing.T) {
	table, err := Decode(strings.NewReader("0.0,10.0\n1.0,9.5\n"), ',', false)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, table.Columns)
	assert.Nil(t, table.IDs)

	col, err := table.ColumnAt(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 9.5}, col)
	_, err = table.ColumnAt(2)
	assert.Error(t, err)
	assert.Same(t, table, table.Slice("anything"))
}

func TestDecodeRejectsBadCells(t *testing.T) {
	_, err := Decode(strings.NewReader("time\ts0\n0\tabc\n"), '\t', true)
	var structural *domain.StructuralError
	assert.True(t, errors.As(err, &structural))

	_, err = Decode(strings.NewReader("time\ts0\n0\n"), '\t', true)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Table{Columns: []string{"s0"}}).Validate())
	assert.Error(t, (&Table{Columns: []string{"time"}, Rows: [][]float64{{1}}}).Validate())
	assert.NoError(t, (&Table{Columns: []string{"time"}, Rows: [][]float64{{0}}}).Validate())
}

func TestEncodeWritesNaNEmpty(t *testing.T) {
	table := &Table{Columns: []string{"time", "s0"}, Rows: [][]float64{{0, math.NaN()}}}
	var buf bytes.Buffer
	require.NoError(t, table.Encode(&buf, ','))
	assert.Equal(t, "time,s0\n0,\n", buf.String())
}
