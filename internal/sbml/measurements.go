package sbml

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"enzymeml/internal/annotation"
	"enzymeml/internal/omex"
	"enzymeml/internal/tabular"
	"enzymeml/pkg/domain"
)

const legacyTimeColumn = "time"

// readMeasurements rebuilds the measurements from the data annotation and
// the tabular entries of the archive.
func (ic *importContext) readMeasurements() error {
	host := ic.model
	if ic.schema.DataOnReactions() {
		host = child(ic.model, "listOfReactions")
	}
	el := annotation.Find(child(host, "annotation"), ic.schema.Namespace(), "data")
	data, err := ic.schema.DecodeData(el)
	if err != nil {
		return &domain.StructuralError{Op: "read data annotation", Err: err}
	}
	if data == nil || len(data.Measurements) == 0 {
		return nil
	}

	var table *tabular.Table
	if ic.schema.Version() != annotation.V1 {
		if table, err = ic.sharedTable(); err != nil {
			return err
		}
	}

	for _, meta := range data.Measurements {
		if err := ic.ctx.Err(); err != nil {
			return err
		}
		m, err := ic.measurement(meta)
		if err != nil {
			return err
		}
		switch {
		case meta.Columns != nil:
			err = ic.fillLegacy(&m, meta)
		case table != nil:
			if !table.Has(m.ID) {
				return &domain.LookupError{Kind: "measurement", ID: m.ID}
			}
			err = table.Slice(m.ID).Fill(&m)
		}
		if err != nil {
			return fmt.Errorf("measurement %s: %w", m.ID, err)
		}
		ic.doc.Measurements = append(ic.doc.Measurements, m)
	}
	return nil
}

// measurement builds a measurement with its metadata and initial values but
// without series.
func (ic *importContext) measurement(meta annotation.MeasurementMeta) (domain.Measurement, error) {
	m := domain.Measurement{
		ID:          meta.ID,
		Name:        meta.Name,
		PH:          meta.PH,
		Temperature: meta.Temperature,
	}
	if m.Name == "" {
		m.Name = m.ID
	}
	var err error
	if m.TemperatureUnit, err = ic.unit(meta.TemperatureUnit); err != nil {
		return m, err
	}
	timeUnit, err := ic.unit(meta.TimeUnit)
	if err != nil {
		return m, err
	}
	for _, s := range meta.Species {
		d := domain.MeasurementData{SpeciesID: s.SpeciesID, Initial: s.Initial}
		if d.DataType, err = domain.ParseDataType(s.Type); err != nil {
			return m, err
		}
		if d.DataUnit, err = ic.unit(s.Unit); err != nil {
			return m, err
		}
		d.TimeUnit = timeUnit.Clone()
		m.SpeciesData = append(m.SpeciesData, d)
	}
	return m, nil
}

// sharedTable decodes the first tabular entry of the archive. Nil is
// returned when the archive has none; measurements then carry initial
// values only.
func (ic *importContext) sharedTable() (*tabular.Table, error) {
	entry, ok := ic.archive.Tabular()
	if !ok {
		ic.logger.Debug("archive has no measurement table")
		return nil, nil
	}
	return ic.decodeTable(entry)
}

func (ic *importContext) decodeTable(entry omex.Entry) (*tabular.Table, error) {
	raw, err := ic.archive.Bytes(entry.Location)
	if err != nil {
		return nil, err
	}
	table, err := tabular.Decode(bytes.NewReader(raw), entry.Separator(), entry.HasHeader())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Location, err)
	}
	return table, nil
}

// legacyEntry finds the archive entry of a legacy measurement file. Legacy
// files are comma separated and have no header unless the manifest says
// otherwise.
func (ic *importContext) legacyEntry(location string) omex.Entry {
	for _, e := range ic.archive.Entries() {
		if trimDot(e.Location) == trimDot(location) {
			return e
		}
	}
	return omex.Entry{Location: location, Format: omex.FormatCSV}
}

func trimDot(location string) string {
	return strings.TrimPrefix(location, "./")
}

// fillLegacy maps the indexed columns of a legacy file onto m. Time columns
// set the time axis of every series; species columns set data and unit.
func (ic *importContext) fillLegacy(m *domain.Measurement, meta annotation.MeasurementMeta) error {
	table, err := ic.decodeTable(ic.legacyEntry(meta.File))
	if err != nil {
		return err
	}
	for _, col := range meta.Columns {
		values, err := table.ColumnAt(col.Index)
		if err != nil {
			return err
		}
		unit, err := ic.unit(col.Unit)
		if err != nil {
			return err
		}
		if col.Type == legacyTimeColumn {
			for i := range m.SpeciesData {
				m.SpeciesData[i].Time = append([]float64(nil), values...)
				m.SpeciesData[i].TimeUnit = unit.Clone()
			}
			continue
		}
		d := m.DataFor(col.SpeciesID)
		if d == nil {
			return &domain.LookupError{Kind: "species data", ID: col.SpeciesID}
		}
		d.Data = values
		d.DataUnit = unit
	}
	for i := range m.SpeciesData {
		if len(m.SpeciesData[i].Data) == 0 {
			m.SpeciesData[i].Time = nil
		}
	}
	ic.logger.Debug("mapped legacy measurement file", zap.String("measurement", m.ID), zap.String("file", meta.File))
	return nil
}
