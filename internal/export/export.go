// Package export writes the gold layer to its destinations.
package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"receivables/internal/logger"
	"receivables/pkg/models"
)

// Columns is the output header, in order.
var Columns = []string{
	"report_date",
	"client",
	"concept",
	"amount",
	"is_current_month",
	"invoice_count",
	"invoice_list",
	"variance",
}

// Sink accepts the complete, ordered gold layer.
type Sink interface {
	Name() string
	Write(ctx context.Context, rows []models.GoldRow) error
}

// Record serializes a row as text, one field per column.
func Record(r models.GoldRow) []string {
	return []string{
		r.ReportDateString(),
		r.Client,
		r.Concept.String(),
		r.Amount.String(),
		strconv.FormatBool(r.IsCurrentMonth),
		strconv.Itoa(r.InvoiceCount),
		r.InvoiceList(),
		r.Variance.String(),
	}
}

// Values serializes a row for a spreadsheet: amounts stay numeric, booleans stay booleans.
func Values(r models.GoldRow) []interface{} {
	return []interface{}{
		r.ReportDateString(),
		r.Client,
		r.Concept.String(),
		r.Amount.InexactFloat64(),
		r.IsCurrentMonth,
		r.InvoiceCount,
		r.InvoiceList(),
		r.Variance.InexactFloat64(),
	}
}

// Multi writes to every sink and fails when any of them fails.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks. Nil sinks are ignored.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name lists the combined sinks.
func (m *Multi) Name() string {
	return fmt.Sprintf("multi(%d)", len(m.sinks))
}

// Names lists the name of every combined sink.
func (m *Multi) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Write runs every sink even after a failure and joins the errors.
func (m *Multi) Write(ctx context.Context, rows []models.GoldRow) error {
	log := logger.WithContext(ctx, "export")

	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rows); err != nil {
			log.Error().Err(err).Str("sink", s.Name()).Msg("Export failed")
			errs = append(errs, &SinkError{Sink: s.Name(), Err: err})
			continue
		}
		log.Info().Str("sink", s.Name()).Int("rows", len(rows)).Msg("Export completed")
	}
	return errors.Join(errs...)
}

// SinkError ties a write failure to its sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Memory keeps the last written rows. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	rows   []models.GoldRow
	writes int
	Err    error
}

// Name implements Sink.
func (m *Memory) Name() string { return "memory" }

// Write implements Sink.
func (m *Memory) Write(_ context.Context, rows []models.GoldRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.rows = append([]models.GoldRow(nil), rows...)
	m.writes++
	return nil
}

// Rows returns a copy of the last written rows.
func (m *Memory) Rows() []models.GoldRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.GoldRow(nil), m.rows...)
}

// Writes returns how many times Write succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
