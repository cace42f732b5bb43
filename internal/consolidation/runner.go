// Package consolidation runs the full pipeline: load the ledger, build the
// snapshot axis, aggregate, compute variance and export.
package consolidation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"receivables/internal/aging"
	"receivables/internal/export"
	"receivables/internal/ledger"
	"receivables/internal/logger"
	"receivables/internal/metrics"
	"receivables/internal/notify"
	"receivables/pkg/models"
)

// InvoiceLoader supplies the consolidated ledger.
type InvoiceLoader interface {
	Load(ctx context.Context) ([]models.Invoice, error)
}

// Options tune a run.
type Options struct {
	// Now returns the wall clock; defaults to time.Now.
	Now func() time.Time

	// Location decides the calendar date of Now; defaults to time.Local.
	Location *time.Location

	// AsOf, when set, replaces the current date. Runs with the same AsOf over
	// the same ledger produce identical output.
	AsOf time.Time

	// DryRun computes everything but writes nothing.
	DryRun bool

	// Workers bounds engine parallelism; zero means one per CPU.
	Workers int

	// MetricsTextfile, when set, receives the run metrics.
	MetricsTextfile string
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Status    string
	AsOf      time.Time
	Snapshots aging.SnapshotRange
	Invoices  int
	Clients   int
	Rows      []models.GoldRow
	Exported  bool
}

// Runner wires the pipeline stages together.
type Runner struct {
	loader    InvoiceLoader
	sink      export.Sink
	publisher notify.Publisher
	metrics   *metrics.Metrics
	opts      Options
}

// NewRunner creates a runner. sink, publisher and m may be nil.
func NewRunner(loader InvoiceLoader, sink export.Sink, publisher notify.Publisher, m *metrics.Metrics, opts Options) *Runner {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Runner{
		loader:    loader,
		sink:      sink,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
	}
}

// Today returns the run date as a UTC civil date.
func (r *Runner) Today() time.Time {
	t := r.opts.AsOf
	if t.IsZero() {
		t = r.opts.Now().In(r.opts.Location)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Run executes the pipeline once. A ledger without yearly tables and an empty
// gold layer end the run successfully without writing anything.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	started := r.opts.Now()
	res := &Result{
		RunID:  notify.NewRunID(),
		Status: notify.StatusSucceeded,
		AsOf:   r.Today(),
	}
	ctx = logger.ContextWithRunID(ctx, res.RunID)
	log := logger.WithContext(ctx, "consolidation")

	log.Info().
		Str("as_of", res.AsOf.Format(models.ReportDateLayout)).
		Bool("dry_run", r.opts.DryRun).
		Msg("Starting consolidation run")

	err := r.run(ctx, res, log)
	if err != nil {
		res.Status = notify.StatusFailed
	}

	r.finish(ctx, res, started, err, log)
	return res, err
}

func (r *Runner) run(ctx context.Context, res *Result, log zerolog.Logger) error {
	stage := r.metrics.Track(StageLoad)
	invoices, err := r.loader.Load(ctx)
	stage.End(err)
	if errors.Is(err, ledger.ErrNoYearTables) {
		log.Warn().Msg("No yearly ledger tables found, nothing to consolidate")
		res.Status = notify.StatusSkipped
		return nil
	}
	if err != nil {
		return &RunError{Stage: StageLoad, Err: err}
	}
	res.Invoices = len(invoices)
	res.Clients = countClients(invoices)

	snapshots, err := aging.NewSnapshotRange(invoices, res.AsOf)
	if err != nil {
		return &RunError{Stage: StageSnapshots, Err: err, Details: "no time axis"}
	}
	res.Snapshots = snapshots
	r.metrics.ObserveLedger(len(invoices), snapshots.Len())

	log.Info().
		Int("invoices", res.Invoices).
		Int("clients", res.Clients).
		Str("first_snapshot", snapshots.Start().Format(models.ReportDateLayout)).
		Str("last_snapshot", snapshots.End().Format(models.ReportDateLayout)).
		Int("snapshots", snapshots.Len()).
		Msg("Snapshot axis ready")

	stage = r.metrics.Track(StageAggregate)
	rows, err := aging.NewEngine(r.opts.Workers).Run(ctx, invoices, snapshots, res.AsOf)
	if err := stage.End(err); err != nil {
		return &RunError{Stage: StageAggregate, Err: err}
	}

	stage = r.metrics.Track(StageVariance)
	aging.ApplyVariance(rows)
	stage.End(nil)

	res.Rows = rows
	r.metrics.ObserveRows(rows)

	if len(rows) == 0 {
		log.Warn().Msg("Gold layer is empty, nothing to export")
		res.Status = notify.StatusSkipped
		return nil
	}

	if r.opts.DryRun || r.sink == nil {
		log.Info().Int("rows", len(rows)).Msg("No export requested, skipping write")
		return nil
	}

	stage = r.metrics.Track(StageExport)
	if err := stage.End(r.sink.Write(ctx, rows)); err != nil {
		return &RunError{Stage: StageExport, Err: err}
	}
	res.Exported = true

	log.Info().Int("rows", len(rows)).Str("sink", r.sink.Name()).Msg("Gold layer exported")
	return nil
}

func (r *Runner) finish(ctx context.Context, res *Result, started time.Time, runErr error, log zerolog.Logger) {
	finished := r.opts.Now()
	r.metrics.RunFinished(res.Status, finished)

	event := &notify.RunEvent{
		RunID:      res.RunID,
		Status:     res.Status,
		AsOf:       res.AsOf.Format(models.ReportDateLayout),
		Snapshots:  res.Snapshots.Len(),
		Invoices:   res.Invoices,
		Clients:    res.Clients,
		Rows:       len(res.Rows),
		StartedAt:  started,
		FinishedAt: finished,
	}
	if res.Snapshots.Len() > 0 {
		event.SnapshotStart = res.Snapshots.Start().Format(models.ReportDateLayout)
		event.SnapshotEnd = res.Snapshots.End().Format(models.ReportDateLayout)
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	if res.Exported {
		event.Sinks = sinkNames(r.sink)
	}

	if !r.opts.DryRun {
		if err := r.publisher.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Msg("Failed to publish run event")
		}
	}

	if r.opts.MetricsTextfile != "" {
		if err := r.metrics.WriteTextfile(r.opts.MetricsTextfile); err != nil {
			log.Warn().Err(err).Msg("Failed to write metrics textfile")
		}
	}

	ev := log.Info()
	if runErr != nil {
		ev = log.Error().Err(runErr)
	}
	ev.Str("status", res.Status).
		Int("rows", len(res.Rows)).
		Dur("duration", finished.Sub(started)).
		Msg("Consolidation run finished")
}

func countClients(invoices []models.Invoice) int {
	seen := make(map[string]struct{})
	for _, inv := range invoices {
		seen[inv.Client] = struct{}{}
	}
	return len(seen)
}

func sinkNames(s export.Sink) []string {
	if m, ok := s.(interface{ Names() []string }); ok {
		return m.Names()
	}
	return []string{s.Name()}
}
