// Package aging builds the gold layer: per snapshot and client billing,
// debt aging buckets, threshold alerts and post-start payment tracking.
package aging

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"receivables/internal/logger"
	"receivables/pkg/models"
)

// DaysPerMonth is the average month length used to turn overdue days into months.
const DaysPerMonth = 30.44

// AlertThresholdMonths is the overdue age whose crossing raises an alert.
const AlertThresholdMonths = 3.0

// Engine aggregates a ledger into gold rows.
type Engine struct {
	workers int
}

// NewEngine creates an engine that processes up to workers clients at once.
// A non-positive value means one worker per CPU.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{workers: workers}
}

// Run computes every concept for every (snapshot, client) pair. now decides
// which snapshot is the current month. Rows come back sorted by client,
// concept and report date.
func (e *Engine) Run(ctx context.Context, invoices []models.Invoice, snapshots SnapshotRange, now time.Time) ([]models.GoldRow, error) {
	const op = "Engine.Run"

	log := logger.WithContext(ctx, "aging")
	started := time.Now()
	clients := buildIndex(invoices)
	points := snapshots.Slice()
	current := MonthStart(now)

	log.Info().
		Int("invoices", len(invoices)).
		Int("clients", len(clients)).
		Int("snapshots", len(points)).
		Int("workers", e.workers).
		Msg("Starting aging engine")

	results := make([][]models.GoldRow, len(clients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range clients {
		g.Go(func() error {
			ix := clients[i]
			var rows []models.GoldRow
			for _, s := range points {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows = append(rows, ix.aggregate(s, SameMonth(s, current))...)
			}
			results[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	rows := make([]models.GoldRow, 0, total)
	for _, r := range results {
		rows = append(rows, r...)
	}
	SortRows(rows)

	log.Info().
		Int("rows", len(rows)).
		Dur("duration", time.Since(started)).
		Msg("Aging engine finished")

	return rows, nil
}

// SortRows orders rows by client, concept and report date.
func SortRows(rows []models.GoldRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Client != b.Client {
			return a.Client < b.Client
		}
		if a.Concept != b.Concept {
			return a.Concept < b.Concept
		}
		return a.ReportDate.Before(b.ReportDate)
	})
}

// OverdueMonths converts the whole days between issued and asOf into average months.
func OverdueMonths(issued, asOf time.Time) float64 {
	return float64(overdueDays(issued, asOf)) / DaysPerMonth
}

func overdueDays(issued, asOf time.Time) int {
	return int(math.Floor(asOf.Sub(issued).Hours() / 24))
}

// Bucket classifies an overdue age into one of the four debt concepts.
func Bucket(months float64) models.Concept {
	switch {
	case months < 3:
		return models.ConceptDebt0To3
	case months < 6:
		return models.ConceptDebt3To6
	case months < 12:
		return models.ConceptDebt6To12
	default:
		return models.ConceptDebtOver12
	}
}

// clientIndex holds one client's invoices, built once per run.
type clientIndex struct {
	name string

	// dated invoices ordered by issue date, ledger order among equal dates
	byDate []*models.Invoice

	// month start -> invoices issued that month, in ledger order
	byMonth map[time.Time][]*models.Invoice
}

func buildIndex(invoices []models.Invoice) []*clientIndex {
	var order []*clientIndex
	byName := make(map[string]*clientIndex)

	for i := range invoices {
		inv := &invoices[i]
		ix, ok := byName[inv.Client]
		if !ok {
			ix = &clientIndex{name: inv.Client, byMonth: make(map[time.Time][]*models.Invoice)}
			byName[inv.Client] = ix
			order = append(order, ix)
		}
		if !inv.HasInvoiceDate() {
			continue
		}
		ix.byDate = append(ix.byDate, inv)
		month := MonthStart(inv.InvoiceDate)
		ix.byMonth[month] = append(ix.byMonth[month], inv)
	}

	for _, ix := range order {
		sort.SliceStable(ix.byDate, func(a, b int) bool {
			return ix.byDate[a].InvoiceDate.Before(ix.byDate[b].InvoiceDate)
		})
	}

	return order
}

// issuedBy returns the invoices issued on or before s.
func (ix *clientIndex) issuedBy(s time.Time) []*models.Invoice {
	n := sort.Search(len(ix.byDate), func(i int) bool {
		return ix.byDate[i].InvoiceDate.After(s)
	})
	return ix.byDate[:n]
}

// aggregate computes the rows of one (snapshot, client) pair.
func (ix *clientIndex) aggregate(s time.Time, current bool) []models.GoldRow {
	acc := make(map[models.Concept]*accumulator, 4)
	add := func(c models.Concept, inv *models.Invoice) {
		a, ok := acc[c]
		if !ok {
			a = &accumulator{}
			acc[c] = a
		}
		a.add(inv)
	}

	for _, inv := range ix.byMonth[MonthStart(s)] {
		add(models.ConceptMonthlyBilling, inv)
	}

	prev := s.AddDate(0, -1, 0)
	for _, inv := range ix.issuedBy(s) {
		if !inv.UnpaidAt(s) || overdueDays(inv.InvoiceDate, s) <= 0 {
			continue
		}

		months := OverdueMonths(inv.InvoiceDate, s)
		add(Bucket(months), inv)

		crossed := OverdueMonths(inv.InvoiceDate, prev) < AlertThresholdMonths && months >= AlertThresholdMonths
		if crossed {
			add(models.ConceptAlertCrossed3, inv)
		}

		if current && inv.IsPaid() {
			add(models.ConceptPaymentsDebtPost, inv)
			if crossed {
				add(models.ConceptPaymentsAlertPost, inv)
			}
		}
	}

	var rows []models.GoldRow
	for _, c := range models.Concepts() {
		a, ok := acc[c]
		if !ok {
			continue
		}
		if row, ok := a.row(s, ix.name, c, current); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// accumulator sums one concept for one (snapshot, client) pair.
type accumulator struct {
	sum      decimal.Decimal
	invoices []*models.Invoice
}

func (a *accumulator) add(inv *models.Invoice) {
	a.sum = a.sum.Add(inv.Total)
	a.invoices = append(a.invoices, inv)
}

// row builds the gold row, or reports false when the sum is not positive.
func (a *accumulator) row(s time.Time, client string, concept models.Concept, current bool) (models.GoldRow, bool) {
	if !a.sum.IsPositive() {
		return models.GoldRow{}, false
	}

	sort.SliceStable(a.invoices, func(i, j int) bool {
		return a.invoices[i].Seq < a.invoices[j].Seq
	})
	numbers := make([]string, len(a.invoices))
	for i, inv := range a.invoices {
		numbers[i] = inv.InvoiceNumber
	}

	return models.GoldRow{
		ReportDate:     s,
		Client:         client,
		Concept:        concept,
		Amount:         a.sum,
		IsCurrentMonth: current,
		InvoiceCount:   len(a.invoices),
		InvoiceNumbers: numbers,
	}, true
}
