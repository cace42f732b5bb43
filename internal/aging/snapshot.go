package aging

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"receivables/pkg/models"
)

// ErrNoDatedInvoices means no invoice carries a usable issue date, so there is no time axis.
var ErrNoDatedInvoices = errors.New("no invoice has a valid invoice date")

// MonthStart returns the first day of t's calendar month as a UTC civil date.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// SameMonth reports whether a and b fall in the same calendar year and month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// SnapshotRange is the inclusive, gap-free sequence of month starts used as the time axis.
type SnapshotRange struct {
	start time.Time
	end   time.Time
}

// NewSnapshotRange spans the month of the earliest dated invoice through the
// month of max(latest invoice date, now).
func NewSnapshotRange(invoices []models.Invoice, now time.Time) (SnapshotRange, error) {
	const op = "NewSnapshotRange"

	var minDate, maxDate time.Time
	for _, inv := range invoices {
		if !inv.HasInvoiceDate() {
			continue
		}
		if minDate.IsZero() || inv.InvoiceDate.Before(minDate) {
			minDate = inv.InvoiceDate
		}
		if maxDate.IsZero() || inv.InvoiceDate.After(maxDate) {
			maxDate = inv.InvoiceDate
		}
	}

	if minDate.IsZero() {
		return SnapshotRange{}, fmt.Errorf("%s: %w", op, ErrNoDatedInvoices)
	}

	start := MonthStart(minDate)
	end := MonthStart(maxDate)
	if current := MonthStart(now); current.After(end) {
		end = current
	}

	return SnapshotRange{start: start, end: end}, nil
}

// Start returns the first snapshot.
func (r SnapshotRange) Start() time.Time { return r.start }

// End returns the last snapshot.
func (r SnapshotRange) End() time.Time { return r.end }

// Len returns the number of snapshots in the range.
func (r SnapshotRange) Len() int {
	if r.start.IsZero() {
		return 0
	}
	return (r.end.Year()-r.start.Year())*12 + int(r.end.Month()-r.start.Month()) + 1
}

// All yields the snapshots in increasing order. The sequence can be ranged over any number of times.
func (r SnapshotRange) All() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if r.start.IsZero() {
			return
		}
		for s := r.start; !s.After(r.end); s = s.AddDate(0, 1, 0) {
			if !yield(s) {
				return
			}
		}
	}
}

// Slice materializes the range.
func (r SnapshotRange) Slice() []time.Time {
	out := make([]time.Time, 0, r.Len())
	for s := range r.All() {
		out = append(out, s)
	}
	return out
}
