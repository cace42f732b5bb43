package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"receivables/internal/logger"
	"receivables/pkg/models"
)

// ColumnMap names the header of each ledger field.
type ColumnMap struct {
	Client        string
	InvoiceDate   string
	DueDate       string
	PaymentDate   string
	Total         string
	InvoiceNumber string
}

// DefaultColumns matches the headers of the yearly ledger worksheets.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		Client:        "Cliente",
		InvoiceDate:   "Fecha",
		DueDate:       "Vencimiento",
		PaymentDate:   "Fecha de cobro",
		Total:         "Total",
		InvoiceNumber: "Num",
	}
}

var (
	monthFirstLayouts = []string{
		"01/02/2006", "1/2/2006", "01/02/06", "1/2/06",
		"01-02-2006", "1-2-2006",
	}
	dayFirstLayouts = []string{
		"02/01/2006", "2/1/2006", "02/01/06", "2/1/06",
		"02-01-2006", "2-1-2006", "02.01.2006", "2.1.2006",
	}
	isoLayouts = []string{
		"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339, "2006/01/02",
	}
)

// Normalizer turns raw yearly tables into typed invoices.
type Normalizer struct {
	Columns  ColumnMap
	DayFirst bool

	log zerolog.Logger
}

// NewNormalizer creates a normalizer using the default column headers.
func NewNormalizer(dayFirst bool) *Normalizer {
	return &Normalizer{
		Columns:  DefaultColumns(),
		DayFirst: dayFirst,
		log:      logger.WithComponent("ledger"),
	}
}

type columnIndex struct {
	client, invoiceDate, dueDate, paymentDate, total, number int
}

// Normalize converts one table, header row first, into invoices tagged with the table name.
// Blank rows and rows without a client are skipped.
func (n *Normalizer) Normalize(table Table) ([]models.Invoice, error) {
	const op = "Normalize"

	if len(table.Rows) == 0 {
		n.log.Warn().Str("table", table.Name).Msg("Ledger table is empty, skipping")
		return nil, nil
	}

	idx, err := n.mapHeader(table.Name, table.Rows[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		invoices      []models.Invoice
		skippedBlank  int
		skippedClient int
	)

	for i, row := range table.Rows[1:] {
		rowNum := i + 2 // header is row 1

		if isBlank(row) {
			skippedBlank++
			continue
		}

		client := cell(row, idx.client)
		if client == "" {
			skippedClient++
			n.log.Warn().
				Str("table", table.Name).
				Int("row", rowNum).
				Msg("Row has no client, skipping")
			continue
		}

		inv := models.Invoice{
			InvoiceNumber: cell(row, idx.number),
			Client:        client,
			SourceYear:    table.Name,
		}

		inv.InvoiceDate = n.parseDateField(table.Name, rowNum, "invoice_date", cell(row, idx.invoiceDate))
		inv.DueDate = n.parseDateField(table.Name, rowNum, "due_date", cell(row, idx.dueDate))
		if paid := n.parseDateField(table.Name, rowNum, "payment_date", cell(row, idx.paymentDate)); !paid.IsZero() {
			inv.PaymentDate = &paid
		}

		raw := cell(row, idx.total)
		total, err := ParseAmount(raw)
		if err != nil {
			n.log.Debug().
				Str("table", table.Name).
				Int("row", rowNum).
				Str("total_str", raw).
				Msg("Invalid total, using 0")
			total = decimal.Zero
		}
		inv.Total = total

		invoices = append(invoices, inv)
	}

	n.log.Info().
		Str("table", table.Name).
		Int("total_rows", len(table.Rows)-1).
		Int("invoices", len(invoices)).
		Int("skipped_blank", skippedBlank).
		Int("skipped_no_client", skippedClient).
		Msg("Ledger table normalized")

	return invoices, nil
}

func (n *Normalizer) mapHeader(table string, header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if key == "" {
			continue // unnamed columns are dropped
		}
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	find := func(name string) int {
		if pos, ok := positions[headerKey(name)]; ok {
			return pos
		}
		return -1
	}

	idx := columnIndex{
		client:      find(n.Columns.Client),
		invoiceDate: find(n.Columns.InvoiceDate),
		dueDate:     find(n.Columns.DueDate),
		paymentDate: find(n.Columns.PaymentDate),
		total:       find(n.Columns.Total),
		number:      find(n.Columns.InvoiceNumber),
	}

	if idx.client < 0 {
		return idx, &TableError{Table: table, Err: ErrMissingClientColumn}
	}

	missing := []struct {
		name string
		pos  int
	}{
		{n.Columns.InvoiceDate, idx.invoiceDate},
		{n.Columns.DueDate, idx.dueDate},
		{n.Columns.PaymentDate, idx.paymentDate},
		{n.Columns.Total, idx.total},
		{n.Columns.InvoiceNumber, idx.number},
	}
	for _, m := range missing {
		if m.pos < 0 {
			n.log.Warn().
				Str("table", table).
				Str("column", m.name).
				Msg("Column not found, values treated as missing")
		}
	}

	return idx, nil
}

func (n *Normalizer) parseDateField(table string, rowNum int, field, raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := ParseDate(raw, n.DayFirst)
	if err != nil {
		n.log.Debug().
			Str("table", table).
			Int("row", rowNum).
			Str("field", field).
			Str("value", raw).
			Msg("Unparseable date, treated as missing")
		return time.Time{}
	}
	return t
}

// ParseDate parses a ledger date into a civil date at UTC midnight.
// ISO layouts are tried first, then the preferred field order, then the other one.
func ParseDate(raw string, dayFirst bool) (time.Time, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	primary, secondary := monthFirstLayouts, dayFirstLayouts
	if dayFirst {
		primary, secondary = dayFirstLayouts, monthFirstLayouts
	}

	for _, group := range [][]string{isoLayouts, primary, secondary} {
		for _, layout := range group {
			if t, err := time.Parse(layout, cleaned); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", raw)
}

// ParseAmount strips currency symbols and thousands separators and parses the rest.
// Empty input is zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("€", "", "$", "", ",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero, nil
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", raw, cleaned)
	}
	return amount, nil
}

// headerKey folds case, accents and inner whitespace so "Fecha  de Cobro" matches "fecha de cobro".
func headerKey(h string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), h)
	if err != nil {
		folded = h
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
