package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is one normalized row of the receivables ledger.
type Invoice struct {
	// Core identifiers
	InvoiceNumber string // Human-readable invoice number ("Num" column)
	Client        string // Billed client ("Cliente" column)

	// Dates
	InvoiceDate time.Time  // Date invoice was issued (zero if missing or unparseable)
	DueDate     time.Time  // Payment due date (zero if missing)
	PaymentDate *time.Time // Actual payment date (nil if unpaid at extraction time)

	// Amount
	Total decimal.Decimal // Invoice total, zero when the source value could not be parsed

	// Provenance
	SourceYear string // Title of the yearly table the row came from
	Seq        int    // Position in the consolidated ledger
}

// HasInvoiceDate reports whether the invoice carries a usable issue date.
func (i Invoice) HasInvoiceDate() bool {
	return !i.InvoiceDate.IsZero()
}

// IsPaid reports whether a payment date was recorded for the invoice.
func (i Invoice) IsPaid() bool {
	return i.PaymentDate != nil && !i.PaymentDate.IsZero()
}

// UnpaidAt reports whether the invoice was still outstanding as of the given date.
// A payment recorded on the date itself counts as paid.
func (i Invoice) UnpaidAt(asOf time.Time) bool {
	return !i.IsPaid() || i.PaymentDate.After(asOf)
}
