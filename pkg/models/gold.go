package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Concept identifies what a gold row measures.
type Concept string

const (
	ConceptMonthlyBilling    Concept = "Monthly Billing"
	ConceptDebt0To3          Concept = "Debt 0–3 Months"
	ConceptDebt3To6          Concept = "Debt 3–6 Months"
	ConceptDebt6To12         Concept = "Debt 6–12 Months"
	ConceptDebtOver12        Concept = "Debt > 12 Months"
	ConceptAlertCrossed3     Concept = "Alert: Crossed 3 Months"
	ConceptPaymentsDebtPost  Concept = "Payments Debt Post-Start"
	ConceptPaymentsAlertPost Concept = "Payments Alert Post-Start"
)

// Concepts lists every concept in emission order.
func Concepts() []Concept {
	return []Concept{
		ConceptMonthlyBilling,
		ConceptDebt0To3,
		ConceptDebt3To6,
		ConceptDebt6To12,
		ConceptDebtOver12,
		ConceptAlertCrossed3,
		ConceptPaymentsDebtPost,
		ConceptPaymentsAlertPost,
	}
}

// String implements fmt.Stringer
func (c Concept) String() string {
	return string(c)
}

// ReportDateLayout is the serialization format of report dates.
const ReportDateLayout = "2006-01-02"

// GoldRow is one aggregated line of the consolidation report.
type GoldRow struct {
	ReportDate     time.Time
	Client         string
	Concept        Concept
	Amount         decimal.Decimal
	IsCurrentMonth bool
	InvoiceCount   int
	InvoiceNumbers []string

	// Filled by the variance pass
	PriorAmount decimal.Decimal
	Variance    decimal.Decimal
}

// InvoiceList returns the contributing invoice numbers joined for display.
func (r GoldRow) InvoiceList() string {
	return strings.Join(r.InvoiceNumbers, ", ")
}

// ReportDateString returns the report date as YYYY-MM-DD, or "" when unset.
func (r GoldRow) ReportDateString() string {
	if r.ReportDate.IsZero() {
		return ""
	}
	return r.ReportDate.Format(ReportDateLayout)
}
