package aging

import (
	"time"

	"github.com/shopspring/decimal"

	"receivables/pkg/models"
)

type rowKey struct {
	month   int // year*12 + month
	client  string
	concept models.Concept
}

func keyOf(date time.Time, client string, concept models.Concept) rowKey {
	return rowKey{month: date.Year()*12 + int(date.Month()) - 1, client: client, concept: concept}
}

// ApplyVariance fills PriorAmount and Variance on every row from the row of the
// same client and concept one calendar month earlier. It needs the complete
// row set of every snapshot.
func ApplyVariance(rows []models.GoldRow) {
	amounts := make(map[rowKey]decimal.Decimal, len(rows))
	for _, r := range rows {
		amounts[keyOf(r.ReportDate, r.Client, r.Concept)] = r.Amount
	}

	for i := range rows {
		r := &rows[i]
		prior, ok := amounts[keyOf(r.ReportDate.AddDate(0, -1, 0), r.Client, r.Concept)]
		if !ok {
			prior = decimal.Zero
		}
		r.PriorAmount = prior
		r.Variance = r.Amount.Sub(prior)
	}
}
