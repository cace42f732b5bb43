package aging

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receivables/pkg/models"
)

func gold(at time.Time, client string, concept models.Concept, amount string) models.GoldRow {
	return models.GoldRow{ReportDate: at, Client: client, Concept: concept, Amount: decimal.RequireFromString(amount)}
}

func TestApplyVariance(t *testing.T) {
	rows := []models.GoldRow{
		gold(day(2024, 1, 1), "Acme", models.ConceptDebt0To3, "100"),
		gold(day(2024, 2, 1), "Acme", models.ConceptDebt0To3, "100"),
		gold(day(2024, 3, 1), "Acme", models.ConceptDebt0To3, "250"),
		gold(day(2024, 5, 1), "Acme", models.ConceptDebt0To3, "40"), // April missing
		gold(day(2024, 2, 1), "Acme", models.ConceptMonthlyBilling, "75"),
		gold(day(2024, 2, 1), "Globex", models.ConceptDebt0To3, "10"),
	}

	ApplyVariance(rows)

	cases := []struct {
		prior, variance string
	}{
		{"0", "100"},
		{"100", "0"},
		{"100", "150"},
		{"0", "40"},
		{"0", "75"},
		{"0", "10"},
	}
	require.Len(t, rows, len(cases))
	for i, tc := range cases {
		assert.True(t, decimal.RequireFromString(tc.prior).Equal(rows[i].PriorAmount), "row %d prior: %s", i, rows[i].PriorAmount)
		assert.True(t, decimal.RequireFromString(tc.variance).Equal(rows[i].Variance), "row %d variance: %s", i, rows[i].Variance)
	}
}

func TestApplyVarianceAcrossYearBoundary(t *testing.T) {
	rows := []models.GoldRow{
		gold(day(2023, 12, 1), "Acme", models.ConceptDebt3To6, "80"),
		gold(day(2024, 1, 1), "Acme", models.ConceptDebt3To6, "50"),
	}

	ApplyVariance(rows)
	assert.True(t, decimal.NewFromInt(-30).Equal(rows[1].Variance))
}

func TestApplyVarianceOnEngineOutput(t *testing.T) {
	invoices := []models.Invoice{invoice(0, "Acme", "INV-1", day(2024, 1, 10), "100", nil)}
	rows := run(t, invoices, day(2024, 8, 15))
	ApplyVariance(rows)

	for _, r := range rows {
		switch {
		case r.Concept == models.ConceptDebt0To3 && r.ReportDate.Equal(day(2024, 2, 1)):
			assert.True(t, r.Variance.Equal(decimal.NewFromInt(100)))
		case r.Concept == models.ConceptDebt0To3:
			assert.True(t, r.Variance.IsZero(), "steady balance at %s", r.ReportDate)
		case r.Concept == models.ConceptAlertCrossed3:
			assert.True(t, r.Variance.Equal(r.Amount))
		}
	}
}
