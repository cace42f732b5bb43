package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "100", want: "100"},
		{in: "€1,234.50", want: "1234.5"},
		{in: " $ 99.99 ", want: "99.99"},
		{in: "1 200,00", want: "120000"},
		{in: "-15.5", want: "-15.5"},
		{in: "", want: "0"},
		{in: "n/a", want: "0", err: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if tc.err {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in       string
		dayFirst bool
		want     time.Time
	}{
		{in: "2024-01-10", want: date(2024, 1, 10)},
		{in: "2024-01-10 13:45:00", want: date(2024, 1, 10)},
		{in: "01/10/2024", want: date(2024, 1, 10)},
		{in: "1/10/2024", want: date(2024, 1, 10)},
		{in: "01/10/2024", dayFirst: true, want: date(2024, 10, 1)},
		{in: "25/12/2023", want: date(2023, 12, 25)}, // falls back to day-first
		{in: "10.01.2024", want: date(2024, 1, 10)},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDate(tc.in, tc.dayFirst)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseDate("someday", false)
	assert.Error(t, err)
	_, err = ParseDate("  ", false)
	assert.Error(t, err)
}

func TestHeaderKey(t *testing.T) {
	assert.Equal(t, "fecha de cobro", headerKey("  Fecha   de COBRO "))
	assert.Equal(t, "numero", headerKey("Número"))
	assert.Equal(t, "", headerKey("   "))
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(false)
	table := Table{
		Name: "2024",
		Rows: [][]string{
			{"Num", "Cliente", "", "Fecha", "Vencimiento", "Fecha de cobro", "Total"},
			{"F-001", "Acme", "note", "01/10/2024", "02/10/2024", "", "€100.00"},
			{"F-002", "Globex", "", "2024-02-03", "", "2024-03-01", "1,250.5"},
			{"", "", "", "", "", "", ""},
			{"F-003", "", "", "2024-02-04", "", "", "50"},
			{"F-004", "Acme", "", "garbage", "", "never", "oops"},
			{"F-005", "Acme"},
		},
	}

	invoices, err := n.Normalize(table)
	require.NoError(t, err)
	require.Len(t, invoices, 4)

	first := invoices[0]
	assert.Equal(t, "F-001", first.InvoiceNumber)
	assert.Equal(t, "Acme", first.Client)
	assert.Equal(t, date(2024, 1, 10), first.InvoiceDate)
	assert.Equal(t, date(2024, 2, 10), first.DueDate)
	assert.Nil(t, first.PaymentDate)
	assert.True(t, decimal.NewFromInt(100).Equal(first.Total))
	assert.Equal(t, "2024", first.SourceYear)

	second := invoices[1]
	require.NotNil(t, second.PaymentDate)
	assert.Equal(t, date(2024, 3, 1), *second.PaymentDate)
	assert.True(t, decimal.RequireFromString("1250.5").Equal(second.Total))

	broken := invoices[2]
	assert.False(t, broken.HasInvoiceDate())
	assert.Nil(t, broken.PaymentDate)
	assert.True(t, broken.Total.IsZero())

	short := invoices[3]
	assert.Equal(t, "F-005", short.InvoiceNumber)
	assert.False(t, short.HasInvoiceDate())
}

func TestNormalizeMissingClientColumn(t *testing.T) {
	n := NewNormalizer(false)
	_, err := n.Normalize(Table{Name: "2023", Rows: [][]string{{"Num", "Fecha", "Total"}}})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingClientColumn)

	var tableErr *TableError
	require.ErrorAs(t, err, &tableErr)
	assert.Equal(t, "2023", tableErr.Table)
}

func TestNormalizeEmptyTable(t *testing.T) {
	invoices, err := NewNormalizer(false).Normalize(Table{Name: "2022"})
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

type fakeWorkbook struct {
	titles []string
	sheets map[string][][]interface{}
	err    error
}

func (f *fakeWorkbook) ListWorksheets(context.Context) ([]string, error) {
	return f.titles, f.err
}

func (f *fakeWorkbook) ReadSheet(_ context.Context, title string) ([][]interface{}, error) {
	rows, ok := f.sheets[title]
	if !ok {
		return nil, errors.New("no such sheet")
	}
	return rows, nil
}

func TestSheetSourceReadsOnlyYearWorksheets(t *testing.T) {
	wb := &fakeWorkbook{
		titles: []string{"2023", "Consolidacion", "2024", "Notes 2024"},
		sheets: map[string][][]interface{}{
			"2023": {{"Cliente", "Fecha", "Total", "Num"}, {"Acme", "2023-12-01", 10.5, nil}},
			"2024": {{"Cliente", "Fecha", "Total", "Num"}, {"Globex", "2024-01-05", "20", "F-9"}},
		},
	}

	tables, err := NewSheetSource(wb).Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "2023", tables[0].Name)
	assert.Equal(t, []string{"Acme", "2023-12-01", "10.5", ""}, tables[0].Rows[1])
	assert.Equal(t, "2024", tables[1].Name)
}

func TestSheetSourceReadFailure(t *testing.T) {
	wb := &fakeWorkbook{titles: []string{"2024"}, sheets: map[string][][]interface{}{}}

	_, err := NewSheetSource(wb).Tables(context.Background())
	var tableErr *TableError
	require.ErrorAs(t, err, &tableErr)
	assert.Equal(t, "2024", tableErr.Table)
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("2024.csv", "Cliente,Fecha,Total,Num\nGlobex,2024-01-05,20,F-9\n")
	write("2023.csv", "\ufeffCliente,Fecha,Total,Num\nAcme,2023-12-01,\"1,000\",F-1\n")
	write("summary.csv", "ignored\n")
	write("2025.txt", "ignored\n")

	tables, err := NewCSVSource(dir).Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "2023", tables[0].Name)
	assert.Equal(t, "Cliente", tables[0].Rows[0][0])
	assert.Equal(t, "1,000", tables[0].Rows[1][2])
	assert.Equal(t, "2024", tables[1].Name)
}

func TestLoaderAssignsLedgerOrder(t *testing.T) {
	src := StaticSource{
		{Name: "2023", Rows: [][]string{{"Cliente", "Fecha", "Total", "Num"}, {"Acme", "2023-12-01", "10", "A"}, {"Globex", "2023-12-02", "20", "B"}}},
		{Name: "2024", Rows: [][]string{{"Cliente", "Fecha", "Total", "Num"}, {"Acme", "2024-01-01", "30", "C"}}},
	}

	invoices, err := NewLoader(src, NewNormalizer(false)).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	for i, inv := range invoices {
		assert.Equal(t, i, inv.Seq)
	}
	assert.Equal(t, "C", invoices[2].InvoiceNumber)
	assert.Equal(t, "2024", invoices[2].SourceYear)
}

func TestLoaderNoYearTables(t *testing.T) {
	_, err := NewLoader(StaticSource{}, NewNormalizer(false)).Load(context.Background())
	assert.ErrorIs(t, err, ErrNoYearTables)
}

func TestIsYearTable(t *testing.T) {
	assert.True(t, IsYearTable("2024"))
	assert.True(t, IsYearTable(" 1999 "))
	assert.False(t, IsYearTable("24"))
	assert.False(t, IsYearTable("2024 copy"))
	assert.False(t, IsYearTable("Consolidacion"))
}
