package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"receivables/internal/logger"
	"receivables/pkg/models"
)

// yearTitle matches the titles of yearly ledger tables ("2023", "2024", ...).
var yearTitle = regexp.MustCompile(`^[0-9]{4}$`)

// IsYearTable reports whether a table title names a yearly ledger table.
func IsYearTable(title string) bool {
	return yearTitle.MatchString(strings.TrimSpace(title))
}

// Table is one raw yearly table: header row followed by data rows.
type Table struct {
	Name string
	Rows [][]string
}

// TableSource yields the yearly ledger tables in their natural order.
type TableSource interface {
	Tables(ctx context.Context) ([]Table, error)
}

// WorksheetReader is the part of the spreadsheet client the sheet source needs.
type WorksheetReader interface {
	ListWorksheets(ctx context.Context) ([]string, error)
	ReadSheet(ctx context.Context, title string) ([][]interface{}, error)
}

// SheetSource reads every four-digit worksheet of a spreadsheet.
type SheetSource struct {
	reader WorksheetReader
	log    zerolog.Logger
}

// NewSheetSource creates a table source backed by a spreadsheet.
func NewSheetSource(reader WorksheetReader) *SheetSource {
	return &SheetSource{
		reader: reader,
		log:    logger.WithComponent("ledger-sheets"),
	}
}

// Tables reads the yearly worksheets in spreadsheet order.
func (s *SheetSource) Tables(ctx context.Context) ([]Table, error) {
	const op = "SheetSource.Tables"

	titles, err := s.reader.ListWorksheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var tables []Table
	for _, title := range titles {
		if !IsYearTable(title) {
			s.log.Debug().Str("worksheet", title).Msg("Ignoring non-year worksheet")
			continue
		}

		values, err := s.reader.ReadSheet(ctx, title)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, &TableError{Table: title, Err: err})
		}

		s.log.Info().Str("worksheet", title).Int("rows", len(values)).Msg("Read yearly worksheet")
		tables = append(tables, Table{Name: strings.TrimSpace(title), Rows: stringRows(values)})
	}

	return tables, nil
}

// CSVSource reads "<year>.csv" exports from a directory, in ascending year order.
type CSVSource struct {
	Dir string

	log zerolog.Logger
}

// NewCSVSource creates a table source backed by a directory of yearly CSV files.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir, log: logger.WithComponent("ledger-csv")}
}

// Tables reads every yearly CSV file in the directory.
func (s *CSVSource) Tables(ctx context.Context) ([]Table, error) {
	const op = "CSVSource.Tables"

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read directory: %w", op, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		if IsYearTable(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		year := strings.TrimSuffix(name, filepath.Ext(name))
		rows, err := readCSV(filepath.Join(s.Dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, &TableError{Table: year, Err: err})
		}

		s.log.Info().Str("file", name).Int("rows", len(rows)).Msg("Read yearly CSV")
		tables = append(tables, Table{Name: year, Rows: rows})
	}

	return tables, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}

	// Spreadsheet exports often start with a UTF-8 byte order mark.
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// StaticSource serves tables held in memory.
type StaticSource []Table

// Tables returns the held tables.
func (s StaticSource) Tables(context.Context) ([]Table, error) {
	return s, nil
}

// Loader reads a table source and produces the consolidated ledger.
type Loader struct {
	source     TableSource
	normalizer *Normalizer
	log        zerolog.Logger
}

// NewLoader creates a ledger loader.
func NewLoader(source TableSource, normalizer *Normalizer) *Loader {
	return &Loader{
		source:     source,
		normalizer: normalizer,
		log:        logger.WithComponent("ledger"),
	}
}

// Load returns every invoice of every yearly table, tables concatenated in
// source order, with Seq set to the ledger position.
// It returns ErrNoYearTables when the source has no yearly table.
func (l *Loader) Load(ctx context.Context) ([]models.Invoice, error) {
	const op = "Load"

	tables, err := l.source.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoYearTables)
	}

	var ledger []models.Invoice
	for _, table := range tables {
		invoices, err := l.normalizer.Normalize(table)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ledger = append(ledger, invoices...)
	}

	for i := range ledger {
		ledger[i].Seq = i
	}

	l.log.Info().
		Int("tables", len(tables)).
		Int("invoices", len(ledger)).
		Msg("Ledger consolidated")

	return ledger, nil
}

func stringRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			if v != nil {
				rows[i][j] = fmt.Sprintf("%v", v)
			}
		}
	}
	return rows
}
