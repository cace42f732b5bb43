package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"receivables/pkg/models"
)

// CSVSink writes the gold layer to a CSV file, replacing it atomically.
type CSVSink struct {
	Path string
}

// Name implements Sink.
func (s *CSVSink) Name() string { return "csv:" + s.Path }

// Write implements Sink.
func (s *CSVSink) Write(ctx context.Context, rows []models.GoldRow) error {
	const op = "CSVSink.Write"

	err := replaceFile(s.Path, func(file *os.File) error {
		w := csv.NewWriter(file)
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, r := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.Write(Record(r)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type parquetRow struct {
	ReportDate     string  `parquet:"name=report_date, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Client         string  `parquet:"name=client, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Concept        string  `parquet:"name=concept, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Amount         float64 `parquet:"name=amount, type=DOUBLE"`
	AmountExact    string  `parquet:"name=amount_exact, type=UTF8, encoding=PLAIN_DICTIONARY"`
	IsCurrentMonth bool    `parquet:"name=is_current_month, type=BOOLEAN"`
	InvoiceCount   int32   `parquet:"name=invoice_count, type=INT32"`
	InvoiceList    string  `parquet:"name=invoice_list, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Variance       float64 `parquet:"name=variance, type=DOUBLE"`
	VarianceExact  string  `parquet:"name=variance_exact, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ParquetSink writes the gold layer to a Snappy-compressed Parquet file.
type ParquetSink struct {
	Path string
}

// Name implements Sink.
func (s *ParquetSink) Name() string { return "parquet:" + s.Path }

// Write implements Sink.
func (s *ParquetSink) Write(ctx context.Context, rows []models.GoldRow) error {
	const op = "ParquetSink.Write"

	err := replaceFile(s.Path, func(file *os.File) error {
		fw := writerfile.NewWriterFile(file)
		pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
		if err != nil {
			return fmt.Errorf("parquet schema: %w", err)
		}
		pw.RowGroupSize = 128 * 1024 * 1024
		pw.CompressionType = parquet.CompressionCodec_SNAPPY

		for _, r := range rows {
			if err := ctx.Err(); err != nil {
				pw.WriteStop()
				return err
			}
			pr := &parquetRow{
				ReportDate:     r.ReportDateString(),
				Client:         r.Client,
				Concept:        r.Concept.String(),
				Amount:         r.Amount.InexactFloat64(),
				AmountExact:    r.Amount.String(),
				IsCurrentMonth: r.IsCurrentMonth,
				InvoiceCount:   int32(r.InvoiceCount),
				InvoiceList:    r.InvoiceList(),
				Variance:       r.Variance.InexactFloat64(),
				VarianceExact:  r.Variance.String(),
			}
			if err := pw.Write(pr); err != nil {
				pw.WriteStop()
				return fmt.Errorf("parquet write: %w", err)
			}
		}
		if err := pw.WriteStop(); err != nil {
			return fmt.Errorf("parquet flush: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// replaceFile writes through a temporary file in the target directory and
// renames it over path only when fill succeeds.
func replaceFile(path string, fill func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
