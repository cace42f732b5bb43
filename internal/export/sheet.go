package export

import (
	"context"
	"fmt"

	"receivables/pkg/models"
)

// SheetWriter is the part of the spreadsheet client the sheet sink needs.
type SheetWriter interface {
	ReplaceSheet(ctx context.Context, title string, header []string, rows [][]interface{}) error
}

// SheetSink replaces the contents of one worksheet with the gold layer.
type SheetSink struct {
	writer SheetWriter
	title  string
}

// NewSheetSink creates a sink writing to the named worksheet.
func NewSheetSink(writer SheetWriter, title string) *SheetSink {
	return &SheetSink{writer: writer, title: title}
}

// Name implements Sink.
func (s *SheetSink) Name() string {
	return "sheet:" + s.title
}

// Write implements Sink.
func (s *SheetSink) Write(ctx context.Context, rows []models.GoldRow) error {
	const op = "SheetSink.Write"

	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = Values(r)
	}

	if err := s.writer.ReplaceSheet(ctx, s.title, Columns, values); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
