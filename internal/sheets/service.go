package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"receivables/internal/credentials"
	"receivables/internal/logger"
)

// Service handles Google Sheets operations on a single spreadsheet
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

var (
	spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	spreadsheetIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9-_]{10,}$`)
)

// NewSheetsService creates a new Google Sheets service. ref may be a full
// spreadsheet URL or a bare spreadsheet ID.
func NewSheetsService(ctx context.Context, ref string, creds *credentials.Credentials) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	client, err := creds.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

// SpreadsheetID returns the ID of the spreadsheet this service operates on
func (s *Service) SpreadsheetID() string {
	return s.spreadsheetID
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL or accepts a bare ID
func extractSpreadsheetID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("spreadsheet reference is empty")
	}

	if matches := spreadsheetURLPattern.FindStringSubmatch(ref); len(matches) >= 2 {
		return matches[1], nil
	}

	if spreadsheetIDPattern.MatchString(ref) {
		return ref, nil
	}

	return "", fmt.Errorf("invalid Google Sheets URL format")
}

// quoteSheet wraps a worksheet title for use in A1 notation
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// ListWorksheets returns the titles of all worksheets in spreadsheet order
func (s *Service) ListWorksheets(ctx context.Context) ([]string, error) {
	const op = "ListWorksheets"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	titles := make([]string, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			titles = append(titles, sheet.Properties.Title)
		}
	}

	s.log.Debug().Strs("worksheets", titles).Msg("Listed worksheets")
	return titles, nil
}

// ReadSheet reads every populated cell of a worksheet, header row included
func (s *Service) ReadSheet(ctx context.Context, title string) ([][]interface{}, error) {
	return s.ReadRange(ctx, quoteSheet(title))
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}

// ReplaceSheet overwrites a worksheet with a header row followed by rows.
// An existing worksheet is cleared; a missing one is created with room for
// the data plus a margin of empty rows.
func (s *Service) ReplaceSheet(ctx context.Context, title string, header []string, rows [][]interface{}) error {
	const op = "ReplaceSheet"

	sheetID, err := s.ensureSheet(ctx, title, len(rows)+100, len(header))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	values := make([][]interface{}, 0, len(rows)+1)
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	values = append(values, headerRow)
	values = append(values, rows...)

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		quoteSheet(title)+"!A1",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to write values: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID, len(header)); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}

	s.log.Info().
		Str("sheet", title).
		Int("rows_written", len(rows)).
		Msg("Successfully replaced worksheet contents")

	return nil
}

// ensureSheet returns the ID of an emptied worksheet, creating it when missing
func (s *Service) ensureSheet(ctx context.Context, title string, rowCount, colCount int) (int64, error) {
	const op = "ensureSheet"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties == nil || sheet.Properties.Title != title {
			continue
		}
		s.log.Info().Str("sheet", title).Msg("Clearing existing sheet")
		_, err := s.sheetsService.Spreadsheets.Values.Clear(
			s.spreadsheetID,
			quoteSheet(title),
			&sheets.ClearValuesRequest{},
		).Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("%s: failed to clear sheet: %w", op, err)
		}
		return sheet.Properties.SheetId, nil
	}

	s.log.Info().Str("sheet", title).Msg("Creating new sheet")

	if colCount < 1 {
		colCount = 1
	}
	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    int64(rowCount),
						ColumnCount: int64(colCount),
					},
				},
			}},
		},
	}

	resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to create sheet: %w", op, err)
	}

	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// formatHeaders makes the header row bold and resizes the data columns
func (s *Service) formatHeaders(ctx context.Context, sheetID int64, columns int) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(columns),
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}

	return nil
}
