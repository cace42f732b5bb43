package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSpreadsheetID(t *testing.T) {
	cases := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "https://docs.google.com/spreadsheets/d/1AbC-d_EfGhIjKlMnOp/edit#gid=0", want: "1AbC-d_EfGhIjKlMnOp"},
		{ref: "  https://docs.google.com/spreadsheets/d/XYZ1234567890/  ", want: "XYZ1234567890"},
		{ref: "1AbC-d_EfGhIjKlMnOp", want: "1AbC-d_EfGhIjKlMnOp"},
		{ref: "", wantErr: true},
		{ref: "https://example.com/not-a-sheet", wantErr: true},
		{ref: "short", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			got, err := extractSpreadsheetID(tc.ref)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'2024'", quoteSheet("2024"))
	assert.Equal(t, "'Client''s view'", quoteSheet("Client's view"))
}
