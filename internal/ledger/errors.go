package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNoYearTables means the source holds no yearly ledger table at all.
	ErrNoYearTables = errors.New("no yearly ledger tables found")
	// ErrMissingClientColumn means a table header lacks the client column.
	ErrMissingClientColumn = errors.New("client column not found")
)

// TableError reports a failure tied to one yearly table.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("ledger table %q: %v", e.Table, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}
