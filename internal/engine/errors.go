package engine

import "errors"

var (
	// ErrConfigNotFound means no sync config exists for the requested table.
	ErrConfigNotFound = errors.New("sync config not found")

	// ErrNoData means the spreadsheet yielded no data rows beyond the header.
	ErrNoData = errors.New("spreadsheet has no data rows")
)

// SourceFetchError wraps a network or auth failure reading the spreadsheet.
type SourceFetchError struct {
	Err error
}

func (e *SourceFetchError) Error() string { return "fetch spreadsheet: " + e.Err.Error() }

func (e *SourceFetchError) Unwrap() error { return e.Err }

// StoreWriteError wraps a transaction or batch-insert failure on the target
// store. The enclosing transaction has been rolled back when this surfaces.
type StoreWriteError struct {
	Err error
}

func (e *StoreWriteError) Error() string { return "store write: " + e.Err.Error() }

func (e *StoreWriteError) Unwrap() error { return e.Err }
