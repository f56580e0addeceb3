package sheets

import "errors"

// Sentinel errors for spreadsheet ingestion.
var (
	ErrFetch    = errors.New("sheets: fetch failed")
	ErrStatus   = errors.New("sheets: unexpected status")
	ErrEmptyURL = errors.New("sheets: empty url")
)
