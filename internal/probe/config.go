package probe

import (
	"time"
)

// Config holds configuration for a probe run.
type Config struct {
	Sheets     []Sheet       // Sheets to check, in report order
	Timeout    time.Duration // Per-sheet fetch timeout
	OutputFile string        // Optional JSON report path
	Verbose    bool          // Log every sheet as it finishes
}

// Sheet names one published spreadsheet.
type Sheet struct {
	Dataset string
	URL     string
}

// Result is the outcome of one sheet.
type Result struct {
	Dataset         string   `json:"dataset"`
	URL             string   `json:"url"`
	Rows            int      `json:"rows"`
	Parsed          int      `json:"parsed"`
	MissingRequired []string `json:"missing_required,omitempty"`
	MissingOptional []string `json:"missing_optional,omitempty"`
	FirstDate       string   `json:"first_date,omitempty"`
	LastDate        string   `json:"last_date,omitempty"`
	Undated         int      `json:"undated"`
	Layout          string   `json:"layout,omitempty"`
	Notes           []string `json:"notes,omitempty"`
	TookMs          int64    `json:"took_ms"`
	Error           string   `json:"error,omitempty"`
}

// OK reports whether the sheet was fetched and parsed.
func (r Result) OK() bool { return r.Error == "" }

// Report holds the results of a run.
type Report struct {
	Results   []Result      `json:"results"`
	Failed    int           `json:"failed"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration_ns"`
}
