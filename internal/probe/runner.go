// Package probe checks the published spreadsheets the portal reads: each
// sheet is fetched once, parsed with the portal's own parsers and summarised.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pauloqxm/portal-comite/internal/adapters/sheets"
	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// ErrFailed is returned when at least one sheet could not be read.
var ErrFailed = errors.New("probe: sheets failed")

// Run fetches every configured sheet concurrently and returns the report.
// The error wraps ErrFailed when any sheet failed; the report is complete
// either way.
func Run(ctx context.Context, config *Config) (*Report, error) {
	log := logger.Get().Named("probe")
	report := &Report{StartTime: time.Now(), Results: make([]Result, len(config.Sheets))}

	log.Info(ctx, "starting sheet probe",
		logger.Int("sheets", len(config.Sheets)),
		logger.Duration("timeout", config.Timeout),
	)

	client := sheets.NewClient(sheets.WithTimeout(config.Timeout))
	var wg sync.WaitGroup
	for i, sheet := range config.Sheets {
		wg.Add(1)
		go func(i int, sheet Sheet) {
			defer wg.Done()
			report.Results[i] = probeSheet(ctx, client, sheet)
			if config.Verbose {
				r := report.Results[i]
				log.Info(ctx, "sheet checked",
					logger.String("dataset", r.Dataset),
					logger.Int("rows", r.Rows),
					logger.Int64("tookMs", r.TookMs),
					logger.String("error", r.Error),
				)
			}
		}(i, sheet)
	}
	wg.Wait()

	report.Duration = time.Since(report.StartTime)
	for _, r := range report.Results {
		if !r.OK() {
			report.Failed++
		}
	}

	if config.OutputFile != "" {
		if err := SaveReport(ctx, config.OutputFile, report); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}

	if report.Failed > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrFailed, report.Failed, len(report.Results))
	}
	log.Info(ctx, "probe completed", logger.Duration("duration", report.Duration))
	return report, nil
}

func probeSheet(ctx context.Context, client *sheets.Client, sheet Sheet) (res Result) {
	res = Result{Dataset: sheet.Dataset, URL: sheet.URL}
	start := time.Now()
	defer func() { res.TookMs = time.Since(start).Milliseconds() }()

	c, ok := checks[sheet.Dataset]
	if !ok {
		res.Error = "unknown dataset"
		return res
	}

	t, err := client.Fetch(ctx, sheet.Dataset, sheet.URL)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Rows = t.Len()
	res.MissingRequired = t.Missing(c.required...)

	// Parsers may rename alias columns, so optional ones are checked after.
	p, err := c.parse(t)
	res.MissingOptional = t.Missing(c.optional...)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Parsed = p.count
	res.Layout, res.Notes = p.layout, p.notes
	first, last, undated := span(p.dates)
	if !first.IsZero() {
		res.FirstDate = ptbr.FormatDate(first)
		res.LastDate = ptbr.FormatDate(last)
	}
	res.Undated = undated
	return res
}
