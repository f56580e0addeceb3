package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// PrintReport writes one line per sheet followed by the failures.
func PrintReport(w io.Writer, report *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tSTATUS\tROWS\tPARSED\tFIRST\tLAST\tUNDATED\tMISSING\tTOOK")
	for _, r := range report.Results {
		status := "ok"
		if !r.OK() {
			status = "FAIL"
		}
		missing := strings.Join(r.MissingRequired, ", ")
		if missing == "" {
			missing = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%d\t%s\t%dms\n",
			r.Dataset, status, r.Rows, r.Parsed, dash(r.FirstDate), dash(r.LastDate), r.Undated, missing, r.TookMs)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range report.Results {
		if r.Error != "" {
			fmt.Fprintf(w, "\n%s: %s\n", r.Dataset, r.Error)
		}
		if r.Layout != "" {
			fmt.Fprintf(w, "%s: %s layout\n", r.Dataset, r.Layout)
			for _, n := range r.Notes {
				fmt.Fprintf(w, "  %s\n", n)
			}
		}
		if len(r.MissingOptional) > 0 {
			fmt.Fprintf(w, "%s: optional columns absent: %s\n", r.Dataset, strings.Join(r.MissingOptional, ", "))
		}
	}
	_, err := fmt.Fprintf(w, "\n%d sheet(s), %d failed, %s\n", len(report.Results), report.Failed, report.Duration.Round(time.Millisecond))
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// SaveReport writes the report as indented JSON.
func SaveReport(ctx context.Context, filename string, report *Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Get().Info(ctx, "report saved to file", logger.String("filename", filename))
	return nil
}
