package probe

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pauloqxm/portal-comite/internal/config"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// SetupLogging initializes the logger, writing to stderr so stdout carries
// only the report.
func SetupLogging(verbose bool) error {
	if err := logger.InitWithWriter(os.Stderr); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if !verbose {
		return logger.SetLevelString("warn")
	}
	return nil
}

// SheetsFrom selects the sheets named in only (comma separated, empty for
// all) from the portal configuration.
func SheetsFrom(cfg *config.Config, only string) ([]Sheet, error) {
	all := []Sheet{
		{Dataset: DatasetFlows, URL: cfg.FlowsURL},
		{Dataset: DatasetReservoirs, URL: cfg.ReservoirsURL},
		{Dataset: DatasetSimulations, URL: cfg.SimulationsURL},
		{Dataset: DatasetDocuments, URL: cfg.DocumentsURL},
	}
	if strings.TrimSpace(only) == "" {
		return all, nil
	}
	var out []Sheet
	for _, name := range strings.Split(only, ",") {
		name = strings.TrimSpace(name)
		if !Known(name) {
			return nil, fmt.Errorf("unknown dataset %q", name)
		}
		for _, s := range all {
			if s.Dataset == name {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// ShowHelp prints usage information for the probe tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Portal Banabuiú Sheet Probe
===========================

Fetches every published spreadsheet the portal reads, parses it and prints
row counts, missing columns and date ranges. Exits non-zero when a sheet
cannot be fetched or parsed.

Sheet URLs come from the portal configuration (PORTAL_CONFIG file and
PORTAL_* environment variables).

Usage:
  go run ./cmd/probe [options]

Options:
  -datasets string
        Comma separated subset: flows, reservoirs, simulations, documents
  -timeout duration
        Per-sheet fetch timeout (default from fetch_timeout_ms)
  -output string
        Also write the report as JSON to this file
  -verbose
        Log each sheet as it is checked
  -help
        Show this help message

Examples:
  go run ./cmd/probe
  PORTAL_FLOWS_URL=https://example.org/flows.csv go run ./cmd/probe -datasets flows
  go run ./cmd/probe -output reports/probe.json
`)
}
