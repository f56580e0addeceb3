package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/pauloqxm/portal-comite/internal/config"
	"github.com/pauloqxm/portal-comite/internal/probe"
)

const defaultProbeTimeout = 5 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	var (
		datasets = flag.String("datasets", "", "Comma separated datasets to check (default all)")
		timeout  = flag.Duration("timeout", 0, "Per-sheet fetch timeout (default from config)")
		output   = flag.String("output", "", "Write the report as JSON to this file")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		probe.ShowHelp(os.Stdout)
		return 0
	}

	if err := probe.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultProbeTimeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		return 2
	}
	sheets, err := probe.SheetsFrom(cfg, *datasets)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 2
	}
	if *timeout <= 0 {
		*timeout = cfg.FetchTimeout()
	}

	report, runErr := probe.Run(ctx, &probe.Config{
		Sheets:     sheets,
		Timeout:    *timeout,
		OutputFile: *output,
		Verbose:    *verbose,
	})
	if err := probe.PrintReport(os.Stdout, report); err != nil {
		os.Stderr.WriteString("Failed to print report: " + err.Error() + "\n")
		return 2
	}
	if runErr != nil {
		os.Stderr.WriteString("Probe failed: " + runErr.Error() + "\n")
		return 1
	}
	return 0
}
