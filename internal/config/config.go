// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig, loader failures wrap ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// GeoJSONDir holds the basin layer files.
	GeoJSONDir string `koanf:"geojson_dir"`

	// DatabasePath is the SQLite file for contact submissions. Empty disables persistence.
	DatabasePath string `koanf:"database_path"`

	// RefreshCron is the cron spec that re-warms every dataset. Empty disables it.
	RefreshCron string `koanf:"refresh_cron"`

	// FetchTimeoutMS bounds a single spreadsheet download.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// Published CSV export URLs and their cache lifetimes in seconds.
	FlowsURL              string `koanf:"flows_url"`
	FlowsTTLSeconds       int    `koanf:"flows_ttl_s"`
	ReservoirsURL         string `koanf:"reservoirs_url"`
	ReservoirsTTLSeconds  int    `koanf:"reservoirs_ttl_s"`
	SimulationsURL        string `koanf:"simulations_url"`
	SimulationsTTLSeconds int    `koanf:"simulations_ttl_s"`
	DocumentsURL          string `koanf:"documents_url"`
	DocumentsTTLSeconds   int    `koanf:"documents_ttl_s"`

	// ContactQueueSize bounds the in-memory submission queue.
	ContactQueueSize int `koanf:"contact_queue_size"`

	// ContactWorkers sets the number of delivery workers.
	ContactWorkers int `koanf:"contact_workers"`

	// DedupeSize sets the size of the submission fingerprint cache.
	DedupeSize int `koanf:"dedupe_size"`

	// Contact spreadsheet append target. Empty id disables the sink.
	ContactSheetID        string `koanf:"contact_sheet_id"`
	ContactSheetRange     string `koanf:"contact_sheet_range"`
	GoogleCredentialsFile string `koanf:"google_credentials_file"`

	// Telegram notification. Empty token disables the sink.
	TelegramToken  string `koanf:"telegram_token"`
	TelegramChatID int64  `koanf:"telegram_chat_id"`

	// CSRFKey is the 32-byte key for the contact HTML form.
	CSRFKey       string `koanf:"csrf_key"`
	SecureCookies bool   `koanf:"secure_cookies"`
}

const csrfKeyLen = 32

// New creates a Config populated with defaults. The published sheet URLs
// point at the committee's public spreadsheets.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":8080",
		GeoJSONDir:            "geojson",
		DatabasePath:          "portal.db",
		RefreshCron:           "*/15 * * * *",
		FetchTimeoutMS:        15_000,
		FlowsURL:              "https://docs.google.com/spreadsheets/d/e/2PACX-1vS3ELBNKy8p7ZNxZFJYwkRlL8pBu1YnPvKkHbZWnHx7o2vIhFZMYIYS0ADw8uXyA2wpKBrjOx2PHnA7/pub?output=csv",
		FlowsTTLSeconds:       300,
		ReservoirsURL:         "https://docs.google.com/spreadsheets/d/1zZ0RCyYj-AzA_dhWzxRziDWjgforbaH7WIoSEd2EKdk/export?format=csv",
		ReservoirsTTLSeconds:  3600,
		SimulationsURL:        "https://docs.google.com/spreadsheets/d/1C40uaNmLUeu-k_FGEPZOgF8FwpSU00C9PtQu8Co4AUI/gviz/tq?tqx=out:csv&sheet=simulacoes_data",
		SimulationsTTLSeconds: 300,
		DocumentsURL:          "https://docs.google.com/spreadsheets/d/1-Tn_ZDHH-mNgJAY1ms_8qb0v-A-jCNZD9fYdUnPSiGw/export?format=csv",
		DocumentsTTLSeconds:   3600,
		ContactQueueSize:      1_000,
		ContactWorkers:        runtime.NumCPU(),
		DedupeSize:            10_000,
		ContactSheetRange:     "Respostas!A:M",
	}
}

// Validate checks invariants that the loader cannot express.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.FetchTimeoutMS <= 0:
		return fmt.Errorf("%w: fetch_timeout_ms must be positive", ErrInvalidConfig)
	case c.ContactQueueSize <= 0:
		return fmt.Errorf("%w: contact_queue_size must be positive", ErrInvalidConfig)
	case c.ContactWorkers <= 0:
		return fmt.Errorf("%w: contact_workers must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.CSRFKey != "" && len(c.CSRFKey) != csrfKeyLen:
		return fmt.Errorf("%w: csrf_key must be %d bytes", ErrInvalidConfig, csrfKeyLen)
	case c.ContactSheetID != "" && c.GoogleCredentialsFile == "":
		return fmt.Errorf("%w: contact_sheet_id requires google_credentials_file", ErrInvalidConfig)
	case c.TelegramToken != "" && c.TelegramChatID == 0:
		return fmt.Errorf("%w: telegram_token requires telegram_chat_id", ErrInvalidConfig)
	}
	for name, ttl := range map[string]int{
		"flows_ttl_s":       c.FlowsTTLSeconds,
		"reservoirs_ttl_s":  c.ReservoirsTTLSeconds,
		"simulations_ttl_s": c.SimulationsTTLSeconds,
		"documents_ttl_s":   c.DocumentsTTLSeconds,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	return nil
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// TTL converts a seconds field into a duration.
func TTL(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
