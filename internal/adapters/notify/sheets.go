package notify

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// SheetAppender appends each message as a row of the answers spreadsheet,
// authenticated with a service account.
type SheetAppender struct {
	srv           *sheets.Service
	spreadsheetID string
	rng           string
	loc           *time.Location
	logger        logger.Logger
}

// NewSheetAppender builds the Sheets client. opts are passed to the Google
// API client; production callers pass option.WithCredentialsFile.
func NewSheetAppender(ctx context.Context, spreadsheetID, rng string, opts ...option.ClientOption) (*SheetAppender, error) {
	if spreadsheetID == "" || rng == "" {
		return nil, ErrNotConfigured
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &SheetAppender{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		rng:           rng,
		loc:           ptbr.Brasilia,
		logger:        logger.Get().Named("sheets-append"),
	}, nil
}

// Name identifies the sink.
func (s *SheetAppender) Name() string { return "sheets" }

// Deliver appends one row. Values are stored as typed, never evaluated.
func (s *SheetAppender) Deliver(ctx context.Context, m contact.Message) error { //nolint:gocritic // hugeParam
	vr := &sheets.ValueRange{Values: [][]interface{}{m.SheetRow(s.loc)}}
	resp, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, s.rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: sheets append: %v", ErrRejected, err)
	}
	if resp.Updates != nil {
		s.logger.Debug(ctx, "contact appended",
			logger.String("id", m.ID),
			logger.String("range", resp.Updates.UpdatedRange),
		)
	}
	return nil
}
