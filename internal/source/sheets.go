package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/foreseon/IntelXScan/internal/config"
)

// Sheets reads emails from the first column of a spreadsheet range.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewSheets authenticates with a service-account JSON key.
func NewSheets(ctx context.Context, cfg config.SheetsSourceConfig) (*Sheets, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}
	opts := []option.ClientOption{option.WithTokenSource(creds.TokenSource)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewSheetsWithService(svc, cfg.SpreadsheetID, cfg.Range), nil
}

func NewSheetsWithService(svc *sheets.Service, spreadsheetID, readRange string) *Sheets {
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}
}

func (s *Sheets) Emails(ctx context.Context) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, wrapSheetsError(err)
	}
	return EmailsFromRows(resp.Values), nil
}

// EmailsFromRows takes the first cell of each row. Empty rows and blank
// first cells are skipped.
func EmailsFromRows(rows [][]interface{}) []string {
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 || row[0] == nil {
			continue
		}
		email := strings.TrimSpace(fmt.Sprint(row[0]))
		if email == "" {
			continue
		}
		emails = append(emails, email)
	}
	return emails
}

func wrapSheetsError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden:
			return fmt.Errorf("sheets: spreadsheet not shared with the service account: %w", err)
		case http.StatusNotFound:
			return fmt.Errorf("sheets: spreadsheet or range not found: %w", err)
		}
	}
	return fmt.Errorf("sheets values.get: %w", err)
}
