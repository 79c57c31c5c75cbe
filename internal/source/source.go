// Package source supplies the list of monitored email addresses.
package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/foreseon/IntelXScan/internal/config"
)

// EmailSource returns monitored emails in sheet/file order.
type EmailSource interface {
	Emails(ctx context.Context) ([]string, error)
}

func New(ctx context.Context, cfg config.SourceConfig) (EmailSource, error) {
	switch strings.ToLower(cfg.Type) {
	case "sheets":
		return NewSheets(ctx, cfg.Sheets)
	case "file":
		return File{Path: cfg.File.Path}, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

// File reads one email per line; blank lines and lines starting with '#'
// are ignored.
type File struct {
	Path string
}

func (f File) Emails(_ context.Context) ([]string, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read email list: %w", err)
	}
	var emails []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		emails = append(emails, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan email list: %w", err)
	}
	return emails, nil
}

// Static is a fixed list, used by the check command.
type Static []string

func (s Static) Emails(_ context.Context) ([]string, error) {
	return []string(s), nil
}
