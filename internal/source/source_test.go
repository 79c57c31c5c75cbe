package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/foreseon/IntelXScan/internal/config"
)

func TestEmailsFromRows(t *testing.T) {
	rows := [][]interface{}{
		{"a@example.com", "Alice", "x"},
		{},
		{"  b@example.com  "},
		{""},
		{nil, "orphan"},
		{"c@example.com"},
	}
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, EmailsFromRows(rows))
}

func newSheetsServer(t *testing.T, status int, body string) *Sheets {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v4/spreadsheets/sheet-id/values/")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewSheetsWithService(svc, "sheet-id", "Emails!A:D")
}

func TestSheets_Emails(t *testing.T) {
	s := newSheetsServer(t, http.StatusOK, `{
		"range": "Emails!A1:D4",
		"majorDimension": "ROWS",
		"values": [["a@example.com","note"],[],["b@example.com"]]
	}`)

	emails, err := s.Emails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, emails)
}

func TestSheets_Forbidden(t *testing.T) {
	s := newSheetsServer(t, http.StatusForbidden, `{"error":{"code":403,"message":"The caller does not have permission"}}`)

	_, err := s.Emails(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not shared")
}

func TestFile_Emails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.txt")
	require.NoError(t, os.WriteFile(path, []byte("# monitored\na@example.com\n\n  b@example.com \n"), 0o600))

	emails, err := File{Path: path}.Emails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, emails)
}

func TestFile_Missing(t *testing.T) {
	_, err := File{Path: filepath.Join(t.TempDir(), "none.txt")}.Emails(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNew(t *testing.T) {
	src, err := New(context.Background(), config.SourceConfig{Type: "file", File: config.FileSourceConfig{Path: "x"}})
	require.NoError(t, err)
	assert.Equal(t, File{Path: "x"}, src)

	_, err = New(context.Background(), config.SourceConfig{Type: "ldap"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.SourceConfig{Type: "sheets", Sheets: config.SheetsSourceConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
