package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/foreseon/IntelXScan/internal/logging"
	"github.com/foreseon/IntelXScan/internal/secrets"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(logging.NewWithWriter(&bytes.Buffer{}, false))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig points the search API at a server that fails for fail@example.com
// and returns no records for everyone else.
func writeConfig(t *testing.T, emails ...string) string {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/live/search/internal":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": r.URL.Query().Get("selector")})
		case "/live/search/result":
			if r.URL.Query().Get("id") == "fail@example.com" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"records":[]}`))
		}
	}))
	t.Cleanup(api.Close)

	dir := t.TempDir()
	list := filepath.Join(dir, "emails.txt")
	require.NoError(t, os.WriteFile(list, []byte(strings.Join(emails, "\n")), 0o600))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
runtime:
  email_delay_ms: 1
intelx:
  base_url: `+api.URL+`
  api_key: k
storage:
  path: `+filepath.Join(dir, "store")+`
source:
  type: file
  file:
    path: `+list+`
notify:
  provider: dingding
dingding:
  webhook: http://127.0.0.1:1/unused
`), 0o600))
	return path
}

func TestRunCmd_ReportsSummary(t *testing.T) {
	cfg := writeConfig(t, "a@example.com", "fail@example.com")

	out, err := execute(t, "", "run", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "2 emails, 0 new leaks, 1 failed")
	assert.Contains(t, out, "fail@example.com: fetch:")
}

func TestRunCmd_StrictFailsOnEmailError(t *testing.T) {
	cfg := writeConfig(t, "a@example.com", "fail@example.com")

	_, err := execute(t, "", "run", "--strict", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 emails failed")
}

func TestRunCmd_MissingConfig(t *testing.T) {
	_, err := execute(t, "", "run", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCheckCmd(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "check", "--config", cfg, "a@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "1 emails, 0 new leaks, 0 failed")

	_, err = execute(t, "", "check", "--config", cfg, "fail@example.com")
	assert.Error(t, err)
}

func TestCheckCmd_RequiresEmail(t *testing.T) {
	_, err := execute(t, "", "check")
	assert.Error(t, err)
}

func TestSecretSetCmd(t *testing.T) {
	keyring.MockInit()

	out, err := execute(t, "s3cret\n", "secret", "set", "intelx")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored secret for intelx.")

	got, err := secrets.Resolve("intelx.api_key", "", "intelx")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestSecretSetCmd_EmptyInput(t *testing.T) {
	keyring.MockInit()

	_, err := execute(t, "\n", "secret", "set", "intelx")
	assert.Error(t, err)
}
