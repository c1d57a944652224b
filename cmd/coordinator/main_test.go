package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/caniclickit/internal/domain/quota"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

const mailPage = `<!DOCTYPE html>
<html><head><title>Inbox</title></head><body>
<p>Your account is locked. <a href="https://paypa1-secure.example/login">Verify now</a></p>
<p><a href="https://docs.example.org/help">Help center</a> <a href="https://docs.example.org/help">again</a></p>
<p><a href="#top">Top</a> <a href="mailto:support@example.com">Mail us</a></p>
</body></html>`

// fakeScanAPI answers like the scan service: lookalike domains are critical.
func fakeScanAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scan" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		var req struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		verdict, summary := "safe", "Known documentation site"
		if strings.Contains(req.Content, "paypa1") {
			verdict, summary = "critical", "Impersonates PayPal | lookalike domain"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scan_id":"s-1","verdict":"` + verdict + `","confidence":"high","summary":"` + summary + `","signals":[],"scan_type":"url","scanned_at":"2026-10-19T09:00:00Z"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testEnv(t *testing.T, apiURL string) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("CICI_STORAGE_DRIVER", "memory")
	t.Setenv("CICI_SCAN_API_BASE_URL", apiURL)
	t.Setenv("CICI_SCAN_RETRIES", "0")
	t.Setenv("CICI_LOGGING_LEVEL", "error")
	t.Setenv("NO_COLOR", "1")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "scan", "inspect", "quota", "version"} {
		assert.True(t, names[want], want)
	}
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	assert.NotEmpty(t, cmd.Version)
}

func TestVersionCmd(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out, err := run(t, "version", "--banner=false")
	require.NoError(t, err)
	assert.Contains(t, out, "coordinator version")
	assert.Contains(t, out, "commit:")

	withBanner, err := run(t, "version")
	require.NoError(t, err)
	assert.Greater(t, strings.Count(withBanner, "\n"), strings.Count(out, "\n"))
}

func TestScanCmd_JSON(t *testing.T) {
	api, calls := fakeScanAPI(t)
	testEnv(t, api.URL)

	out, err := run(t, "scan", "https://paypa1-secure.example/login", "--json")
	require.NoError(t, err)

	var body struct {
		Result scans.ScanResult `json:"result"`
		Quota  quota.Counts     `json:"quota"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, scans.VerdictCritical, body.Result.Verdict)
	assert.Equal(t, 1, body.Quota.ScansToday)
	assert.Equal(t, 4, body.Quota.Remaining)
	assert.EqualValues(t, 1, calls.Load())
}

func TestScanCmd_Text(t *testing.T) {
	api, _ := fakeScanAPI(t)
	testEnv(t, api.URL)

	out, err := run(t, "scan", "https://docs.example.org/help")
	require.NoError(t, err)
	assert.Contains(t, out, "safe (high confidence)")
	assert.Contains(t, out, "scans today: 1/5 (4 remaining)")
}

func TestScanCmd_ServiceDownPrintsFallback(t *testing.T) {
	api, _ := fakeScanAPI(t)
	api.Close()
	testEnv(t, api.URL)

	out, err := run(t, "scan", "https://docs.example.org/help")
	require.NoError(t, err)
	assert.Contains(t, out, "Unable to reach")
	assert.Contains(t, out, "scan service was not reached")
}

func TestScanCmd_RejectsBadURL(t *testing.T) {
	_, err := run(t, "scan", "javascript:alert(1)")
	assert.ErrorContains(t, err, "invalid URL scheme")
}

func TestQuotaCmd(t *testing.T) {
	testEnv(t, "http://127.0.0.1:1")

	out, err := run(t, "quota")
	require.NoError(t, err)
	assert.Contains(t, out, "scans today: 0/5, remaining: 5")

	out, err = run(t, "quota", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "quota reset")

	_, err = run(t, "quota", "limit", "0")
	assert.Error(t, err)
	_, err = run(t, "quota", "limit", "ten")
	assert.Error(t, err)
}

func TestInspectCmd(t *testing.T) {
	api, calls := fakeScanAPI(t)
	testEnv(t, api.URL)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mail", "2026"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mail", "2026", "inbox.html"), []byte(mailPage), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mail", "notes.html"), []byte("just some notes, not markup"), 0o600))

	report := filepath.Join(dir, "report.md")
	_, err := run(t, "inspect", filepath.Join(dir, "mail", "**", "*.html"),
		"--page-url", "https://mail.example.com/inbox",
		"--debounce", "1ms",
		"-o", report,
	)
	require.NoError(t, err)

	raw, err := os.ReadFile(report)
	require.NoError(t, err)
	md := string(raw)
	assert.Contains(t, md, "# Link safety report")
	assert.Contains(t, md, "inbox.html")
	assert.NotContains(t, md, "notes.html")
	assert.Contains(t, md, "https://paypa1-secure.example/login")
	assert.Contains(t, md, "interstitial")
	assert.Contains(t, md, "allow")
	assert.Contains(t, md, "Impersonates PayPal")
	assert.Contains(t, md, "[!CAUTION]")
	assert.Contains(t, md, "2/5 scans used today")
	assert.EqualValues(t, 2, calls.Load())
}

func TestInspectCmd_NoInput(t *testing.T) {
	testEnv(t, "http://127.0.0.1:1")
	_, err := run(t, "inspect", filepath.Join(t.TempDir(), "*.html"))
	assert.ErrorIs(t, err, errNoInput)
}
