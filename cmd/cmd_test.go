// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/autofill"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/browser"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/proxy"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/store"
)

func init() {
	color.NoColor = true
}

type testEnv struct {
	dir       string
	storePath string
	settings  string
}

// newTestEnv isolates a command run from the user's home, config and state.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:       dir,
		storePath: filepath.Join(dir, "state.db"),
		settings:  filepath.Join(dir, "proxy.json"),
	}
	t.Setenv("HOME", dir)
	t.Setenv("FAKESIGNUP_STORE_PATH", env.storePath)
	t.Setenv("FAKESIGNUP_PROXY_SETTINGS_FILE", env.settings)
	t.Setenv("FAKESIGNUP_LOGGER_LEVEL", "fatal")
	t.Setenv("FAKESIGNUP_PASSWORD_USE_REMOTE", "false")
	t.Setenv("FAKESIGNUP_IDENTITY_USE_GEO_LOCATION", "false")
	return env
}

func (e testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	rootCmd := NewRootCommand()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err = rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// field returns the value printed for label.
func field(t *testing.T, output, label string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, label+":") {
			return strings.TrimSpace(strings.TrimPrefix(line, label+":"))
		}
	}
	t.Fatalf("no %q in output:\n%s", label, output)
	return ""
}

func TestRootCmd_Version(t *testing.T) {
	out, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "fakesignup version "+Version+"\n", out)

	out, _, err = executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fakesignup version "+Version+"\n", out)
}

func TestRootCmd_NoArgs(t *testing.T) {
	newTestEnv(t)
	out, _, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Fills signup forms with generated identities")
	for _, sub := range []string{"fill", "identity", "password", "mail", "proxy", "serve"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_ArgValidation(t *testing.T) {
	newTestEnv(t)
	_, _, err := executeCommand(t, "password", "extra")
	assert.Error(t, err)

	_, _, err = executeCommand(t, "fill", "a.html", "b.html")
	assert.Error(t, err)
}

func TestPasswordCmd_Local(t *testing.T) {
	newTestEnv(t)
	out, _, err := executeCommand(t, "password", "--local", "--length", "12", "--no-symbols")
	require.NoError(t, err)

	pw := field(t, out, "Password")
	assert.Len(t, pw, 12)
	assert.False(t, strings.ContainsAny(pw, "!@#$%^&*()_+-=[]{}|;:,./?"))
	assert.Equal(t, "strong", field(t, out, "Strength"))
}

func TestPasswordCmd_ConfigFile(t *testing.T) {
	env := newTestEnv(t)
	cfgPath := env.write(t, "fakesignup.yaml", "password:\n  length: 20\n  symbols: false\n")

	out, _, err := executeCommand(t, "--config", cfgPath, "password")
	require.NoError(t, err)
	pw := field(t, out, "Password")
	assert.Len(t, pw, 20)
	assert.False(t, strings.ContainsAny(pw, "!@#$%^&*"))
}

func TestPasswordCmd_EnvFile(t *testing.T) {
	env := newTestEnv(t)
	envPath := env.write(t, "test.env", "FAKESIGNUP_PASSWORD_LENGTH=24\n")
	t.Cleanup(func() { os.Unsetenv("FAKESIGNUP_PASSWORD_LENGTH") })

	out, _, err := executeCommand(t, "--env-file", envPath, "password")
	require.NoError(t, err)
	assert.Len(t, field(t, out, "Password"), 24)

	_, _, err = executeCommand(t, "--env-file", filepath.Join(env.dir, "missing.env"), "password")
	assert.ErrorContains(t, err, "failed to load env file")
}

func TestInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	cfgPath := env.write(t, "bad.yaml", "password:\n  length: 2\n")

	_, _, err := executeCommand(t, "--config", cfgPath, "password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
}

const signupPage = `<html><body>
<form id="signup">
  <label for="u">Username</label><input id="u" name="username">
  <input type="email" name="email">
  <input type="password" name="password">
</form>
</body></html>`

func TestFillCmd(t *testing.T) {
	env := newTestEnv(t)
	page := env.write(t, "page.html", signupPage)
	outPath := filepath.Join(env.dir, "filled.html")

	_, stderr, err := executeCommand(t, "fill", page, "-o", outPath,
		"--username", "jdoe42", "--email", "jane@example.com", "--password", "S3cure!Pass#word", "--report")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Filled 3 field(s).")
	assert.NotContains(t, stderr, "S3cure!Pass#word", "the report never includes passwords")

	filled, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(filled), `value="jdoe42"`)
	assert.Contains(t, string(filled), `value="jane@example.com"`)
	assert.Contains(t, string(filled), `value="S3cure!Pass#word"`)

	// The identity is remembered for the verification code lookup.
	st, err := store.Open(env.storePath, time.Hour, nil)
	require.NoError(t, err)
	defer st.Close()
	sub, err := st.LastSubmission(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "jdoe42", sub.Record.Username)
	assert.Equal(t, "jane@example.com", sub.Record.Email)
}

func TestFillCmd_Stdin(t *testing.T) {
	newTestEnv(t)
	rootCmd := NewRootCommand()
	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(signupPage))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"fill", "--offline", "--email", "a@b.test"})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `value="a@b.test"`)
	assert.Contains(t, errOut.String(), "Filled 1 field(s).")
}

func TestFillCmd_NoForms(t *testing.T) {
	env := newTestEnv(t)
	page := env.write(t, "plain.html", "<p>nothing to sign up for</p>")

	out, stderr, err := executeCommand(t, "fill", page, "--offline")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "no forms found in document")
}

// fakeBrowser serves a fixed page and records what is replayed onto it.
type fakeBrowser struct {
	page      string
	cfg       config.BrowserConfig
	proxyAddr string
	url       string
	replayed  []autofill.FillDecision
	missing   []string
	closed    bool
}

func (b *fakeBrowser) Snapshot(_ context.Context, url string) (string, error) {
	b.url = url
	return b.page, nil
}

func (b *fakeBrowser) Replay(_ context.Context, decisions []autofill.FillDecision) (*browser.ReplayReport, error) {
	b.replayed = decisions
	return &browser.ReplayReport{Applied: len(decisions) - len(b.missing), Missing: b.missing}, nil
}

func (b *fakeBrowser) Wait(context.Context) {}
func (b *fakeBrowser) Close()               { b.closed = true }

func useFakeBrowser(t *testing.T, b *fakeBrowser) {
	t.Helper()
	orig := launchBrowser
	launchBrowser = func(_ context.Context, cfg config.BrowserConfig, proxyAddr string, _ *zap.Logger) (liveBrowser, error) {
		b.cfg, b.proxyAddr = cfg, proxyAddr
		return b, nil
	}
	t.Cleanup(func() { launchBrowser = orig })
}

func TestFillCmd_LivePage(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("FAKESIGNUP_PROXY_LIST_FILE", env.write(t, "proxies.txt", "10.1.1.1:1080\n"))
	_, _, err := executeCommand(t, "proxy", "switch")
	require.NoError(t, err)

	b := &fakeBrowser{page: signupPage}
	useFakeBrowser(t, b)

	_, stderr, err := executeCommand(t, "fill", "--url", "https://example.test/signup", "--headed",
		"--username", "jdoe42", "--email", "jane@example.com", "--password", "S3cure!Pass#word")
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/signup", b.url)
	assert.False(t, b.cfg.Headless, "--headed shows the window")
	assert.Equal(t, "10.1.1.1:1080", b.proxyAddr, "the browser goes through the current proxy")
	assert.True(t, b.closed)
	assert.Contains(t, stderr, "Filled 3 field(s) on https://example.test/signup.")

	values := map[autofill.Role]string{}
	for _, d := range b.replayed {
		values[d.Role] = d.Value
	}
	assert.Equal(t, "jdoe42", values[autofill.RoleUsername])
	assert.Equal(t, "S3cure!Pass#word", values[autofill.RolePassword], "the live page receives the real password")
}

func TestFillCmd_LivePageMissingControls(t *testing.T) {
	newTestEnv(t)
	t.Setenv("FAKESIGNUP_BROWSER_USE_PROXY", "false")
	b := &fakeBrowser{page: signupPage, missing: []string{"//*[@id='u']"}}
	useFakeBrowser(t, b)

	_, stderr, err := executeCommand(t, "fill", "--url", "https://example.test/signup", "--offline", "--username", "jdoe42")
	require.NoError(t, err)
	assert.True(t, b.cfg.Headless, "headless by default")
	assert.Empty(t, b.proxyAddr)
	assert.Contains(t, stderr, "1 field(s) changed on the page")
}

func TestFillCmd_URLAndFileConflict(t *testing.T) {
	env := newTestEnv(t)
	page := env.write(t, "page.html", signupPage)

	_, _, err := executeCommand(t, "fill", page, "--url", "https://example.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestProxyCmds(t *testing.T) {
	env := newTestEnv(t)
	list := env.write(t, "proxies.txt", "10.1.1.1:1080\n")
	t.Setenv("FAKESIGNUP_PROXY_LIST_FILE", list)

	out, _, err := executeCommand(t, "proxy", "status")
	require.NoError(t, err)
	assert.Equal(t, "none (system settings)", field(t, out, "Proxy"))

	out, _, err = executeCommand(t, "proxy", "switch")
	require.NoError(t, err)
	assert.Contains(t, out, "Proxy set to 10.1.1.1:1080")

	settings, err := proxy.ReadSettings(env.settings)
	require.NoError(t, err)
	assert.Equal(t, proxy.ModeFixedServers, settings.Mode)
	assert.Equal(t, "10.1.1.1:1080", settings.Addr())

	out, _, err = executeCommand(t, "proxy", "status")
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1:1080", field(t, out, "Proxy"), "the proxy in use survives between runs")

	out, _, err = executeCommand(t, "proxy", "disconnect")
	require.NoError(t, err)
	assert.Contains(t, out, "Proxy disabled")
	settings, err = proxy.ReadSettings(env.settings)
	require.NoError(t, err)
	assert.Equal(t, proxy.ModeSystem, settings.Mode)
}

func TestProxyCmd_SettingsFileFlag(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("FAKESIGNUP_PROXY_LIST_FILE", env.write(t, "proxies.txt", "10.2.2.2:9050\n"))
	custom := filepath.Join(env.dir, "custom", "proxy.json")

	_, _, err := executeCommand(t, "proxy", "switch", "--settings-file", custom)
	require.NoError(t, err)

	settings, err := proxy.ReadSettings(custom)
	require.NoError(t, err)
	assert.Equal(t, "10.2.2.2:9050", settings.Addr())
	_, err = os.Stat(env.settings)
	assert.True(t, os.IsNotExist(err))
}

func TestProxyCmd_EmptyList(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("FAKESIGNUP_PROXY_LIST_FILE", env.write(t, "proxies.txt", "\n"))

	_, stderr, err := executeCommand(t, "proxy", "switch")
	require.NoError(t, err)
	assert.Contains(t, stderr, proxy.MsgNoProxies)
}

func TestMailCode_NoAccount(t *testing.T) {
	newTestEnv(t)
	_, _, err := executeCommand(t, "mail", "code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fakesignup mail create")
}

// fakeMailTM serves just enough of the mail.tm API for one mailbox.
func fakeMailTM(t *testing.T) *httptest.Server {
	t.Helper()
	var password string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/domains":
			_, _ = io.WriteString(w, `{"hydra:member":[{"id":"d1","domain":"mail.test","isActive":true}]}`)
		case "/accounts":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			password = in["password"]
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"acc-1"}`)
		case "/token":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["password"] != password {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"token":"tok-1","id":"acc-1"}`)
		case "/messages":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"hydra:member":[]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMailCreateThenCode(t *testing.T) {
	newTestEnv(t)
	t.Setenv("FAKESIGNUP_MAIL_BASE_URL", fakeMailTM(t).URL)

	out, _, err := executeCommand(t, "mail", "create")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(field(t, out, "Email"), "@mail.test"))
	assert.Equal(t, "acc-1", field(t, out, "ID"))

	// The mailbox is restored from the state store by the next run.
	out, _, err = executeCommand(t, "mail", "code")
	require.NoError(t, err)
	assert.Equal(t, "No messages yet. Check back in a minute.\n", out)
}
