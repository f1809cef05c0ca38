package proxy

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/network"
)

type staticSource struct {
	list []string
	err  error
}

func (s staticSource) Load(context.Context) ([]string, error) {
	return append([]string(nil), s.list...), s.err
}

// sharedSource hands out the same slice on every Load, like a caching source.
type sharedSource struct{ list []string }

func (s *sharedSource) Load(context.Context) ([]string, error) { return s.list, nil }

type recordingApplier struct {
	mu      sync.Mutex
	applied []Settings
	err     error
}

func (a *recordingApplier) Apply(_ context.Context, s Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.applied = append(a.applied, s)
	return nil
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, addr string) error {
	return m.Called(ctx, addr).Error(0)
}

type memoryState struct {
	mu  sync.Mutex
	cur string
}

func (m *memoryState) CurrentProxy(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == "" {
		return "", errors.New("not found")
	}
	return m.cur, nil
}

func (m *memoryState) SetCurrentProxy(_ context.Context, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = addr
	return nil
}

func (m *memoryState) ClearCurrentProxy(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = ""
	return nil
}

func testProxyConfig() config.ProxyConfig {
	return config.ProxyConfig{MaxAttempts: 5, BypassList: []string{"localhost", "127.0.0.1"}}
}

func TestSwitch_Success(t *testing.T) {
	applier := &recordingApplier{}
	state := &memoryState{}
	r := NewRotator(testProxyConfig(), staticSource{list: []string{"10.0.0.1:1080"}}, applier, WithStateStore(state))

	res := r.Switch(context.Background())
	assert.Equal(t, Result{Success: true, Proxy: "10.0.0.1:1080"}, res)

	require.Len(t, applier.applied, 1)
	assert.Equal(t, FixedSOCKS5("10.0.0.1", 1080, []string{"localhost", "127.0.0.1"}), applier.applied[0])

	cur, ok := r.Current(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1:1080", cur)
	assert.Equal(t, "10.0.0.1:1080", state.cur)
}

func TestSwitch_LeavesSourceListIntact(t *testing.T) {
	src := &sharedSource{list: []string{"bad-1", "10.0.0.1:1080", "bad-2", "10.0.0.2:1080"}}
	want := append([]string(nil), src.list...)
	r := NewRotator(testProxyConfig(), src, &recordingApplier{})

	for i := 0; i < 3; i++ {
		res := r.Switch(context.Background())
		assert.True(t, res.Success)
		assert.Equal(t, want, src.list, "switch %d must not reorder the cached list", i)
	}
}

func TestSwitch_EmptyList(t *testing.T) {
	applier := &recordingApplier{}
	r := NewRotator(testProxyConfig(), staticSource{}, applier)

	res := r.Switch(context.Background())
	assert.Equal(t, Result{Message: MsgNoProxies}, res)
	assert.Empty(t, applier.applied)

	_, err := r.Candidates(context.Background())
	assert.ErrorIs(t, err, ErrNoProxies)
}

func TestSwitch_LoadError(t *testing.T) {
	r := NewRotator(testProxyConfig(), staticSource{err: errors.New("list offline")}, &recordingApplier{})
	res := r.Switch(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "list offline", res.Message)
}

func TestSwitch_SkipsMalformed(t *testing.T) {
	applier := &recordingApplier{}
	list := []string{"nohost", ":1080", "host:", "host:abc", "host:70000", "good.example:9050"}
	r := NewRotator(config.ProxyConfig{MaxAttempts: len(list)}, staticSource{list: list}, applier, WithRand(rand.New(rand.NewSource(1))))

	res := r.Switch(context.Background())
	assert.Equal(t, Result{Success: true, Proxy: "good.example:9050"}, res)
	require.Len(t, applier.applied, 1)
}

func TestSwitch_AllMalformed(t *testing.T) {
	applier := &recordingApplier{}
	r := NewRotator(testProxyConfig(), staticSource{list: []string{"a", "b:", ":1"}}, applier)

	res := r.Switch(context.Background())
	assert.Equal(t, Result{Message: MsgNoneWorked}, res)
	assert.Empty(t, applier.applied)
}

func TestSwitch_AttemptsBounded(t *testing.T) {
	verifier := new(mockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(errors.New("dead"))

	list := make([]string, 20)
	for i := range list {
		list[i] = "10.0.0.1:" + string(rune('1'+i%9)) + "000"
	}
	r := NewRotator(testProxyConfig(), staticSource{list: list}, &recordingApplier{}, WithVerifier(verifier))

	res := r.Switch(context.Background())
	assert.Equal(t, Result{Message: MsgNoneWorked}, res)
	verifier.AssertNumberOfCalls(t, "Verify", 5)
}

func TestSwitch_AttemptsBoundedByListSize(t *testing.T) {
	verifier := new(mockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(errors.New("dead"))

	r := NewRotator(testProxyConfig(), staticSource{list: []string{"a.test:1", "b.test:2"}}, &recordingApplier{}, WithVerifier(verifier))
	res := r.Switch(context.Background())
	assert.False(t, res.Success)
	verifier.AssertNumberOfCalls(t, "Verify", 2)
	verifier.AssertCalled(t, "Verify", mock.Anything, "a.test:1")
	verifier.AssertCalled(t, "Verify", mock.Anything, "b.test:2")
}

func TestSwitch_VerifySelectsWorkingProxy(t *testing.T) {
	verifier := new(mockVerifier)
	verifier.On("Verify", mock.Anything, "dead.test:1").Return(errors.New("refused"))
	verifier.On("Verify", mock.Anything, "live.test:2").Return(nil)

	r := NewRotator(testProxyConfig(), staticSource{list: []string{"dead.test:1", "live.test:2"}}, &recordingApplier{}, WithVerifier(verifier))
	res := r.Switch(context.Background())
	assert.Equal(t, Result{Success: true, Proxy: "live.test:2"}, res)
}

func TestSwitch_ApplyError(t *testing.T) {
	applier := &recordingApplier{err: errors.New("permission denied")}
	r := NewRotator(testProxyConfig(), staticSource{list: []string{"a.test:1", "b.test:2"}}, applier)

	res := r.Switch(context.Background())
	assert.Equal(t, Result{Message: "Error setting proxy: permission denied"}, res)
	_, ok := r.Current(context.Background())
	assert.False(t, ok)
}

func TestSwitch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRotator(testProxyConfig(), staticSource{list: []string{"a.test:1"}}, &recordingApplier{})
	res := r.Switch(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, context.Canceled.Error(), res.Message)
}

func TestDisconnect(t *testing.T) {
	applier := &recordingApplier{}
	state := &memoryState{cur: "10.0.0.1:1080"}
	r := NewRotator(testProxyConfig(), staticSource{}, applier, WithStateStore(state))

	cur, ok := r.Current(context.Background())
	require.True(t, ok, "current proxy is read from the state store")
	assert.Equal(t, "10.0.0.1:1080", cur)

	res := r.Disconnect(context.Background())
	assert.Equal(t, Result{Success: true}, res)
	require.Len(t, applier.applied, 1)
	assert.Equal(t, SystemSettings(), applier.applied[0])

	_, ok = r.Current(context.Background())
	assert.False(t, ok)
	assert.Empty(t, state.cur)
}

func TestDisconnect_ApplyError(t *testing.T) {
	r := NewRotator(testProxyConfig(), staticSource{}, &recordingApplier{err: errors.New("locked")})
	res := r.Disconnect(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "Error disabling proxy: locked", res.Message)
}

func TestNewRotator_VerifyFromConfig(t *testing.T) {
	cfg := testProxyConfig()
	cfg.Verify = true
	cfg.VerifyTarget = "api.ipify.org:443"
	r := NewRotator(cfg, staticSource{}, &recordingApplier{})
	assert.Equal(t, SOCKS5Verifier{Target: "api.ipify.org:443"}, r.verifier)

	r = NewRotator(testProxyConfig(), staticSource{}, &recordingApplier{})
	assert.Nil(t, r.verifier)
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		in   string
		host string
		port int
		ok   bool
	}{
		{"1.2.3.4:1080", "1.2.3.4", 1080, true},
		{" proxy.test:9050 ", "proxy.test", 9050, true},
		{"1.2.3.4", "", 0, false},
		{":1080", "", 0, false},
		{"1.2.3.4:", "", 0, false},
		{"1.2.3.4:x", "", 0, false},
		{"1.2.3.4:0", "", 0, false},
		{"1.2.3.4:65536", "", 0, false},
	}
	for _, tt := range tests {
		host, port, ok := SplitHostPort(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.host, host, tt.in)
		assert.Equal(t, tt.port, port, tt.in)
	}
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"1.1.1.1:1080", "2.2.2.2:9050"}, ParseList("1.1.1.1:1080\r\n\n  \n2.2.2.2:9050\n"))
	assert.Empty(t, ParseList(""))
}

func TestSources(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.1.1.1:1080\n\n"), 0o600))
	list, err := SourceFromConfig(config.ProxyConfig{ListFile: path, ListURL: "http://unused"}, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1:1080"}, list)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing")}.Load(ctx)
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "3.3.3.3:1080\n4.4.4.4:1080\n")
	}))
	defer server.Close()

	fetcher := network.NewFetcher(http.DefaultClient, config.NetworkConfig{}, nil)
	list, err = SourceFromConfig(config.ProxyConfig{ListURL: server.URL}, fetcher).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"3.3.3.3:1080", "4.4.4.4:1080"}, list)
}

func TestFileApplier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "proxy.json")
	a := FileApplier{Path: path}

	require.NoError(t, a.Apply(context.Background(), FixedSOCKS5("5.6.7.8", 1080, []string{"localhost", "127.0.0.1"})))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
	  "mode": "fixed_servers",
	  "rules": {
	    "singleProxy": {"scheme": "socks5", "host": "5.6.7.8", "port": 1080},
	    "bypassList": ["localhost", "127.0.0.1"]
	  }
	}`, string(raw))

	s, err := ReadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8:1080", s.Addr())

	require.NoError(t, a.Apply(context.Background(), SystemSettings()))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"system"}`, string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")

	assert.Error(t, FileApplier{}.Apply(context.Background(), SystemSettings()))
}
