// File: internal/proxy/applier.go
package proxy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	json "github.com/json-iterator/go"
)

// Proxy modes understood by Chrome's proxy settings.
const (
	ModeFixedServers = "fixed_servers"
	ModeSystem       = "system"
)

// ProxyServer is a single upstream proxy.
type ProxyServer struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// Rules route traffic through SingleProxy except for BypassList hosts.
type Rules struct {
	SingleProxy ProxyServer `json:"singleProxy"`
	BypassList  []string    `json:"bypassList"`
}

// Settings is the proxy configuration in Chrome's proxy.settings shape.
type Settings struct {
	Mode  string `json:"mode"`
	Rules *Rules `json:"rules,omitempty"`
}

// FixedSOCKS5 routes everything through host:port except the bypass list.
func FixedSOCKS5(host string, port int, bypass []string) Settings {
	return Settings{
		Mode: ModeFixedServers,
		Rules: &Rules{
			SingleProxy: ProxyServer{Scheme: "socks5", Host: host, Port: port},
			BypassList:  append([]string(nil), bypass...),
		},
	}
}

// SystemSettings restores the platform's own proxy configuration.
func SystemSettings() Settings { return Settings{Mode: ModeSystem} }

// Applier makes proxy settings take effect on the platform.
type Applier interface {
	Apply(ctx context.Context, s Settings) error
}

// FileApplier writes the settings as JSON for a browser or launcher to pick up.
type FileApplier struct {
	Path string
}

// Apply writes s atomically to Path.
func (a FileApplier) Apply(ctx context.Context, s Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Path == "" {
		return fmt.Errorf("no proxy settings file configured")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode proxy settings: %w", err)
	}

	dir := filepath.Dir(a.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".proxy-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write proxy settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write proxy settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.Path); err != nil {
		return fmt.Errorf("failed to install proxy settings: %w", err)
	}
	return nil
}

// ReadSettings loads settings previously written by a FileApplier.
func ReadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to decode proxy settings: %w", err)
	}
	return s, nil
}

// Addr renders the single proxy as host:port.
func (s Settings) Addr() string {
	if s.Rules == nil {
		return ""
	}
	return s.Rules.SingleProxy.Host + ":" + strconv.Itoa(s.Rules.SingleProxy.Port)
}
