// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper uses when reading overrides from the environment.
const EnvPrefix = "FAKESIGNUP"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Network() NetworkConfig
	Identity() IdentityConfig
	Password() PasswordConfig
	Mail() MailConfig
	Proxy() ProxyConfig
	Store() StoreConfig
	Autofill() AutofillConfig
	API() APIConfig
	Browser() BrowserConfig

	// Setters driven by CLI flags.
	SetStorePath(string)
	SetProxyVerify(bool)
	SetProxySettingsFile(string)
	SetAPIListenAddr(string)
	SetMailWaitTimeout(time.Duration)
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	NetworkCfg  NetworkConfig  `mapstructure:"network" yaml:"network"`
	IdentityCfg IdentityConfig `mapstructure:"identity" yaml:"identity"`
	PasswordCfg PasswordConfig `mapstructure:"password" yaml:"password"`
	MailCfg     MailConfig     `mapstructure:"mail" yaml:"mail"`
	ProxyCfg    ProxyConfig    `mapstructure:"proxy" yaml:"proxy"`
	StoreCfg    StoreConfig    `mapstructure:"store" yaml:"store"`
	AutofillCfg AutofillConfig `mapstructure:"autofill" yaml:"autofill"`
	APICfg      APIConfig      `mapstructure:"api" yaml:"api"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Network() NetworkConfig   { return c.NetworkCfg }
func (c *Config) Identity() IdentityConfig { return c.IdentityCfg }
func (c *Config) Password() PasswordConfig { return c.PasswordCfg }
func (c *Config) Mail() MailConfig         { return c.MailCfg }
func (c *Config) Proxy() ProxyConfig       { return c.ProxyCfg }
func (c *Config) Store() StoreConfig       { return c.StoreCfg }
func (c *Config) Autofill() AutofillConfig { return c.AutofillCfg }
func (c *Config) API() APIConfig           { return c.APICfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetStorePath(p string)              { c.StoreCfg.Path = p }
func (c *Config) SetProxyVerify(b bool)              { c.ProxyCfg.Verify = b }
func (c *Config) SetProxySettingsFile(p string)      { c.ProxyCfg.SettingsFile = p }
func (c *Config) SetAPIListenAddr(addr string)       { c.APICfg.ListenAddr = addr }
func (c *Config) SetMailWaitTimeout(d time.Duration) { c.MailCfg.WaitTimeout = d }
func (c *Config) SetBrowserHeadless(b bool)          { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// NetworkConfig tunes the shared HTTP client used for every remote collaborator.
type NetworkConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	// RateLimit is the sustained outbound request rate per second. Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
	// UpstreamSOCKS5 routes collaborator traffic through a SOCKS5 proxy (host:port).
	UpstreamSOCKS5 string `mapstructure:"upstream_socks5" yaml:"upstream_socks5"`
}

// IdentityConfig points at the identity and geo-IP services.
type IdentityConfig struct {
	RandomUserURL  string `mapstructure:"random_user_url" yaml:"random_user_url"`
	IPLookupURL    string `mapstructure:"ip_lookup_url" yaml:"ip_lookup_url"`
	GeoLookupURL   string `mapstructure:"geo_lookup_url" yaml:"geo_lookup_url"`
	UseGeoLocation bool   `mapstructure:"use_geo_location" yaml:"use_geo_location"`
	// Nationality forces a randomuser nationality and skips geo lookup when set.
	Nationality string `mapstructure:"nationality" yaml:"nationality"`
}

// PasswordConfig holds the default password policy and the remote generator endpoint.
type PasswordConfig struct {
	ServiceURL string `mapstructure:"service_url" yaml:"service_url"`
	UseRemote  bool   `mapstructure:"use_remote" yaml:"use_remote"`
	Length     int    `mapstructure:"length" yaml:"length"`
	Uppercase  bool   `mapstructure:"uppercase" yaml:"uppercase"`
	Lowercase  bool   `mapstructure:"lowercase" yaml:"lowercase"`
	Numbers    bool   `mapstructure:"numbers" yaml:"numbers"`
	Symbols    bool   `mapstructure:"symbols" yaml:"symbols"`
}

// MailConfig configures the disposable mailbox provider.
type MailConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	LocalPartLength int           `mapstructure:"local_part_length" yaml:"local_part_length"`
}

// ProxyConfig configures proxy rotation.
type ProxyConfig struct {
	ListURL       string        `mapstructure:"list_url" yaml:"list_url"`
	ListFile      string        `mapstructure:"list_file" yaml:"list_file"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Verify        bool          `mapstructure:"verify" yaml:"verify"`
	VerifyTarget  string        `mapstructure:"verify_target" yaml:"verify_target"`
	VerifyTimeout time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout"`
	SettingsFile  string        `mapstructure:"settings_file" yaml:"settings_file"`
	BypassList    []string      `mapstructure:"bypass_list" yaml:"bypass_list"`
}

// StoreConfig configures the embedded state database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// SubmissionTTL bounds how long a recorded submission is kept at all.
	SubmissionTTL time.Duration `mapstructure:"submission_ttl" yaml:"submission_ttl"`
	// RecentWindow is how old a submission may be and still count as "recent".
	RecentWindow time.Duration `mapstructure:"recent_window" yaml:"recent_window"`
}

// AutofillConfig toggles the secondary fill passes.
type AutofillConfig struct {
	CheckConsent    bool `mapstructure:"check_consent" yaml:"check_consent"`
	FillSelects     bool `mapstructure:"fill_selects" yaml:"fill_selects"`
	FillPhoneGroups bool `mapstructure:"fill_phone_groups" yaml:"fill_phone_groups"`
}

// APIConfig configures the local action API server.
type APIConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// BrowserConfig holds settings for the live browser used by `fill --url`.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	DisableGPU      bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string `mapstructure:"args" yaml:"args"`
	// UseProxy routes the browser through the rotator's current proxy, if any.
	UseProxy bool `mapstructure:"use_proxy" yaml:"use_proxy"`
	// NavigationTimeout bounds page load plus snapshot.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "fakesignup")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.user_agent", "fakesignup/1.0")
	v.SetDefault("network.rate_limit", 5.0)
	v.SetDefault("network.burst", 5)
	v.SetDefault("network.upstream_socks5", "")

	// -- Identity --
	v.SetDefault("identity.random_user_url", "https://randomuser.me/api/")
	v.SetDefault("identity.ip_lookup_url", "https://api.ipify.org?format=json")
	v.SetDefault("identity.geo_lookup_url", "http://ip-api.com/json/")
	v.SetDefault("identity.use_geo_location", true)
	v.SetDefault("identity.nationality", "")

	// -- Password --
	v.SetDefault("password.service_url", "https://www.genratr.com/api/v1/password")
	v.SetDefault("password.use_remote", true)
	v.SetDefault("password.length", 16)
	v.SetDefault("password.uppercase", true)
	v.SetDefault("password.lowercase", true)
	v.SetDefault("password.numbers", true)
	v.SetDefault("password.symbols", true)

	// -- Mail --
	v.SetDefault("mail.base_url", "https://api.mail.tm")
	v.SetDefault("mail.poll_interval", "5s")
	v.SetDefault("mail.wait_timeout", "60s")
	v.SetDefault("mail.local_part_length", 10)

	// -- Proxy --
	v.SetDefault("proxy.list_url", "https://raw.githubusercontent.com/hookzof/socks5_list/master/proxy.txt")
	v.SetDefault("proxy.list_file", "")
	v.SetDefault("proxy.max_attempts", 5)
	v.SetDefault("proxy.verify", false)
	v.SetDefault("proxy.verify_target", "api.ipify.org:443")
	v.SetDefault("proxy.verify_timeout", "5s")
	v.SetDefault("proxy.settings_file", "~/.fakesignup/proxy.json")
	v.SetDefault("proxy.bypass_list", []string{"localhost", "127.0.0.1"})

	// -- Store --
	v.SetDefault("store.path", "~/.fakesignup/state.db")
	v.SetDefault("store.submission_ttl", "24h")
	v.SetDefault("store.recent_window", "30m")

	// -- Autofill --
	v.SetDefault("autofill.check_consent", true)
	v.SetDefault("autofill.fill_selects", true)
	v.SetDefault("autofill.fill_phone_groups", true)

	// -- API --
	v.SetDefault("api.listen_addr", "127.0.0.1:8765")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "90s")
	v.SetDefault("api.shutdown_timeout", "5s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.use_proxy", true)
	v.SetDefault("browser.navigation_timeout", "45s")
}

// NewConfigFromViper unmarshals, expands and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The upstream proxy is commonly supplied per shell session.
	_ = v.BindEnv("network.upstream_socks5", EnvPrefix+"_UPSTREAM_SOCKS5")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("error expanding paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.StoreCfg.Path, &c.ProxyCfg.SettingsFile, &c.ProxyCfg.ListFile, &c.LoggerCfg.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = os.ExpandEnv(expanded)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.NetworkCfg.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	if c.NetworkCfg.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must not be negative")
	}
	if err := c.PasswordCfg.Validate(); err != nil {
		return fmt.Errorf("password configuration invalid: %w", err)
	}
	if c.MailCfg.PollInterval <= 0 {
		return fmt.Errorf("mail.poll_interval must be a positive duration")
	}
	if c.MailCfg.WaitTimeout <= 0 {
		return fmt.Errorf("mail.wait_timeout must be a positive duration")
	}
	if c.MailCfg.LocalPartLength <= 0 {
		return fmt.Errorf("mail.local_part_length must be a positive integer")
	}
	if c.ProxyCfg.MaxAttempts < 1 {
		return fmt.Errorf("proxy.max_attempts must be at least 1")
	}
	if c.ProxyCfg.ListURL == "" && c.ProxyCfg.ListFile == "" {
		return fmt.Errorf("one of proxy.list_url or proxy.list_file is required")
	}
	if c.StoreCfg.Path == "" {
		return fmt.Errorf("store.path is a required configuration field")
	}
	if c.StoreCfg.RecentWindow <= 0 {
		return fmt.Errorf("store.recent_window must be a positive duration")
	}
	if c.APICfg.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is a required configuration field")
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the password policy.
func (p *PasswordConfig) Validate() error {
	if p.Length < 4 {
		return fmt.Errorf("length must be at least 4")
	}
	return nil
}
