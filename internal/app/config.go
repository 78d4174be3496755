package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/raysh454/consentscan/internal/browser"
	"github.com/raysh454/consentscan/internal/scanner"
)

// EnvPrefix prefixes every environment override, e.g.
// CONSENTSCAN_BROWSER_BACKEND=nethttp.
const EnvPrefix = "CONSENTSCAN"

type LogConfig struct {
	// Format selects the logger backend: "json" (default) or "zap".
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// Config is the runtime configuration of the scanner service.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`

	// StorageRoot holds the analysis database.
	StorageRoot string `mapstructure:"storage_root"`

	Browser browser.Config `mapstructure:"browser"`
	Scanner scanner.Config `mapstructure:"scanner"`

	// JobRetentionTime is how long finished jobs stay queryable.
	JobRetentionTime time.Duration `mapstructure:"job_retention_time"`
}

// DefaultConfig returns a Config populated with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Format: "json"},
		Server: ServerConfig{
			ListenAddr:    ":8080",
			AllowedOrigin: "*",
		},
		StorageRoot:      "~/.config/consentscan",
		Browser:          browser.DefaultConfig(),
		Scanner:          scanner.DefaultConfig(),
		JobRetentionTime: 10 * time.Minute,
	}
}

// DBPath is the analysis database location under StorageRoot.
func (c *Config) DBPath() (string, error) {
	root, err := ExpandPath(c.StorageRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "consentscan.db"), nil
}

// LoadConfig layers, lowest first: defaults, the YAML file at path (if
// path is non-empty) and CONSENTSCAN_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.allowed_origin", d.Server.AllowedOrigin)
	v.SetDefault("storage_root", d.StorageRoot)
	v.SetDefault("job_retention_time", d.JobRetentionTime)

	v.SetDefault("browser.backend", string(d.Browser.Backend))
	v.SetDefault("browser.timeout", d.Browser.Timeout)
	v.SetDefault("browser.wait", string(d.Browser.Wait))
	v.SetDefault("browser.settle_delay", d.Browser.SettleDelay)
	v.SetDefault("browser.poll_interval", d.Browser.PollInterval)
	v.SetDefault("browser.poll_timeout", d.Browser.PollTimeout)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.exec_path", d.Browser.ExecPath)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)

	v.SetDefault("scanner.max_concurrent", d.Scanner.MaxConcurrent)
	v.SetDefault("scanner.launches_per_second", d.Scanner.LaunchesPerSecond)
	v.SetDefault("scanner.launch_burst", d.Scanner.LaunchBurst)
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
