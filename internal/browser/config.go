package browser

import "time"

type Backend string

const (
	BackendChromedp Backend = "chromedp"
	BackendNetHTTP  Backend = "nethttp"
)

type WaitMode string

const (
	// WaitFixed sleeps SettleDelay after navigation.
	WaitFixed WaitMode = "fixed"
	// WaitPoll polls the session's readiness probe every PollInterval for
	// at most PollTimeout.
	WaitPoll WaitMode = "poll"
)

// Config controls how pages are rendered.
type Config struct {
	Backend Backend `mapstructure:"backend"`

	// Timeout bounds launch, navigation, settle and snapshot together.
	Timeout time.Duration `mapstructure:"timeout"`

	Wait         WaitMode      `mapstructure:"wait"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`

	// Headless is false only when debugging locally.
	Headless  bool   `mapstructure:"headless"`
	ExecPath  string `mapstructure:"exec_path"`
	UserAgent string `mapstructure:"user_agent"`
}

// DefaultConfig returns the production defaults: headless Chrome with the
// historical fixed five second settle period.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendChromedp,
		Timeout:      45 * time.Second,
		Wait:         WaitFixed,
		SettleDelay:  5 * time.Second,
		PollInterval: 250 * time.Millisecond,
		PollTimeout:  10 * time.Second,
		Headless:     true,
	}
}

// WaitStrategyFor builds the wait strategy selected by cfg.
func WaitStrategyFor(cfg Config) WaitStrategy {
	if cfg.Wait == WaitPoll {
		return PollUntil{Interval: cfg.PollInterval, Timeout: cfg.PollTimeout}
	}
	return FixedDelay{Delay: cfg.SettleDelay}
}
