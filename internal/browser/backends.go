package browser

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/consentscan/internal/logging"
)

// LauncherConstructor builds a Launcher from cfg.
type LauncherConstructor func(cfg Config, logger logging.Logger) (Launcher, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]LauncherConstructor{}
)

func init() {
	RegisterDefaultBackends()
}

// RegisterBackend registers a named launcher constructor. Names are
// lower-cased; registering an existing name replaces it.
func RegisterBackend(name string, ctor LauncherConstructor) {
	if name == "" || ctor == nil {
		return
	}
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(name)] = ctor
}

// RegisterDefaultBackends registers the chromedp and nethttp launchers.
func RegisterDefaultBackends() {
	RegisterBackend(string(BackendChromedp), func(cfg Config, logger logging.Logger) (Launcher, error) {
		return NewChromedpLauncher(cfg, logger), nil
	})
	RegisterBackend(string(BackendNetHTTP), func(cfg Config, logger logging.Logger) (Launcher, error) {
		return NewNetHTTPLauncher(cfg, nil, logger), nil
	})
}

// NewLauncher constructs the launcher for cfg.Backend. An empty backend
// selects chromedp.
func NewLauncher(cfg Config, logger logging.Logger) (Launcher, error) {
	if logger == nil {
		return nil, errors.New("browser: nil logger")
	}
	name := strings.ToLower(strings.TrimSpace(string(cfg.Backend)))
	if name == "" {
		name = string(BackendChromedp)
	}

	backendsMu.RLock()
	ctor, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("browser backend %q not registered: available backends=%v", name, ListBackends())
	}

	l, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("construct browser backend %q: %w", name, err)
	}
	if l == nil {
		return nil, errors.New("browser backend constructor returned nil")
	}
	logger.Info("browser backend ready", logging.Field{Key: "backend", Value: name})
	return l, nil
}

// ListBackends returns the registered backend names in sorted order.
func ListBackends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
