// Package browser drives a page renderer against a scan target and returns
// a snapshot of the loaded page.
//
// A Controller owns exactly one Session per Render call. The session is a
// scarce resource (a browser process for the chromedp backend) and is
// closed on every exit path: success, error, timeout and panic.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/consentscan/internal/dom"
	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/utils"
)

// PageRenderer renders a target into a RenderedPage. Failures are always
// *model.ScanError.
type PageRenderer interface {
	Render(ctx context.Context, rawTarget string) (*model.RenderedPage, error)
}

// Launcher starts an isolated browsing session.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one isolated browser instance.
type Session interface {
	// Navigate loads url and returns once the initial load has finished.
	Navigate(ctx context.Context, url string) error

	// Ready reports whether dynamic content has settled.
	Ready(ctx context.Context) (bool, error)

	// Snapshot reads the current page. Lists the backend cannot provide
	// are left nil and are filled from the HTML by the Controller.
	Snapshot(ctx context.Context) (*model.RenderedPage, error)

	// Close releases the session. It must be safe to call on a session
	// whose context has already expired.
	Close() error
}

// Controller implements PageRenderer on top of a Launcher.
type Controller struct {
	launcher Launcher
	wait     WaitStrategy
	parser   dom.Parser
	timeout  time.Duration
	logger   logging.Logger
}

// NewController wires a controller. A nil wait strategy falls back to the
// default fixed delay and a nil parser to goquery.
func NewController(launcher Launcher, wait WaitStrategy, parser dom.Parser, timeout time.Duration, logger logging.Logger) (*Controller, error) {
	if launcher == nil {
		return nil, errors.New("browser: nil launcher")
	}
	if logger == nil {
		return nil, errors.New("browser: nil logger")
	}
	if wait == nil {
		wait = FixedDelay{Delay: DefaultConfig().SettleDelay}
	}
	if parser == nil {
		parser = dom.GoqueryParser{}
	}
	return &Controller{
		launcher: launcher,
		wait:     wait,
		parser:   parser,
		timeout:  timeout,
		logger:   logger.With(logging.Field{Key: "component", Value: "browser"}),
	}, nil
}

// NewRenderer builds a Controller for the backend named in cfg.
func NewRenderer(cfg Config, logger logging.Logger) (*Controller, error) {
	launcher, err := NewLauncher(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewController(launcher, WaitStrategyFor(cfg), dom.GoqueryParser{}, cfg.Timeout, logger)
}

func (c *Controller) Render(ctx context.Context, rawTarget string) (*model.RenderedPage, error) {
	target, err := utils.NormalizeTarget(rawTarget)
	if err != nil {
		return nil, &model.ScanError{Kind: model.KindInvalidTarget, Target: rawTarget, Err: err}
	}
	targetURL := target.String()
	log := c.logger.With(logging.Field{Key: "target", Value: targetURL})

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	sess, err := c.launcher.Launch(ctx)
	if err != nil {
		if sess != nil {
			c.closeSession(sess, log)
		}
		log.Warn("browser launch failed", logging.Field{Key: "error", Value: err.Error()})
		return nil, &model.ScanError{Kind: model.KindBrowserLaunch, Target: targetURL, Err: err}
	}
	defer c.closeSession(sess, log)

	if err := sess.Navigate(ctx, targetURL); err != nil {
		return nil, c.navigationError(log, targetURL, "navigate", err)
	}
	if err := c.wait.Wait(ctx, sess.Ready); err != nil {
		return nil, c.navigationError(log, targetURL, "settle", err)
	}
	page, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, c.navigationError(log, targetURL, "snapshot", err)
	}
	if page == nil {
		page = &model.RenderedPage{}
	}
	page.Target = target
	c.fillFromDOM(page, log)

	log.Debug("rendered page",
		logging.Field{Key: "elapsed", Value: time.Since(start).String()},
		logging.Field{Key: "html_bytes", Value: len(page.HTML)},
		logging.Field{Key: "cookies", Value: len(page.Cookies)})
	return page, nil
}

func (c *Controller) navigationError(log logging.Logger, target, step string, err error) error {
	log.Warn("page load failed",
		logging.Field{Key: "step", Value: step},
		logging.Field{Key: "error", Value: err.Error()})
	return &model.ScanError{Kind: model.KindNavigation, Target: target, Err: fmt.Errorf("%s: %w", step, err)}
}

func (c *Controller) closeSession(sess Session, log logging.Logger) {
	if err := sess.Close(); err != nil {
		log.Warn("closing browser session", logging.Field{Key: "error", Value: err.Error()})
	}
}

// fillFromDOM completes the element lists the session left empty. A parse
// failure leaves them empty; it never fails the scan.
func (c *Controller) fillFromDOM(page *model.RenderedPage, log logging.Logger) {
	if page.Scripts != nil && page.Anchors != nil && page.Forms != nil && page.Overlays != nil && page.VisibleText != "" {
		return
	}
	doc, err := c.parser.Parse(page.HTML)
	if err != nil || doc == nil {
		log.Warn("parsing rendered html", logging.Field{Key: "error", Value: fmt.Sprint(err)})
		return
	}
	if page.Scripts == nil {
		page.Scripts = doc.ScriptSources()
	}
	if page.Anchors == nil {
		page.Anchors = doc.AnchorTexts()
	}
	if page.Forms == nil {
		page.Forms = doc.Forms()
	}
	if page.Overlays == nil {
		page.Overlays = doc.OverlayCandidates()
	}
	if page.VisibleText == "" {
		page.VisibleText = doc.Text()
	}
}
