package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
)

// closeGrace bounds the graceful browser shutdown before the process is
// killed through the allocator.
const closeGrace = 5 * time.Second

var errCloseTimeout = errors.New("browser did not close in time; process killed")

const visibleTextJS = `document.body ? document.body.innerText : ""`

const overlayJS = `Array.from(document.querySelectorAll("[class*='cookie' i], [style*='fixed' i]")).map(function (el) {
	var r = el.getBoundingClientRect();
	return {
		tag: el.tagName.toLowerCase(),
		id: el.id || "",
		className: typeof el.className === "string" ? el.className : "",
		style: el.getAttribute("style") || "",
		height: r.height,
		width: r.width
	};
})`

// ChromedpLauncher starts one headless Chrome process per session.
type ChromedpLauncher struct {
	opts   []chromedp.ExecAllocatorOption
	logger logging.Logger
}

// NewChromedpLauncher configures Chrome for containerized, display-less
// execution: headless, no OS sandbox, automation flagged.
func NewChromedpLauncher(cfg Config, logger logging.Logger) *ChromedpLauncher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-automation", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return &ChromedpLauncher{
		opts:   opts,
		logger: logger.With(logging.Field{Key: "backend", Value: string(BackendChromedp)}),
	}
}

func (l *ChromedpLauncher) Launch(ctx context.Context) (Session, error) {
	// The browser contexts are detached from ctx so that teardown is driven
	// by Close alone and not by whichever request context happened to start
	// the process.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		inflight:      make(map[network.RequestID]struct{}),
		logger:        l.logger,
	}
	s.trackNetwork()

	// The first Run allocates the browser and enables network events. It
	// must run on the browser context itself, so the deadline is enforced
	// from the outside.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx, network.Enable()) }()

	select {
	case err := <-started:
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		s.abort()
		<-started
		return nil, fmt.Errorf("start chrome: %w", ctx.Err())
	}

	l.logger.Debug("chrome session started")
	return s, nil
}

type chromedpSession struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}

	closeOnce sync.Once
	closeErr  error
	logger    logging.Logger
}

// trackNetwork counts in-flight requests so Ready can wait for network idle.
func (s *chromedpSession) trackNetwork() {
	chromedp.ListenTarget(s.ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			s.mu.Lock()
			s.inflight[e.RequestID] = struct{}{}
			s.mu.Unlock()
		case *network.EventLoadingFinished:
			s.done(e.RequestID)
		case *network.EventLoadingFailed:
			s.done(e.RequestID)
		}
	})
}

func (s *chromedpSession) done(id network.RequestID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *chromedpSession) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// run executes actions on the browser context bounded by ctx.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromedpSession) Ready(ctx context.Context) (bool, error) {
	var state string
	if err := s.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
		return false, err
	}
	return state == "complete" && s.pending() == 0, nil
}

func (s *chromedpSession) Snapshot(ctx context.Context) (*model.RenderedPage, error) {
	var (
		location string
		html     string
		text     string
		overlays []model.Overlay
		cookies  []*network.Cookie
	)
	err := s.run(ctx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(visibleTextJS, &text),
		chromedp.Evaluate(overlayJS, &overlays),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}

	page := &model.RenderedPage{
		FinalURL:    location,
		HTML:        html,
		VisibleText: text,
		Overlays:    overlays,
	}
	if page.Overlays == nil {
		page.Overlays = []model.Overlay{}
	}
	for _, c := range cookies {
		if c == nil {
			continue
		}
		page.Cookies = append(page.Cookies, model.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return page, nil
}

// abort kills a browser that is still starting. A graceful close would
// race the allocation in flight.
func (s *chromedpSession) abort() {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
		s.logger.Debug("chrome start aborted")
	})
}

// Close shuts Chrome down gracefully and then cancels the allocator, which
// kills the process and removes its profile directory. The allocator is
// cancelled even when the graceful shutdown hangs.
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.closeErr = err
			}
		case <-time.After(closeGrace):
			s.closeErr = errCloseTimeout
		}
		s.browserCancel()
		s.allocCancel()
		s.logger.Debug("chrome session closed")
	})
	return s.closeErr
}
