// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real browsers or
// network access.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/raysh454/consentscan/internal/browser"
	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/utils"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of recorded warnings.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── Browser ───────────────────────────────────────────────────────────

// FakeSession implements browser.Session. The zero value navigates
// successfully, is always ready and snapshots Page (or an empty page).
type FakeSession struct {
	Page *model.RenderedPage

	NavigateErr error
	ReadyErr    error
	SnapshotErr error
	CloseErr    error

	// NotReady makes Ready report false.
	NotReady bool
	// PanicOnNavigate makes Navigate panic.
	PanicOnNavigate bool
	// BlockNavigate makes Navigate wait for ctx to be done.
	BlockNavigate bool

	mu         sync.Mutex
	navigated  []string
	readyCalls int
	closed     int
}

func (s *FakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.navigated = append(s.navigated, url)
	s.mu.Unlock()

	if s.PanicOnNavigate {
		panic("fake navigate panic")
	}
	if s.BlockNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.NavigateErr
}

func (s *FakeSession) Ready(ctx context.Context) (bool, error) {
	s.mu.Lock()
	s.readyCalls++
	s.mu.Unlock()
	if s.ReadyErr != nil {
		return false, s.ReadyErr
	}
	return !s.NotReady, nil
}

func (s *FakeSession) Snapshot(ctx context.Context) (*model.RenderedPage, error) {
	if s.SnapshotErr != nil {
		return nil, s.SnapshotErr
	}
	if s.Page == nil {
		return &model.RenderedPage{}, nil
	}
	cp := *s.Page
	return &cp, nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.CloseErr
}

// Navigated returns the URLs passed to Navigate.
func (s *FakeSession) Navigated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigated...)
}

// Closed returns how many times Close was called.
func (s *FakeSession) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ReadyCalls returns how many times Ready was called.
func (s *FakeSession) ReadyCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyCalls
}

// FakeLauncher implements browser.Launcher by handing out Session. When
// LaunchErr is set it returns Session (possibly nil) alongside the error.
type FakeLauncher struct {
	Session   *FakeSession
	LaunchErr error

	mu       sync.Mutex
	launches int
}

func (l *FakeLauncher) Launch(ctx context.Context) (browser.Session, error) {
	l.mu.Lock()
	l.launches++
	l.mu.Unlock()

	if l.LaunchErr != nil {
		if l.Session == nil {
			return nil, l.LaunchErr
		}
		return l.Session, l.LaunchErr
	}
	if l.Session == nil {
		l.Session = &FakeSession{}
	}
	return l.Session, nil
}

// Launches returns how many sessions were requested.
func (l *FakeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// FakeRenderer implements browser.PageRenderer from a fixed table of pages
// keyed by the raw target. Pages without a Target get the normalized raw
// target, as the real controller does. Unknown targets fail with a
// navigation error.
type FakeRenderer struct {
	Pages map[string]*model.RenderedPage
	Errs  map[string]error

	// Block makes Render wait until ctx is done or Release is closed.
	Block   bool
	Release chan struct{}

	mu     sync.Mutex
	calls  []string
	active int
	peak   int
}

func (r *FakeRenderer) Render(ctx context.Context, rawTarget string) (*model.RenderedPage, error) {
	r.mu.Lock()
	r.calls = append(r.calls, rawTarget)
	r.active++
	if r.active > r.peak {
		r.peak = r.active
	}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if r.Block {
		select {
		case <-ctx.Done():
			return nil, &model.ScanError{Kind: model.KindNavigation, Target: rawTarget, Err: ctx.Err()}
		case <-r.Release:
		}
	}
	if err, ok := r.Errs[rawTarget]; ok {
		return nil, err
	}
	if page, ok := r.Pages[rawTarget]; ok {
		cp := *page
		if cp.Target.URL == nil {
			target, err := utils.NormalizeTarget(rawTarget)
			if err != nil {
				return nil, &model.ScanError{Kind: model.KindInvalidTarget, Target: rawTarget, Err: err}
			}
			cp.Target = target
		}
		return &cp, nil
	}
	return nil, &model.ScanError{Kind: model.KindNavigation, Target: rawTarget, Err: errors.New("no such page")}
}

// Calls returns the targets passed to Render in call order.
func (r *FakeRenderer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Peak returns the highest number of concurrent Render calls observed.
func (r *FakeRenderer) Peak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

// ─── Pages ─────────────────────────────────────────────────────────────

// BarePage returns a page with no banner, no privacy link, no scripts and
// no cookies.
func BarePage(target string) *model.RenderedPage {
	return &model.RenderedPage{
		FinalURL:    target,
		HTML:        "<html><body><p>Hello</p></body></html>",
		VisibleText: "Hello",
		Scripts:     []string{},
		Anchors:     []string{},
		Cookies:     []model.Cookie{},
		Forms:       []model.Form{},
		Overlays:    []model.Overlay{},
	}
}

// CompliantPage returns a page that satisfies every heuristic and loads
// Cookiebot as its only third-party script.
func CompliantPage(target string) *model.RenderedPage {
	return &model.RenderedPage{
		FinalURL:    target,
		HTML:        `<div id="banner" style="position:fixed;bottom:0">We use cookies. <button>Accept</button><button>Decline</button></div><a href="/privacy">Privacy policy</a>`,
		VisibleText: "We use cookies. Accept or decline. Necessary Statistics Marketing",
		Scripts:     []string{"https://consent.cookiebot.com/uc.js"},
		Anchors:     []string{"Privacy policy"},
		Cookies:     []model.Cookie{{Name: "CookieConsent"}},
		Forms:       []model.Form{},
		Overlays: []model.Overlay{
			{Tag: "div", ID: "banner", Style: "position:fixed;bottom:0", Height: 120, Width: 800},
		},
	}
}
