package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
)

// maxBodyBytes caps how much of a response body the nethttp backend reads.
const maxBodyBytes = 10 << 20

// NetHTTPLauncher fetches pages without executing JavaScript. Cookies set
// by scripts and overlays positioned at runtime are invisible to it; it
// is meant for tests and for sites that render server side.
type NetHTTPLauncher struct {
	transport http.RoundTripper
	userAgent string
	logger    logging.Logger
}

// NewNetHTTPLauncher returns a launcher whose sessions share transport.
// A nil transport uses http.DefaultTransport.
func NewNetHTTPLauncher(cfg Config, transport http.RoundTripper, logger logging.Logger) *NetHTTPLauncher {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &NetHTTPLauncher{
		transport: transport,
		userAgent: cfg.UserAgent,
		logger:    logger.With(logging.Field{Key: "backend", Value: string(BackendNetHTTP)}),
	}
}

func (l *NetHTTPLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &netHTTPSession{
		client:    &http.Client{Transport: l.transport, Jar: jar},
		userAgent: l.userAgent,
		logger:    l.logger,
	}, nil
}

type netHTTPSession struct {
	client    *http.Client
	userAgent string
	logger    logging.Logger

	finalURL *url.URL
	body     string
}

// Navigate performs a GET. Non-2xx responses are still pages: a site
// serving its banner on a 404 page is scanned like any other.
func (s *netHTTPSession) Navigate(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	s.finalURL = resp.Request.URL
	s.body = string(b)

	s.logger.Debug("fetched page",
		logging.Field{Key: "url", Value: rawURL},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "bytes", Value: len(b)})
	return nil
}

func (s *netHTTPSession) Ready(ctx context.Context) (bool, error) {
	return true, ctx.Err()
}

func (s *netHTTPSession) Snapshot(ctx context.Context) (*model.RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.finalURL == nil {
		return nil, errors.New("snapshot before navigate")
	}
	page := &model.RenderedPage{
		FinalURL: s.finalURL.String(),
		HTML:     s.body,
	}
	for _, c := range s.client.Jar.Cookies(s.finalURL) {
		page.Cookies = append(page.Cookies, model.Cookie{
			Name:  c.Name,
			Value: c.Value,
			// The jar does not report the attributes it stored.
			Domain: s.finalURL.Hostname(),
			Path:   "/",
		})
	}
	return page, nil
}

func (s *netHTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
