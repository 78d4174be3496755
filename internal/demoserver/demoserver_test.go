package demoserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/consentscan/internal/browser"
	"github.com/raysh454/consentscan/internal/demoserver"
	"github.com/raysh454/consentscan/internal/policytext"
	"github.com/raysh454/consentscan/internal/scanner"
	"github.com/raysh454/consentscan/internal/scoring"
	"github.com/raysh454/consentscan/internal/testutil"
)

func newDemo(t *testing.T) (*demoserver.DemoServer, *httptest.Server) {
	t.Helper()
	demo := demoserver.NewDemoServer(demoserver.DefaultConfig(), &testutil.DummyLogger{})
	srv := httptest.NewServer(demo.Handler())
	t.Cleanup(srv.Close)
	return demo, srv
}

func postForm(t *testing.T, rawURL string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.PostForm(rawURL, form)
	if err != nil {
		t.Fatalf("POST %s: %v", rawURL, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ─── Pages and version control ─────────────────────────────────────────

func TestPage_SetsCookiesBeforeConsent(t *testing.T) {
	t.Parallel()
	_, srv := newDemo(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	var names []string
	for _, c := range resp.Cookies() {
		names = append(names, c.Name)
	}
	if !reflect.DeepEqual(names, []string{"_ga"}) {
		t.Errorf("expected only _ga on v1, got %v", names)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Bageriet - v1") {
		t.Errorf("expected v1 markup, got %s", body)
	}
}

func TestSetVersion_SwitchesPage(t *testing.T) {
	t.Parallel()
	demo, srv := newDemo(t)

	resp := postForm(t, srv.URL+"/demo/set-version", url.Values{"path": {"/"}, "version": {"2"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := demo.Version("/"); got != 2 {
		t.Errorf("expected version 2, got %d", got)
	}

	page, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer page.Body.Close()
	body, _ := io.ReadAll(page.Body)
	if !strings.Contains(string(body), "CybotCookiebotDialog") {
		t.Error("expected the v2 banner after switching")
	}
}

func TestSetVersion_Rejects(t *testing.T) {
	t.Parallel()
	demo, srv := newDemo(t)

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{name: "not a number", form: url.Values{"path": {"/"}, "version": {"x"}}, want: http.StatusBadRequest},
		{name: "unknown path", form: url.Values{"path": {"/nope"}, "version": {"1"}}, want: http.StatusNotFound},
		{name: "undefined version", form: url.Values{"path": {"/shop"}, "version": {"7"}}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postForm(t, srv.URL+"/demo/set-version", tt.form)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
	if demo.Version("/shop") != 1 {
		t.Error("rejected request must not change the version")
	}
}

func TestBumpAndReset(t *testing.T) {
	t.Parallel()
	demo, srv := newDemo(t)

	for i := 0; i < 4; i++ {
		postForm(t, srv.URL+"/demo/bump-all", nil)
	}
	if got := demo.Version("/"); got != 3 {
		t.Errorf("home should cap at v3, got %d", got)
	}
	if got := demo.Version("/privacy"); got != 2 {
		t.Errorf("privacy should cap at v2, got %d", got)
	}
	if got := demo.Version("/shop"); got != 1 {
		t.Errorf("shop has one version, got %d", got)
	}

	postForm(t, srv.URL+"/demo/reset", nil)
	for _, p := range []string{"/", "/privacy", "/shop"} {
		if got := demo.Version(p); got != 1 {
			t.Errorf("%s: expected v1 after reset, got %d", p, got)
		}
	}
}

func TestGetVersions_SortedByPath(t *testing.T) {
	t.Parallel()
	_, srv := newDemo(t)

	resp, err := http.Get(srv.URL + "/demo/get-versions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var pages []demoserver.PageInfo
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var paths []string
	for _, p := range pages {
		paths = append(paths, p.Path)
	}
	if !reflect.DeepEqual(paths, []string{"/", "/privacy", "/shop"}) {
		t.Errorf("unexpected paths %v", paths)
	}
	if !reflect.DeepEqual(pages[0].AvailableVersions, []int{1, 2, 3}) {
		t.Errorf("unexpected home versions %v", pages[0].AvailableVersions)
	}
}

func TestControlPanel_Renders(t *testing.T) {
	t.Parallel()
	_, srv := newDemo(t)

	resp, err := http.Get(srv.URL + "/demo/control")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Consent Demo Control Panel") || !strings.Contains(string(body), "/shop") {
		t.Errorf("control panel missing content: %s", body)
	}
}

func TestContact_ReportsConsent(t *testing.T) {
	t.Parallel()
	_, srv := newDemo(t)

	resp := postForm(t, srv.URL+"/contact", url.Values{"name": {"A"}, "consent": {"on"}})
	var out struct {
		Consent bool `json:"consent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Consent {
		t.Error("expected consent to be reported")
	}
}

// ─── Scanning the fixtures ─────────────────────────────────────────────

func newScanner(t *testing.T) *scanner.Scanner {
	t.Helper()
	logger := &testutil.DummyLogger{}
	launcher := browser.NewNetHTTPLauncher(browser.DefaultConfig(), nil, logger)
	renderer, err := browser.NewController(launcher, browser.FixedDelay{}, nil, 5*time.Second, logger)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	sc, err := scanner.New(scanner.Config{MaxConcurrent: 2}, renderer, logger)
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	return sc
}

func TestScan_HomeVersions(t *testing.T) {
	t.Parallel()
	demo, srv := newDemo(t)
	sc := newScanner(t)

	tests := []struct {
		version     int
		wantScore   int
		wantMissing []string
	}{
		{version: 1, wantScore: 50, wantMissing: []string{scoring.MissingCookieBanner, scoring.MissingPrivacyLink}},
		{version: 2, wantScore: 95, wantMissing: []string{}},
		{version: 3, wantScore: 85, wantMissing: []string{}},
	}
	// Versions share one demo server, so they are scanned in order.
	for _, tt := range tests {
		if !demo.SetVersion("/", tt.version) {
			t.Fatalf("SetVersion(%d) failed", tt.version)
		}
		res, err := sc.ScanSite(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("v%d: ScanSite: %v", tt.version, err)
		}
		if res.Score != tt.wantScore {
			t.Errorf("v%d: score = %d, want %d (suggestions %+v)", tt.version, res.Score, tt.wantScore, res.Suggestions)
		}
		if !reflect.DeepEqual(res.Missing, tt.wantMissing) {
			t.Errorf("v%d: missing = %v, want %v", tt.version, res.Missing, tt.wantMissing)
		}
	}
}

func TestScan_ShopStylesheetBanner(t *testing.T) {
	t.Parallel()
	_, srv := newDemo(t)

	res, err := newScanner(t).ScanSite(context.Background(), srv.URL+"/shop")
	if err != nil {
		t.Fatalf("ScanSite: %v", err)
	}
	if res.Score != 90 {
		t.Errorf("score = %d, want 90 (suggestions %+v)", res.Score, res.Suggestions)
	}
	if !reflect.DeepEqual(res.Cookies, []string{"OptanonConsent", "session_id"}) {
		t.Errorf("unexpected cookies %v", res.Cookies)
	}
}

func TestPrivacyFixtures_PolicyText(t *testing.T) {
	t.Parallel()
	for _, p := range demoserver.GetAllPages() {
		if p.Path != "/privacy" {
			continue
		}
		weak, err := policytext.Analyze(p.Versions[1].HTML)
		if err != nil {
			t.Fatalf("Analyze v1: %v", err)
		}
		if len(weak) != 4 {
			t.Errorf("expected four suggestions for v1, got %v", weak)
		}
		full, err := policytext.Analyze(p.Versions[2].HTML)
		if err != nil {
			t.Fatalf("Analyze v2: %v", err)
		}
		if !reflect.DeepEqual(full, []string{policytext.LooksGood}) {
			t.Errorf("expected v2 to look good, got %v", full)
		}
		return
	}
	t.Fatal("privacy page not defined")
}
