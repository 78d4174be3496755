package server_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/consentscan/internal/app"
	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/server"
	"github.com/raysh454/consentscan/internal/testutil"
)

func fakeSites() *testutil.FakeRenderer {
	return &testutil.FakeRenderer{
		Pages: map[string]*model.RenderedPage{
			"example.com":  testutil.BarePage(""),
			"shop.example": testutil.CompliantPage(""),
		},
		Errs: map[string]error{
			"down.example":  &model.ScanError{Kind: model.KindNavigation, Target: "https://down.example", Err: errors.New("net::ERR_CONNECTION_REFUSED")},
			"ftp://example": &model.ScanError{Kind: model.KindInvalidTarget, Target: "ftp://example", Err: errors.New("unsupported scheme")},
		},
	}
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	appCfg := app.DefaultConfig()
	appCfg.StorageRoot = t.TempDir()
	appCfg.Scanner.LaunchesPerSecond = 0

	s, err := server.NewServer(server.Config{
		ListenAddr: ":0",
		AppConfig:  appCfg,
		Logger:     &testutil.DummyLogger{},
		Renderer:   fakeSites(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/healthz", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestServer_OptionsPreflight(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "OPTIONS", "/scan", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	if methods := rec.Header().Get("Access-Control-Allow-Methods"); methods != "POST" {
		t.Errorf("Allow-Methods = %q", methods)
	}
}

// ─── Scan ──────────────────────────────────────────────────────────────

func TestServer_Scan_BareSite(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/scan", `{"url":"example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Score       int      `json:"score"`
		Missing     []string `json:"missing"`
		Suggestions []string `json:"suggestions"`
		Scripts     []string `json:"scripts"`
		Cookies     []string `json:"cookies"`
	}
	decodeJSON(t, rec, &body)
	if body.Score != 60 {
		t.Errorf("score = %d, want 60", body.Score)
	}
	if len(body.Missing) != 2 || body.Missing[0] != "Cookie banner" || body.Missing[1] != "Privacy policy" {
		t.Errorf("missing = %v", body.Missing)
	}
	if len(body.Suggestions) == 0 {
		t.Error("expected suggestions")
	}
	if body.Scripts == nil || body.Cookies == nil {
		t.Errorf("scripts and cookies must be arrays, got %v / %v", body.Scripts, body.Cookies)
	}
}

func TestServer_Scan_BadRequests(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for name, body := range map[string]string{
		"invalid json":   `{invalid}`,
		"empty url":      `{"url":""}`,
		"invalid target": `{"url":"ftp://example"}`,
	} {
		rec := doJSON(t, s, "POST", "/scan", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestServer_Scan_NavigationFailure(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/scan", `{"url":"down.example"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != "net::ERR_CONNECTION_REFUSED" || body["kind"] != "navigation" {
		t.Errorf("unexpected error body: %v", body)
	}
}

// ─── Analyses ──────────────────────────────────────────────────────────

func TestServer_CreateAndListAnalyses(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/users/alice/analyses", `{"url":"example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var first map[string]any
	decodeJSON(t, rec, &first)
	if first["id"] == "" || first["user_id"] != "alice" || first["score"] != float64(60) {
		t.Errorf("unexpected analysis: %v", first)
	}

	rec = doJSON(t, s, "POST", "/users/alice/analyses", `{"url":"shop.example"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, "GET", "/users/alice/analyses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []map[string]any
	decodeJSON(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(list))
	}
	if list[0]["url"] != "shop.example" || list[1]["url"] != "example.com" {
		t.Errorf("history not newest first: %v, %v", list[0]["url"], list[1]["url"])
	}

	rec = doJSON(t, s, "GET", "/users/alice/analyses?limit=1", "")
	decodeJSON(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("limit ignored: %d analyses", len(list))
	}

	rec = doJSON(t, s, "GET", "/analyses/"+first["id"].(string), "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for stored analysis, got %d", rec.Code)
	}
}

func TestServer_ListAnalyses_Empty(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/users/nobody/analyses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("expected empty array, got %s", got)
	}
}

func TestServer_GetAnalysis_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/analyses/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CreateAnalysis_FailedScan(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/users/bob/analyses", `{"url":"down.example"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

// ─── Jobs ──────────────────────────────────────────────────────────────

func TestServer_ListJobs_Empty(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_GetJob_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/jobs/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CancelJob_NoContent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "DELETE", "/jobs/nonexistent", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestServer_StartScanJob(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/users/carol/jobs/scan", `{"url":"shop.example"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var job map[string]any
	decodeJSON(t, rec, &job)
	id, _ := job["id"].(string)
	if id == "" {
		t.Fatalf("job id missing: %v", job)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = doJSON(t, s, "GET", "/jobs/"+id, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		decodeJSON(t, rec, &job)
		if job["status"] == "done" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish: %v", job)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if job["analysis_id"] == "" || job["result"] == nil {
		t.Errorf("finished job missing result: %v", job)
	}
}

func TestServer_StartScanJob_MissingURL(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/users/carol/jobs/scan", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_ScanWebSocket(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/users/dave/scan?url=example.com"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var job map[string]any
	if err := conn.ReadJSON(&job); err != nil {
		t.Fatalf("read job: %v", err)
	}
	if job["id"] == nil {
		t.Fatalf("first message should be the job: %v", job)
	}

	var last map[string]any
	for {
		var ev map[string]any
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		last = ev
	}
	if last == nil || last["type"] != "result" || last["status"] != "done" {
		t.Fatalf("last event = %v, want a done result", last)
	}
	result, _ := last["result"].(map[string]any)
	if result["score"] != float64(60) {
		t.Errorf("result = %v", result)
	}
}

func TestServer_ScanWebSocket_MissingURL(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/ws/users/dave/scan", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ─── Policy text ───────────────────────────────────────────────────────

func TestServer_AnalyzePolicy(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/policy/analyze", `{"text":"Vi bruger cookies."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Recommendations []string `json:"recommendations"`
	}
	decodeJSON(t, rec, &body)
	if len(body.Recommendations) != 3 {
		t.Errorf("expected 3 recommendations, got %v", body.Recommendations)
	}
}

func TestServer_AnalyzePolicy_Empty(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/policy/analyze", `{"text":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
