package demoserver

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/raysh454/consentscan/internal/logging"
)

var controlPanel = template.Must(template.New("control").Parse(controlPanelHTML))

// DemoServer serves consent fixture pages whose version can be switched at
// runtime, so a scan can be repeated against a site before and after it
// fixes its banner.
type DemoServer struct {
	cfg      Config
	logger   logging.Logger
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	mu       sync.RWMutex
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	pageMap := make(map[string]PageDefinition)
	versions := make(map[string]int)
	initial := cfg.InitialVersion
	if initial < 1 {
		initial = 1
	}

	for _, p := range GetAllPages() {
		pageMap[p.Path] = p
		versions[p.Path] = clampVersion(p, initial)
	}

	return &DemoServer{
		cfg:      cfg,
		logger:   logger.With(logging.Field{Key: "component", Value: "demoserver"}),
		pages:    pageMap,
		versions: versions,
	}
}

// Handler returns the router with every page and control endpoint mounted.
func (s *DemoServer) Handler() http.Handler {
	r := chi.NewRouter()

	for path := range s.pages {
		r.Get(path, s.pageHandler(path))
	}
	r.Post("/contact", s.contactHandler)

	r.Get("/demo/control", s.controlPanelHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
	r.Get("/demo/get-versions", s.getVersionsHandler)
	r.Post("/demo/bump-all", s.bumpAllVersionsHandler)
	r.Post("/demo/reset", s.resetVersionsHandler)

	r.Get("/static/*", s.staticHandler)
	return r
}

// Start listens on the configured port until the server fails.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("demo server starting",
		logging.Field{Key: "addr", Value: addr},
		logging.Field{Key: "control_panel", Value: fmt.Sprintf("http://localhost%s/demo/control", addr)})
	return http.ListenAndServe(addr, s.Handler())
}

// SetVersion switches path to version. It reports false for an unknown
// path or a version the page does not define.
func (s *DemoServer) SetVersion(path string, version int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[path]
	if !ok {
		return false
	}
	if _, ok := p.Versions[version]; !ok {
		return false
	}
	s.versions[path] = version
	return true
}

// Version returns the current version of path, or 0 if unknown.
func (s *DemoServer) Version(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[path]
}

// pageHandler returns a handler for a specific page path.
func (s *DemoServer) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		pageDef := s.pages[path]
		pageVersion := pageDef.Versions[s.versions[path]]
		s.mu.RUnlock()

		for k, v := range pageVersion.Headers {
			w.Header().Set(k, v)
		}

		// Cookies go out on the first response, before any consent.
		for _, c := range pageVersion.Cookies {
			http.SetCookie(w, c.httpCookie())
		}

		contentType := pageVersion.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pageVersion.HTML))
	}
}

func (c CookieDef) httpCookie() *http.Cookie {
	cookie := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
	}
	switch c.SameSite {
	case "Strict":
		cookie.SameSite = http.SameSiteStrictMode
	case "Lax":
		cookie.SameSite = http.SameSiteLaxMode
	case "None":
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

// contactHandler accepts the fixture contact forms and reports whether the
// consent box was ticked.
func (s *DemoServer) contactHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	consented := r.PostFormValue("consent") != ""
	s.logger.Info("contact form submitted", logging.Field{Key: "consent", Value: consented})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "consent": consented})
}

// staticHandler serves placeholder first-party assets.
func (s *DemoServer) staticHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write([]byte(`// Demo static file: ` + r.URL.Path + `
console.log("Loaded: ` + r.URL.Path + `");
`))
}

// controlPanelHandler serves the control panel for version management.
func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := struct {
		Pages    map[string]PageDefinition
		Versions map[string]int
		Port     int
	}{
		Pages:    s.pages,
		Versions: s.versions,
		Port:     s.cfg.Port,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := controlPanel.Execute(w, data); err != nil {
		s.logger.Warn("render control panel", logging.Field{Key: "error", Value: err.Error()})
	}
}

// setVersionHandler sets the version for a specific page.
func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	if !s.SetVersion(path, version) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"path":    path,
			"version": version,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"path":    path,
		"version": version,
	})
}

// PageInfo describes one page for the get-versions endpoint.
type PageInfo struct {
	Path              string `json:"path"`
	Description       string `json:"description"`
	CurrentVersion    int    `json:"current_version"`
	AvailableVersions []int  `json:"available_versions"`
}

// getVersionsHandler returns the current versions of all pages, by path.
func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	pages := make([]PageInfo, 0, len(s.pages))
	for path, pageDef := range s.pages {
		versions := make([]int, 0, len(pageDef.Versions))
		for v := range pageDef.Versions {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		pages = append(pages, PageInfo{
			Path:              path,
			Description:       pageDef.Description,
			CurrentVersion:    s.versions[path],
			AvailableVersions: versions,
		})
	}
	s.mu.RUnlock()

	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	writeJSON(w, http.StatusOK, pages)
}

// bumpAllVersionsHandler increments the version of all pages, capped at
// each page's highest version.
func (s *DemoServer) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = clampVersion(s.pages[path], s.versions[path]+1)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All versions bumped",
	})
}

// resetVersionsHandler resets all pages to version 1.
func (s *DemoServer) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = 1
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All versions reset to 1",
	})
}

// clampVersion returns v, or the page's highest version when v exceeds it.
func clampVersion(p PageDefinition, v int) int {
	maxV := 1
	for pv := range p.Versions {
		if pv > maxV {
			maxV = pv
		}
	}
	if v > maxV {
		return maxV
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const controlPanelHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Consent Demo Control Panel</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 960px; margin: 0 auto; padding: 20px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #ddd; }
        button { margin-right: 4px; }
        button.active { background: #0a7d32; color: white; }
        code { background: #f2f2f2; padding: 2px 4px; }
    </style>
</head>
<body>
    <h1>Consent Demo Control Panel</h1>
    <p>
        Switch a page between consent states, then scan it:
        <code>consentscan scan --backend nethttp http://localhost:{{.Port}}/</code>
    </p>
    <p>
        <button onclick="post('/demo/bump-all')">Bump all</button>
        <button onclick="post('/demo/reset')">Reset to v1</button>
    </p>
    <table>
        <tr><th>Page</th><th>Description</th><th>Version</th></tr>
        {{range $path, $page := .Pages}}
        <tr>
            <td><a href="{{$path}}" target="_blank">{{$path}}</a></td>
            <td>{{$page.Description}}</td>
            <td>
                {{range $v, $_ := $page.Versions}}
                <button class="{{if eq (index $.Versions $path) $v}}active{{end}}"
                        onclick="post('/demo/set-version', 'path={{$path}}&version={{$v}}')">v{{$v}}</button>
                {{end}}
            </td>
        </tr>
        {{end}}
    </table>
    <script>
        function post(url, body) {
            fetch(url, {
                method: 'POST',
                headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                body: body || ''
            }).then(() => location.reload());
        }
    </script>
</body>
</html>`
