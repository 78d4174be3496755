// Package store persists scan analyses in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// DefaultListLimit applies when ListAnalyses is called without a limit.
const DefaultListLimit = 50

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrMissingUser      = errors.New("user id is required")
)

// Analysis is one persisted scan of url on behalf of a user.
type Analysis struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	URL         string             `json:"url"`
	Score       int                `json:"score"`
	Missing     []string           `json:"missing"`
	Suggestions []model.Suggestion `json:"suggestions"`
	Scripts     []string           `json:"scripts"`
	Cookies     []string           `json:"cookies"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Result returns the scan result the analysis was created from.
func (a *Analysis) Result() *model.ScanResult {
	return &model.ScanResult{
		Score:       a.Score,
		Missing:     a.Missing,
		Suggestions: a.Suggestions,
		Scripts:     a.Scripts,
		Cookies:     a.Cookies,
	}
}

type Store struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the SQLite database at path. The busy
// timeout and WAL mode are set in the DSN so every pooled connection gets
// them.
func Open(path string, logger logging.Logger) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies the schema.
func New(db *sql.DB, logger logging.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("store: db is nil")
	}
	if logger == nil {
		return nil, errors.New("store: nil logger")
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "store"}),
		now:    time.Now,
	}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// SaveAnalysis stores result for userID. Nil lists are stored empty.
func (s *Store) SaveAnalysis(ctx context.Context, userID, url string, result *model.ScanResult) (*Analysis, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	if result == nil {
		return nil, errors.New("store: nil scan result")
	}

	a := &Analysis{
		ID:          uuid.New().String(),
		UserID:      userID,
		URL:         url,
		Score:       result.Score,
		Missing:     nonNil(result.Missing),
		Suggestions: result.Suggestions,
		Scripts:     nonNil(result.Scripts),
		Cookies:     nonNil(result.Cookies),
		CreatedAt:   s.now().UTC(),
	}
	if a.Suggestions == nil {
		a.Suggestions = []model.Suggestion{}
	}

	cols, err := encodeLists(a)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, url, score, missing, suggestions, scripts, cookies, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.URL, a.Score, cols[0], cols[1], cols[2], cols[3], a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}

	s.logger.Debug("saved analysis",
		logging.Field{Key: "id", Value: a.ID},
		logging.Field{Key: "user", Value: a.UserID},
		logging.Field{Key: "score", Value: a.Score})
	return a, nil
}

// ListAnalyses returns userID's analyses, newest first. A non-positive
// limit uses DefaultListLimit.
func (s *Store) ListAnalyses(ctx context.Context, userID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, url, score, missing, suggestions, scripts, cookies, created_at
         FROM analyses
         WHERE user_id = ?
         ORDER BY created_at DESC, rowid DESC
         LIMIT ?`,
		strings.TrimSpace(userID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

func (s *Store) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, url, score, missing, suggestions, scripts, cookies, created_at
         FROM analyses
         WHERE id = ?
         LIMIT 1`,
		id,
	)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var (
		a                                     Analysis
		missing, suggestions, scripts, cookie string
		created                               int64
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.URL, &a.Score, &missing, &suggestions, &scripts, &cookie, &created); err != nil {
		return nil, err
	}
	if err := decodeJSON(missing, &a.Missing); err != nil {
		return nil, fmt.Errorf("decode missing for %s: %w", a.ID, err)
	}
	if err := decodeJSON(suggestions, &a.Suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions for %s: %w", a.ID, err)
	}
	if err := decodeJSON(scripts, &a.Scripts); err != nil {
		return nil, fmt.Errorf("decode scripts for %s: %w", a.ID, err)
	}
	if err := decodeJSON(cookie, &a.Cookies); err != nil {
		return nil, fmt.Errorf("decode cookies for %s: %w", a.ID, err)
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	return &a, nil
}

func encodeLists(a *Analysis) ([4]string, error) {
	var out [4]string
	for i, v := range []any{a.Missing, a.Suggestions, a.Scripts, a.Cookies} {
		b, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("encode analysis lists: %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		s = "[]"
	}
	return json.Unmarshal([]byte(s), v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
