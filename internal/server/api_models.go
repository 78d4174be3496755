package server

import (
	"time"

	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/store"
)

// ScanRequest names the site to scan.
type ScanRequest struct {
	URL string `json:"url"`
}

// ScanResponse is the public shape of a scan result.
type ScanResponse struct {
	Score       int      `json:"score"`
	Missing     []string `json:"missing"`
	Suggestions []string `json:"suggestions"`
	Scripts     []string `json:"scripts"`
	Cookies     []string `json:"cookies"`
}

func newScanResponse(res *model.ScanResult) ScanResponse {
	return ScanResponse{
		Score:       res.Score,
		Missing:     nonNil(res.Missing),
		Suggestions: nonNil(res.SuggestionTexts()),
		Scripts:     nonNil(res.Scripts),
		Cookies:     nonNil(res.Cookies),
	}
}

// AnalysisResponse is a stored scan.
type AnalysisResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	ScanResponse
}

func newAnalysisResponse(a *store.Analysis) AnalysisResponse {
	return AnalysisResponse{
		ID:           a.ID,
		UserID:       a.UserID,
		URL:          a.URL,
		CreatedAt:    a.CreatedAt,
		ScanResponse: newScanResponse(a.Result()),
	}
}

// PolicyTextRequest carries privacy policy text to review.
type PolicyTextRequest struct {
	Text string `json:"text"`
}

type PolicyTextResponse struct {
	Recommendations []string `json:"recommendations"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
