package model

import "net/url"

// ScanTarget is a normalized scan URL. It always carries an explicit
// http or https scheme and a non-empty host.
type ScanTarget struct {
	URL *url.URL
}

// String returns the target URL.
func (t ScanTarget) String() string {
	if t.URL == nil {
		return ""
	}
	return t.URL.String()
}

// Hostname returns the lower-cased host without port.
func (t ScanTarget) Hostname() string {
	if t.URL == nil {
		return ""
	}
	return t.URL.Hostname()
}

// Suggestion is one human-readable remediation hint produced by scoring.
type Suggestion struct {
	// Text is the message shown to the user.
	Text string `json:"text"`

	// ConsentRelated marks suggestions that count towards the consent
	// penalty. It is fixed when the suggestion is generated.
	ConsentRelated bool `json:"consent_related"`
}

// ScanResult is the outcome of one compliance scan.
type ScanResult struct {
	// Score is the compliance score in [0, 100].
	Score int `json:"score"`

	// Missing lists required elements that were not found, in rule order.
	Missing []string `json:"missing"`

	// Suggestions lists remediation hints, in rule order.
	Suggestions []Suggestion `json:"suggestions"`

	// Scripts lists third-party script URLs found on the page.
	Scripts []string `json:"scripts"`

	// Cookies lists the names of cookies observed after load.
	Cookies []string `json:"cookies"`
}

// SuggestionTexts returns the suggestion messages in order.
func (r *ScanResult) SuggestionTexts() []string {
	out := make([]string, 0, len(r.Suggestions))
	for _, s := range r.Suggestions {
		out = append(out, s.Text)
	}
	return out
}
