package model

// RenderedPage is a snapshot of a loaded page. It belongs to a single scan
// and is discarded once signals have been extracted.
type RenderedPage struct {
	// Target is the normalized URL the browser was pointed at.
	Target ScanTarget

	// FinalURL is the location after redirects, if the backend reports it.
	FinalURL string

	// HTML is the serialized document after the settle period.
	HTML string

	// VisibleText is the concatenated text content of the document.
	VisibleText string

	// Scripts holds the raw src attribute of every script element.
	Scripts []string

	// Anchors holds the text of every anchor element.
	Anchors []string

	// Cookies holds the cookies present right after load.
	Cookies []Cookie

	// Forms holds every form element found on the page.
	Forms []Form

	// Overlays holds elements that are fixed-positioned or carry a
	// cookie-ish class name, with their rendered geometry.
	Overlays []Overlay
}

// Cookie is the subset of cookie metadata the scanner cares about.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"http_only,omitempty"`
}

// Form is a form element reduced to its text content.
type Form struct {
	Text string
}

// Overlay is a candidate banner element with its rendered size in CSS pixels.
type Overlay struct {
	Tag    string  `json:"tag"`
	ID     string  `json:"id"`
	Class  string  `json:"className"`
	Style  string  `json:"style"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
}
