// Package dom is the HTML parsing surface of the scanner. Browser backends
// hand it serialized markup and read back the element lists the extractor
// works on.
package dom

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raysh454/consentscan/internal/model"
)

// OverlaySelector matches elements that may act as a consent overlay.
// Matching is case-insensitive and loose; the extractor applies the exact
// position and size test.
const OverlaySelector = "[class*='cookie' i], [style*='fixed' i]"

// Parser turns markup into a queryable Document.
type Parser interface {
	Parse(html string) (Document, error)
}

// Document is a parsed page.
type Document interface {
	// ScriptSources returns the src attribute of every script element that has one.
	ScriptSources() []string

	// AnchorTexts returns the trimmed text of every anchor element.
	AnchorTexts() []string

	// Forms returns every form element with its text content.
	Forms() []model.Form

	// Text returns the text content of the whole document.
	Text() string

	// OverlayCandidates returns elements matching OverlaySelector. Geometry
	// is taken from inline height/width styles since no layout is available.
	OverlayCandidates() []model.Overlay
}

// GoqueryParser parses documents with goquery.
type GoqueryParser struct{}

func (GoqueryParser) Parse(html string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &goqueryDocument{doc: doc}, nil
}

type goqueryDocument struct {
	doc *goquery.Document
}

func (d *goqueryDocument) ScriptSources() []string {
	var out []string
	d.doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			out = append(out, src)
		}
	})
	return out
}

func (d *goqueryDocument) AnchorTexts() []string {
	var out []string
	d.doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func (d *goqueryDocument) Forms() []model.Form {
	var out []model.Form
	d.doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		out = append(out, model.Form{Text: collapseSpace(formText(s))})
	})
	return out
}

// formText includes label-ish attributes because consent checkboxes are
// often described only through placeholder or aria-label.
func formText(s *goquery.Selection) string {
	var b strings.Builder
	b.WriteString(s.Text())
	s.Find("input, textarea, button").Each(func(_ int, in *goquery.Selection) {
		for _, attr := range []string{"placeholder", "aria-label", "value", "name"} {
			if v, ok := in.Attr(attr); ok && v != "" {
				b.WriteByte(' ')
				b.WriteString(v)
			}
		}
	})
	return b.String()
}

func (d *goqueryDocument) Text() string {
	body := d.doc.Find("body")
	if body.Length() == 0 {
		return collapseSpace(d.doc.Text())
	}
	clone := body.Clone()
	clone.Find("script, style, noscript").Remove()
	return collapseSpace(clone.Text())
}

func (d *goqueryDocument) OverlayCandidates() []model.Overlay {
	var out []model.Overlay
	d.doc.Find(OverlaySelector).Each(func(_ int, s *goquery.Selection) {
		style := s.AttrOr("style", "")
		out = append(out, model.Overlay{
			Tag:    goquery.NodeName(s),
			ID:     s.AttrOr("id", ""),
			Class:  s.AttrOr("class", ""),
			Style:  style,
			Height: inlinePixels(style, "height"),
			Width:  inlinePixels(style, "width"),
		})
	})
	return out
}

// inlinePixels reads a px (or unitless) length for prop from an inline
// style declaration. Any other unit yields 0.
func inlinePixels(style, prop string) float64 {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok || strings.ToLower(strings.TrimSpace(name)) != prop {
			continue
		}
		value = strings.ToLower(strings.TrimSpace(value))
		value = strings.TrimSuffix(value, "!important")
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "px"))
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
