// Package policytext reviews the text of a privacy policy for the sections
// a GDPR policy is expected to cover.
package policytext

import (
	"errors"
	"strings"
)

var ErrEmptyText = errors.New("policy text is empty")

// LooksGood is returned alone when every section is present.
const LooksGood = "Everything looks fine, but always have a lawyer double-check the policy."

type section struct {
	keywords   []string
	suggestion string
}

// sections are checked in order; keywords cover Danish and English.
var sections = []section{
	{
		keywords:   []string{"cookie"},
		suggestion: "Add a section about cookies and the cookie banner.",
	},
	{
		keywords:   []string{"rettigheder", "your rights", "data subject rights", "right to"},
		suggestion: "Describe the users' rights under the GDPR.",
	},
	{
		keywords:   []string{"databehandler", "data processor", "processor"},
		suggestion: "List any data processors and the purposes they process data for.",
	},
	{
		keywords:   []string{"opbevaring", "opbevares", "retention", "retain", "stored for"},
		suggestion: "Explain how long data is kept and why.",
	},
}

// Analyze returns one suggestion per missing section, or LooksGood.
// Blank text is rejected with ErrEmptyText.
func Analyze(text string) ([]string, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return nil, ErrEmptyText
	}

	var out []string
	for _, s := range sections {
		if !containsAny(lower, s.keywords) {
			out = append(out, s.suggestion)
		}
	}
	if len(out) == 0 {
		return []string{LooksGood}, nil
	}
	return out, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
