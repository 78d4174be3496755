// Package scoring maps a SignalSet to a compliance score and an ordered
// list of remediation suggestions.
package scoring

import (
	"fmt"
	"strings"

	"github.com/raysh454/consentscan/internal/model"
)

const (
	MissingCookieBanner = "Cookie banner"
	MissingPrivacyLink  = "Privacy policy"

	// RecommendedFramework is named when no consent platform is detected.
	RecommendedFramework = "Cookiebot"

	maxScore         = 100
	missingPenalty   = 20
	consentPenalty   = 5
	maxListedCookies = 5
)

// Score applies the rules in their fixed order. The order of Missing and
// Suggestions is part of the result contract.
func Score(signals model.SignalSet) *model.ScanResult {
	var missing []string
	var suggestions []model.Suggestion

	// 1. Banner presence, then banner granularity. Only one of the two.
	if !signals.HasCookieBanner {
		missing = append(missing, MissingCookieBanner)
		suggestions = append(suggestions, suggestion(
			"Add a cookie banner that lets visitors accept or decline non-essential cookies.", false))
	} else if !signals.BannerHasCategories {
		suggestions = append(suggestions, suggestion(
			"Let visitors give consent per cookie category (necessary, statistics, marketing).", true))
	}

	// 2. Banner visibility.
	if !signals.HasOverlay {
		suggestions = append(suggestions, suggestion(
			"Make the cookie banner clearly visible on first page load, for example as a fixed overlay.", false))
	}

	// 3. Privacy policy link.
	if !signals.HasPrivacyLink {
		missing = append(missing, MissingPrivacyLink)
		suggestions = append(suggestions, suggestion(
			"Link to your privacy policy from every page, for example in the footer.", false))
	}

	// 4. Cookies set before the visitor has answered.
	if len(signals.EarlyCookieNames) > 0 {
		names := signals.EarlyCookieNames
		if len(names) > maxListedCookies {
			names = names[:maxListedCookies]
		}
		suggestions = append(suggestions, suggestion(
			fmt.Sprintf("Cookies are set before consent is given: %s.", strings.Join(names, ", ")), true))
	}

	// 5. Forms without a consent notice. No forms means nothing to fix.
	if signals.FormCount > 0 && !signals.ConsentNearForm {
		suggestions = append(suggestions, suggestion(
			"Add a consent checkbox or privacy notice next to forms that collect personal data.", true))
	}

	// 6. No third-party scripts at all.
	if len(signals.ThirdPartyScripts) == 0 {
		suggestions = append(suggestions, suggestion(
			"No third-party scripts were detected; check that tracking tools are not injected after interaction.", false))
	}

	// 7. Consent management platform.
	if len(signals.DetectedConsentFrameworks) > 0 {
		suggestions = append(suggestions, suggestion(
			fmt.Sprintf("Consent management platform detected: %s.", strings.Join(signals.DetectedConsentFrameworks, ", ")), true))
	} else {
		suggestions = append(suggestions, suggestion(
			fmt.Sprintf("Consider a cookie management platform such as %s to handle banner and cookie blocking.", RecommendedFramework), false))
	}

	return &model.ScanResult{
		Score:       compute(len(missing), suggestions),
		Missing:     nonNil(missing),
		Suggestions: suggestions,
		Scripts:     nonNil(append([]string(nil), signals.ThirdPartyScripts...)),
		Cookies:     nonNil(append([]string(nil), signals.CookieNames...)),
	}
}

func suggestion(text string, consentRelated bool) model.Suggestion {
	return model.Suggestion{Text: text, ConsentRelated: consentRelated}
}

// compute is max(0, 100 - 20*missing - 5*consent-related suggestions).
func compute(missing int, suggestions []model.Suggestion) int {
	consent := 0
	for _, s := range suggestions {
		if s.ConsentRelated {
			consent++
		}
	}
	score := maxScore - missingPenalty*missing - consentPenalty*consent
	if score < 0 {
		return 0
	}
	return score
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
