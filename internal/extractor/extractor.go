// Package extractor derives compliance signals from a rendered page.
//
// Every check is a coarse keyword heuristic over lower-cased text. False
// positives and negatives are accepted; the only guarantee is that Extract
// never fails and an absent element yields an empty signal.
package extractor

import (
	"strings"

	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/utils"
)

// Extract computes the SignalSet for page. A nil page yields the zero set.
func Extract(page *model.RenderedPage) model.SignalSet {
	if page == nil {
		return model.SignalSet{}
	}

	third := ThirdPartyScripts(page)
	cookieNames, early := cookieSignals(page.Cookies)

	return model.SignalSet{
		HasCookieBanner:           containsAny(page.HTML, bannerKeywords),
		BannerHasCategories:       containsAny(page.VisibleText, categoryKeywords),
		HasOverlay:                HasOverlay(page.Overlays),
		HasPrivacyLink:            hasPrivacyLink(page.Anchors),
		EarlyCookieNames:          early,
		CookieNames:               cookieNames,
		FormCount:                 len(page.Forms),
		ConsentNearForm:           consentNearForm(page.Forms),
		ThirdPartyScripts:         third,
		DetectedConsentFrameworks: DetectFrameworks(third),
	}
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HasOverlay reports whether any candidate is fixed-positioned (inline
// style) or cookie-classed and larger than the banner thresholds.
// Stylesheet-driven positioning is not visible here.
func HasOverlay(overlays []model.Overlay) bool {
	for _, o := range overlays {
		if !isOverlayCandidate(o) {
			continue
		}
		if o.Height > minOverlayHeight && o.Width > minOverlayWidth {
			return true
		}
	}
	return false
}

func isOverlayCandidate(o model.Overlay) bool {
	style := strings.Join(strings.Fields(strings.ToLower(o.Style)), "")
	if strings.Contains(style, "position:fixed") {
		return true
	}
	return strings.Contains(strings.ToLower(o.Class), "cookie")
}

func hasPrivacyLink(anchors []string) bool {
	for _, a := range anchors {
		if containsAny(a, privacyLinkKeywords) {
			return true
		}
	}
	return false
}

func consentNearForm(forms []model.Form) bool {
	for _, f := range forms {
		if containsAny(f.Text, formConsentKeywords) {
			return true
		}
	}
	return false
}

// cookieSignals returns all cookie names and the pre-consent subset.
func cookieSignals(cookies []model.Cookie) (all, early []string) {
	for _, c := range cookies {
		all = append(all, c.Name)
		if !strings.Contains(strings.ToLower(c.Name), consentCookieMarker) {
			early = append(early, c.Name)
		}
	}
	return all, early
}

// ThirdPartyScripts returns script sources whose hostname differs from the
// target's. Relative sources resolve against the page and are first-party;
// sources that cannot be parsed are skipped.
func ThirdPartyScripts(page *model.RenderedPage) []string {
	if page == nil || page.Target.URL == nil {
		return nil
	}
	base := page.Target.URL
	own := strings.ToLower(base.Hostname())

	var out []string
	for _, src := range page.Scripts {
		host, err := utils.ResolveHost(base, src)
		if err != nil || host == "" {
			continue
		}
		if host != own {
			out = append(out, src)
		}
	}
	return out
}

// DetectFrameworks matches script URLs against the Frameworks table. Each
// framework is reported at most once, in table order.
func DetectFrameworks(scripts []string) []string {
	var out []string
	for _, fw := range Frameworks {
		if matchesAny(scripts, fw.Signatures) {
			out = append(out, fw.Name)
		}
	}
	return out
}

func matchesAny(scripts, signatures []string) bool {
	for _, s := range scripts {
		lower := strings.ToLower(s)
		for _, sig := range signatures {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}
	return false
}
