package extractor

// Keyword sets are matched as lower-case substrings. Danish variants are
// included because the product's primary market is Denmark.
var (
	bannerKeywords = []string{
		"cookie", "accept", "decline", "privacy", "consent",
		"accepter", "afvis", "privatliv", "samtykke",
	}

	categoryKeywords = []string{
		"necessary", "statistics", "marketing", "choices", "settings",
		"nødvendige", "statistik", "markedsføring", "valg", "indstillinger",
	}

	privacyLinkKeywords = []string{"privacy", "privatliv"}

	formConsentKeywords = []string{"consent", "gdpr", "privacy", "samtykke", "privatliv"}
)

// consentCookieMarker marks cookies that store the consent decision itself.
const consentCookieMarker = "consent"

// Overlay geometry thresholds in CSS pixels (strictly greater than).
const (
	minOverlayHeight = 40
	minOverlayWidth  = 100
)

// Framework is a consent management platform recognised by script URL.
type Framework struct {
	Name string

	// Signatures are lower-case substrings of the platform's script URLs.
	Signatures []string
}

// Frameworks is the signature table, in reporting order.
var Frameworks = []Framework{
	{Name: "Cookiebot", Signatures: []string{"cookiebot.com", "cookiebot.eu"}},
	{Name: "CookieInformation", Signatures: []string{"cookieinformation.com"}},
	{Name: "OneTrust", Signatures: []string{"cdn.cookielaw.org", "onetrust.com", "otsdkstub.js"}},
	{Name: "Usercentrics", Signatures: []string{"usercentrics.eu", "usercentrics.com"}},
	{Name: "Didomi", Signatures: []string{"sdk.privacy-center.org", "didomi.io"}},
	{Name: "Quantcast Choice", Signatures: []string{"quantcast.mgr.consensu.org", "cmp.quantcast.com"}},
	{Name: "TrustArc", Signatures: []string{"consent.trustarc.com", "trustarc.com"}},
	{Name: "iubenda", Signatures: []string{"iubenda.com"}},
	{Name: "CookieYes", Signatures: []string{"cookieyes.com", "cookie-law-info"}},
	{Name: "Complianz", Signatures: []string{"complianz"}},
	{Name: "Osano", Signatures: []string{"osano.com"}},
	{Name: "Termly", Signatures: []string{"termly.io"}},
	{Name: "Klaro", Signatures: []string{"klaro.js", "kiprotect.com"}},
}
