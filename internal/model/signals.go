package model

// SignalSet is the fixed set of compliance signals derived from a
// RenderedPage. It is never mutated after extraction.
type SignalSet struct {
	HasCookieBanner     bool
	BannerHasCategories bool
	HasOverlay          bool
	HasPrivacyLink      bool

	// EarlyCookieNames are cookies present right after load whose name does
	// not denote consent state.
	EarlyCookieNames []string

	// CookieNames are the names of all cookies present right after load.
	CookieNames []string

	// FormCount is the number of forms on the page. ConsentNearForm is only
	// meaningful when it is non-zero.
	FormCount       int
	ConsentNearForm bool

	ThirdPartyScripts         []string
	DetectedConsentFrameworks []string
}
