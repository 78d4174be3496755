package scoring_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/scoring"
)

// compliant is a signal set that triggers as few rules as possible.
func compliant() model.SignalSet {
	return model.SignalSet{
		HasCookieBanner:           true,
		BannerHasCategories:       true,
		HasOverlay:                true,
		HasPrivacyLink:            true,
		ThirdPartyScripts:         []string{"https://consent.cookiebot.com/uc.js"},
		DetectedConsentFrameworks: []string{"Cookiebot"},
		CookieNames:               []string{"CookieConsent"},
	}
}

func TestScore_AllAbsentScenario(t *testing.T) {
	t.Parallel()
	res := scoring.Score(model.SignalSet{})

	if want := []string{"Cookie banner", "Privacy policy"}; !reflect.DeepEqual(res.Missing, want) {
		t.Fatalf("Missing = %v, want %v", res.Missing, want)
	}
	if res.Score != 60 {
		t.Errorf("Score = %d, want 60", res.Score)
	}
	if len(res.Suggestions) != 5 {
		t.Errorf("expected 5 suggestions (rules 1,2,3,6,7), got %d: %v", len(res.Suggestions), res.SuggestionTexts())
	}
	for _, s := range res.Suggestions {
		if s.ConsentRelated {
			t.Errorf("no suggestion should be consent-related here: %q", s.Text)
		}
	}
}

func TestScore_NoBannerAlwaysMissingAndAtMost80(t *testing.T) {
	t.Parallel()
	variants := []model.SignalSet{
		{},
		{HasOverlay: true, HasPrivacyLink: true, BannerHasCategories: true},
		{HasPrivacyLink: true, EarlyCookieNames: []string{"a", "b"}, FormCount: 2},
		{HasOverlay: true, HasPrivacyLink: true, ThirdPartyScripts: []string{"x"}, DetectedConsentFrameworks: []string{"OneTrust"}},
	}
	for i, sig := range variants {
		res := scoring.Score(sig)
		if len(res.Missing) == 0 || res.Missing[0] != scoring.MissingCookieBanner {
			t.Errorf("variant %d: Missing = %v, want Cookie banner first", i, res.Missing)
		}
		if res.Score > 80 {
			t.Errorf("variant %d: Score = %d, want <= 80", i, res.Score)
		}
	}
}

func TestScore_CategoriesSuggestionOnlyWhenBannerPresent(t *testing.T) {
	t.Parallel()
	noBanner := scoring.Score(model.SignalSet{BannerHasCategories: false})
	for _, s := range noBanner.Suggestions {
		if strings.Contains(s.Text, "category") {
			t.Errorf("categories suggestion must not fire without a banner: %q", s.Text)
		}
	}

	sig := compliant()
	sig.BannerHasCategories = false
	res := scoring.Score(sig)
	if !strings.Contains(res.Suggestions[0].Text, "category") {
		t.Errorf("expected categories suggestion first, got %v", res.SuggestionTexts())
	}
	if len(res.Missing) != 0 {
		t.Errorf("categories are not a missing element: %v", res.Missing)
	}
}

func TestScore_NoMissingScoreIsConsentPenaltyOnly(t *testing.T) {
	t.Parallel()
	sig := compliant()
	sig.EarlyCookieNames = []string{"_ga"}
	sig.FormCount = 1
	res := scoring.Score(sig)

	if len(res.Missing) != 0 {
		t.Fatalf("expected no missing, got %v", res.Missing)
	}
	consent := 0
	for _, s := range res.Suggestions {
		if s.ConsentRelated {
			consent++
		}
	}
	if want := 100 - 5*consent; res.Score != want {
		t.Errorf("Score = %d, want %d", res.Score, want)
	}
	// early cookies, form, framework detected
	if consent != 3 {
		t.Errorf("expected 3 consent-related suggestions, got %d: %v", consent, res.SuggestionTexts())
	}
}

func TestScore_CompliantSite(t *testing.T) {
	t.Parallel()
	res := scoring.Score(compliant())
	if res.Score != 95 {
		t.Errorf("Score = %d, want 95", res.Score)
	}
	if want := []string{"Consent management platform detected: Cookiebot."}; !reflect.DeepEqual(res.SuggestionTexts(), want) {
		t.Errorf("Suggestions = %v, want %v", res.SuggestionTexts(), want)
	}
	if !reflect.DeepEqual(res.Scripts, []string{"https://consent.cookiebot.com/uc.js"}) {
		t.Errorf("Scripts = %v", res.Scripts)
	}
	if !reflect.DeepEqual(res.Cookies, []string{"CookieConsent"}) {
		t.Errorf("Cookies = %v", res.Cookies)
	}
}

func TestScore_EarlyCookieListCappedAtFive(t *testing.T) {
	t.Parallel()
	sig := compliant()
	sig.EarlyCookieNames = []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7"}
	res := scoring.Score(sig)

	var text string
	for _, s := range res.Suggestions {
		if strings.HasPrefix(s.Text, "Cookies are set before consent") {
			text = s.Text
		}
	}
	if text == "" {
		t.Fatalf("early cookie suggestion missing: %v", res.SuggestionTexts())
	}
	if !strings.Contains(text, "c1, c2, c3, c4, c5.") {
		t.Errorf("expected first five names, got %q", text)
	}
	if strings.Contains(text, "c6") || strings.Contains(text, "c7") {
		t.Errorf("more than five names listed: %q", text)
	}
}

func TestScore_NoFormsIsVacuouslySatisfied(t *testing.T) {
	t.Parallel()
	sig := compliant()
	sig.ConsentNearForm = false
	sig.FormCount = 0
	for _, s := range scoring.Score(sig).Suggestions {
		if strings.Contains(s.Text, "forms") {
			t.Errorf("unexpected form suggestion without forms: %q", s.Text)
		}
	}
}

func TestScore_RuleOrder(t *testing.T) {
	t.Parallel()
	sig := model.SignalSet{
		HasCookieBanner:  true,
		EarlyCookieNames: []string{"_ga"},
		FormCount:        1,
	}
	res := scoring.Score(sig)
	prefixes := []string{
		"Let visitors give consent per cookie category",
		"Make the cookie banner clearly visible",
		"Link to your privacy policy",
		"Cookies are set before consent",
		"Add a consent checkbox",
		"No third-party scripts",
		"Consider a cookie management platform",
	}
	if len(res.Suggestions) != len(prefixes) {
		t.Fatalf("expected %d suggestions, got %v", len(prefixes), res.SuggestionTexts())
	}
	for i, p := range prefixes {
		if !strings.HasPrefix(res.Suggestions[i].Text, p) {
			t.Errorf("suggestion %d = %q, want prefix %q", i, res.Suggestions[i].Text, p)
		}
	}
	// 100 - 20 (privacy) - 5*3 (categories, early cookies, form)
	if res.Score != 65 {
		t.Errorf("Score = %d, want 65", res.Score)
	}
}

// The structured flag replaced a text scan for "consent"; both must agree.
func TestScore_ConsentFlagMatchesText(t *testing.T) {
	t.Parallel()
	inputs := []model.SignalSet{
		{},
		compliant(),
		{HasCookieBanner: true, EarlyCookieNames: []string{"a"}, FormCount: 1},
		{HasCookieBanner: true, BannerHasCategories: true, ThirdPartyScripts: []string{"x"}},
	}
	for _, sig := range inputs {
		for _, s := range scoring.Score(sig).Suggestions {
			textSaysConsent := strings.Contains(strings.ToLower(s.Text), "consent")
			if s.ConsentRelated != textSaysConsent {
				t.Errorf("flag %v disagrees with text %q", s.ConsentRelated, s.Text)
			}
		}
	}
}

func TestScore_Idempotent(t *testing.T) {
	t.Parallel()
	sig := model.SignalSet{HasCookieBanner: true, EarlyCookieNames: []string{"a", "b"}, FormCount: 3}
	a := scoring.Score(sig)
	b := scoring.Score(sig)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Score is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestScore_NeverNegative(t *testing.T) {
	t.Parallel()
	res := scoring.Score(model.SignalSet{EarlyCookieNames: []string{"a"}, FormCount: 1})
	if res.Score < 0 {
		t.Errorf("Score = %d, must not be negative", res.Score)
	}
	// 100 - 40 - 5*2
	if res.Score != 50 {
		t.Errorf("Score = %d, want 50", res.Score)
	}
}
