package demoserver

// PageVersion is one version of a page: its HTML and the cookies the
// server sets before any consent is given.
type PageVersion struct {
	HTML        string
	ContentType string
	Headers     map[string]string
	Cookies     []CookieDef
}

// CookieDef defines a cookie to be set.
type CookieDef struct {
	Name     string
	Value    string
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite string // "Strict", "Lax", "None", or ""
}

// PageDefinition holds all versions of a single page.
type PageDefinition struct {
	Path        string
	Description string
	Versions    map[int]PageVersion
}

// GetAllPages returns all demo page definitions.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		getHomePage(),
		getShopPage(),
		getPrivacyPage(),
	}
}

// ===== HOME PAGE =====
//
// v1 has no banner, no privacy link, an analytics cookie and a contact form
// without consent. v2 fixes everything with Cookiebot. v3 keeps the banner
// but drops the category choices and sets a tracking cookie early again.
func getHomePage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Landing page moving from non-compliant to compliant",
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html>
<head>
    <title>Bageriet - v1</title>
    <script src="https://www.googletagmanager.com/gtag/js?id=G-DEMO"></script>
    <script src="/static/app.js"></script>
</head>
<body>
    <h1>Welcome to Bageriet</h1>
    <p>Fresh bread every morning.</p>
    <form action="/contact" method="post">
        <input type="text" name="name" placeholder="Your name">
        <input type="email" name="email" placeholder="Email">
        <button type="submit">Send</button>
    </form>
</body>
</html>`,
				Cookies: []CookieDef{
					{Name: "_ga", Value: "GA1.1.123456789.1700000000", Path: "/"},
				},
			},
			2: {
				HTML: `<!DOCTYPE html>
<html>
<head>
    <title>Bageriet - v2</title>
    <script id="Cookiebot" src="https://consent.cookiebot.com/uc.js" data-cbid="demo"></script>
    <script src="/static/app.js"></script>
</head>
<body>
    <div id="CybotCookiebotDialog" class="cookie-dialog" style="position: fixed; bottom: 0; height: 180px; width: 1200px">
        <p>Vi bruger cookies til statistik og markedsføring.</p>
        <label><input type="checkbox" checked disabled> Nødvendige</label>
        <label><input type="checkbox"> Statistik</label>
        <label><input type="checkbox"> Markedsføring</label>
        <button>Accepter alle</button>
        <button>Afvis</button>
    </div>
    <h1>Welcome to Bageriet</h1>
    <p>Fresh bread every morning.</p>
    <form action="/contact" method="post">
        <input type="text" name="name" placeholder="Your name">
        <input type="email" name="email" placeholder="Email">
        <label><input type="checkbox" name="consent"> Jeg giver samtykke til behandling af mine data</label>
        <button type="submit">Send</button>
    </form>
    <footer><a href="/privacy">Privatlivspolitik</a></footer>
</body>
</html>`,
				Cookies: []CookieDef{
					{Name: "CookieConsent", Value: "{stamp:'-1'}", Path: "/", SameSite: "Lax"},
				},
			},
			3: {
				HTML: `<!DOCTYPE html>
<html>
<head>
    <title>Bageriet - v3</title>
    <script id="Cookiebot" src="https://consent.cookiebot.com/uc.js" data-cbid="demo"></script>
    <script src="https://connect.facebook.net/en_US/fbevents.js"></script>
</head>
<body>
    <div class="cookie-notice" style="position:fixed;bottom:0;height:90px;width:1200px">
        We use cookies. <button>Accept</button>
    </div>
    <h1>Welcome to Bageriet</h1>
    <footer><a href="/privacy">Privacy policy</a></footer>
</body>
</html>`,
				Cookies: []CookieDef{
					{Name: "CookieConsent", Value: "{stamp:'-1'}", Path: "/", SameSite: "Lax"},
					{Name: "_fbp", Value: "fb.1.1700000000.42", Path: "/"},
				},
			},
		},
	}
}

// ===== SHOP PAGE =====
func getShopPage() PageDefinition {
	return PageDefinition{
		Path:        "/shop",
		Description: "Shop with a OneTrust banner styled from a stylesheet",
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html>
<head>
    <title>Bageriet Shop</title>
    <script src="https://cdn.cookielaw.org/scripttemplates/otSDKStub.js"></script>
    <link rel="stylesheet" href="/static/banner.css">
</head>
<body>
    <div id="onetrust-banner-sdk" class="ot-sdk-container">
        We value your privacy. Manage your consent preferences.
        <button>Accept</button><button>Reject</button><button>Settings</button>
    </div>
    <h1>Shop</h1>
    <ul><li>Rugbrød</li><li>Kanelsnegl</li></ul>
    <a href="/privacy">Privacy</a>
</body>
</html>`,
				Cookies: []CookieDef{
					{Name: "OptanonConsent", Value: "isGpcEnabled=0", Path: "/"},
					{Name: "session_id", Value: "abc123", Path: "/", HttpOnly: true},
				},
			},
		},
	}
}

// ===== PRIVACY PAGE =====
func getPrivacyPage() PageDefinition {
	return PageDefinition{
		Path:        "/privacy",
		Description: "Privacy policy; v2 covers every expected section",
		Versions: map[int]PageVersion{
			1: {
				HTML: `<!DOCTYPE html>
<html>
<head><title>Privatlivspolitik</title></head>
<body>
    <h1>Privatlivspolitik</h1>
    <p>Vi passer godt på dine data.</p>
</body>
</html>`,
			},
			2: {
				HTML: `<!DOCTYPE html>
<html>
<head><title>Privatlivspolitik</title></head>
<body>
    <h1>Privatlivspolitik</h1>
    <h2>Cookies</h2>
    <p>Vi bruger cookies til statistik, når du har givet samtykke.</p>
    <h2>Dine rettigheder</h2>
    <p>Du har ret til indsigt, berigtigelse og sletning.</p>
    <h2>Databehandler</h2>
    <p>Vores hostingudbyder er databehandler for os.</p>
    <h2>Opbevaring</h2>
    <p>Ordredata opbevares i 5 år af hensyn til bogføringsloven.</p>
</body>
</html>`,
			},
		},
	}
}
