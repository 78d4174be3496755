package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/raysh454/consentscan/internal/model"
	"golang.org/x/net/idna"
)

// DefaultScheme is prepended to targets that carry no http(s) scheme.
const DefaultScheme = "https"

var schemePrefix = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*)://`)

var (
	ErrEmptyURL          = errors.New("empty url")
	ErrMissingHost       = errors.New("missing host")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// NormalizeTarget turns user input into a ScanTarget.
//
// Examples:
//
//	"example.com"           -> "https://example.com"
//	"  HTTP://Example.COM " -> "http://example.com"
//	"https://例え.テスト/a"   -> "https://xn--r8jz45g.xn--zckzah/a"
//	"ftp://example.com"     -> ErrUnsupportedScheme
func NormalizeTarget(raw string) (model.ScanTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.ScanTarget{}, ErrEmptyURL
	}

	// A "://" inside the path or query does not make a scheme.
	if m := schemePrefix.FindStringSubmatch(raw); m != nil {
		if scheme := strings.ToLower(m[1]); scheme != "http" && scheme != "https" {
			return model.ScanTarget{}, fmt.Errorf("%w %q", ErrUnsupportedScheme, m[1])
		}
	} else {
		raw = DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return model.ScanTarget{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return model.ScanTarget{}, ErrMissingHost
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	u.User = nil
	u.Fragment = ""

	return model.ScanTarget{URL: u}, nil
}

// ResolveHost resolves ref against base and returns the resulting
// lower-cased hostname. Relative references resolve to base's host.
func ResolveHost(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrEmptyURL
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if base != nil {
		r = base.ResolveReference(r)
	}
	return strings.ToLower(r.Hostname()), nil
}
