package auth

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// AccessTokenCookie is the cookie the backend sets on login and refresh.
// The client never writes it; the jar records Set-Cookie rotations.
const AccessTokenCookie = "access_token"

// NewCookieJar builds the jar shared by the token store and the HTTP client,
// so refresh-related cookies keep flowing without client-side bookkeeping.
func NewCookieJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// Store reads the access token from the browser-style cookie jar. Lookups
// have no side effects and never fail: an absent credential is a valid
// outcome, not an error.
type Store struct {
	jar  http.CookieJar
	base *url.URL
}

// NewStore wires a Store to the jar and the API base URL the cookies are
// scoped to. The jar is injected, never ambient, so tests control it.
func NewStore(jar http.CookieJar, baseURL string) (*Store, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Store{jar: jar, base: base}, nil
}

// Token returns the stored access token, or false when no credential is
// present in the jar.
func (s *Store) Token() (string, bool) {
	for _, c := range s.jar.Cookies(s.base) {
		if c.Name == AccessTokenCookie && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}
