package httpx

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CookieConfig describes the refresh cookie. It is always HttpOnly.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// ParseSameSite accepts Strict, Lax or None, case-insensitively.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode, nil
	case "lax", "":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	}
	return 0, fmt.Errorf("unknown SameSite mode %q", s)
}

// Set writes the cookie with Max-Age set to the whole seconds left until
// expiresAt.
func (c CookieConfig) Set(w http.ResponseWriter, value string, expiresAt, now time.Time) {
	maxAge := int(expiresAt.Sub(now) / time.Second)
	if maxAge <= 0 {
		c.Clear(w)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		Expires:  expiresAt.UTC(),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
	})
}

// Clear expires the cookie in the client (Max-Age=0 on the wire).
func (c CookieConfig) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
	})
}

// Read returns the cookie value, or "" when absent.
func (c CookieConfig) Read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}
