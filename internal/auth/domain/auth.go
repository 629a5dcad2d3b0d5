package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxUserAgentLength = 500
	MaxIPAddressLength = 45 // textual IPv6 with embedded IPv4
)

// RequestContext is the client metadata recorded on a refresh session.
// None of it takes part in authorization decisions.
type RequestContext struct {
	IPAddress  string
	UserAgent  string
	DeviceName string
}

// NewRequestContext bounds the raw values and derives a device label from
// the user agent.
func NewRequestContext(ip, userAgent string) RequestContext {
	return RequestContext{
		IPAddress:  truncate(strings.TrimSpace(ip), MaxIPAddressLength),
		UserAgent:  truncate(userAgent, MaxUserAgentLength),
		DeviceName: DeviceName(userAgent),
	}
}

// DeviceName maps a user agent to a coarse label for session listings.
func DeviceName(userAgent string) string {
	switch {
	case userAgent == "":
		return "Unknown"
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"):
		return "iOS Device"
	case strings.Contains(userAgent, "Android"):
		return "Android Device"
	case strings.Contains(userAgent, "Windows"):
		return "Windows PC"
	case strings.Contains(userAgent, "Macintosh"):
		return "Mac"
	case strings.Contains(userAgent, "Linux"):
		return "Linux PC"
	default:
		return "Unknown Device"
	}
}

// truncate replaces invalid UTF-8 with U+FFFD and keeps at most n runes.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for count := 0; count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

// AuthResult is returned by login and refresh.
type AuthResult struct {
	AccessToken      string
	ExpiresIn        int64 // seconds
	Username         string
	RefreshSecret    string
	RefreshExpiresAt time.Time
}
