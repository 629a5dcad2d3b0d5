package authsdk

import (
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/sessionauth/pkg/httpx"
)

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the JSON body of every error response. Fields is only
// present for validation failures.
type ErrorResponse struct {
	Error            string            `json:"error" example:"invalid_credentials"`
	ErrorDescription string            `json:"error_description,omitempty" example:"invalid username or password"`
	Timestamp        string            `json:"timestamp" example:"2025-01-01T00:00:00Z"`
	Path             string            `json:"path" example:"/api/auth/login"`
	Fields           map[string]string `json:"fields,omitempty"`
}

// ValidationError reports which request fields were rejected.
type ValidationError struct {
	*APIError
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.APIError.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return e.APIError }

// WriteError writes a 400 body that includes the rejected fields.
func (e *ValidationError) WriteError(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Path:             r.URL.Path,
		Fields:           e.Fields,
	})
}

// ============================================================================
// Auth Types
// ============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"correct-horse-battery"`

	// RememberMe selects the extended refresh session lifetime.
	RememberMe bool `json:"rememberMe"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"correct-horse-battery"`
}

// AuthResponse is returned by login and refresh. The refresh secret is not
// in the body; it travels in the HttpOnly refresh cookie.
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType" example:"Bearer"`
	ExpiresIn   int64  `json:"expiresIn" example:"900"`
	Username    string `json:"username" example:"alice"`
}

// RegisterResponse identifies the created account.
type RegisterResponse struct {
	ID       string `json:"id" example:"01JD6Q0S8N3K2Z4W6X8Y0A1B2C"`
	Username string `json:"username" example:"alice"`
}

// ============================================================================
// User Types
// ============================================================================

// MeResponse describes the caller of GET /api/me.
type MeResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role" example:"USER"`
}

// SessionInfo is one active refresh session. Secrets and hashes are never
// exposed.
type SessionInfo struct {
	ID         string `json:"id"`
	Kind       string `json:"kind" example:"STANDARD"`
	CreatedAt  string `json:"createdAt"`  // RFC3339
	LastUsedAt string `json:"lastUsedAt"` // RFC3339
	ExpiresAt  string `json:"expiresAt"`  // RFC3339
	IPAddress  string `json:"ipAddress,omitempty"`
	DeviceName string `json:"deviceName,omitempty" example:"Mac"`
}

// SessionsResponse lists the caller's active sessions, oldest first.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database string `json:"database"`

	// Cache is the redis lock backend, omitted when none is configured.
	Cache string `json:"cache,omitempty"`
}
