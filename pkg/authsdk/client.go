package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// SDKClient is a client for the session auth service. It behaves like a
// single browser: the refresh cookie lives in its cookie jar, so use one
// SDKClient per end user.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// RefreshLeeway is how long before access token expiry a Session
	// refreshes proactively. Default: 30 seconds.
	RefreshLeeway time.Duration
}

// NewSDKClient creates a client with its own cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil) // never fails with nil options

	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
		RefreshLeeway: 30 * time.Second,
	}
}

// Register creates an account. Field problems come back as *ValidationError.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if err := ValidateRegister(req).Err(); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/auth/register", req, "")
	if err != nil {
		return nil, err
	}

	var out RegisterResponse
	if err := readJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates with a username and password. The refresh cookie is
// kept in the client's jar and used by the returned Session.
func (c *SDKClient) Login(ctx context.Context, username, password string, rememberMe bool) (*Session, error) {
	req := LoginRequest{Username: username, Password: password, RememberMe: rememberMe}
	if err := ValidateLogin(req).Err(); err != nil {
		return nil, err
	}

	auth, err := c.postAuth(ctx, "/api/auth/login", req)
	if err != nil {
		return nil, err
	}
	return newSession(c, auth), nil
}

// Resume builds a Session from the refresh cookie already in the jar, e.g.
// after restoring the jar from disk.
func (c *SDKClient) Resume(ctx context.Context) (*Session, error) {
	auth, err := c.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return newSession(c, auth), nil
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service is ready. A 503 still decodes the body
// and is reported as an *APIError alongside it.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if resp.StatusCode == http.StatusServiceUnavailable {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &health, NewAPIError(resp.StatusCode, ErrorCodeUnexpectedResponse, "service is "+health.Status)
	}

	if err := readJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *SDKClient) refresh(ctx context.Context) (*AuthResponse, error) {
	return c.postAuth(ctx, "/api/auth/refresh", nil)
}

func (c *SDKClient) postAuth(ctx context.Context, path string, body any) (*AuthResponse, error) {
	resp, err := c.send(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, err
	}

	var auth AuthResponse
	if err := readJSON(resp, &auth, http.StatusOK); err != nil {
		return nil, err
	}
	return &auth, nil
}
