package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/sessionauth/pkg/slogx"
)

// send issues a request against BaseURL. A non-nil body is sent as JSON and
// a non-empty bearer becomes the Authorization header. The caller's request
// ID, if any, is forwarded so server logs line up with the caller's.
func (c *SDKClient) send(ctx context.Context, method, path string, body any, bearer string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if id := slogx.RequestID(ctx); id != "" {
		req.Header.Set(slogx.RequestIDHeader, id)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// sendAuthed is send with the session's access token, refreshed first when
// it is about to expire.
func (s *Session) sendAuthed(ctx context.Context, method, path string) (*http.Response, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.send(ctx, method, path, nil, token)
}

// readJSON decodes the body into target when the status is want and turns
// anything else into an *APIError (or *ValidationError).
func readJSON(resp *http.Response, target any, want int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != want {
		return parseErrorResponse(resp, body)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func expectNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return parseErrorResponse(resp, body)
}
