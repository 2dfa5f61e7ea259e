// Package httpx holds the small shared helper for typed JSON GETs against
// the public market APIs.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// GetJSON performs a GET against base+endpoint with the given query and
// decodes the 200 response body into T.
func GetJSON[T any](ctx context.Context, client *http.Client, base, endpoint string, query url.Values) (T, error) {
	var zero T

	u := base + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return zero, fmt.Errorf("couldn't build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a little of the body for the error message, then discard.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return zero, fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, string(b))
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("couldn't decode %s response: %w", endpoint, err)
	}
	return out, nil
}
