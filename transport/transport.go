// Package transport delivers recorded clips to the place-search service.
package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultEndpoint is the webhook the mobile client posts recordings to.
const DefaultEndpoint = "https://n8n-container.wittyforest-aed2327f.swedencentral.azurecontainerapps.io/webhook-test/record"

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("endpoint returned %d", e.Code)
	}
	return fmt.Sprintf("endpoint returned %d: %s", e.Code, body)
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	return nil
}
