// Package httpx holds the shared client for outbound calls to the
// classifier service and the LLM API.
package httpx

import (
	"net/http"
	"time"
)

const (
	defaultExternalHTTPTimeout = 30 * time.Second
	userAgent                  = "ticketbot/1.0"
)

var externalHTTPClient = &http.Client{
	Timeout:   defaultExternalHTTPTimeout,
	Transport: &userAgentTransport{base: http.DefaultTransport},
}

// ExternalHTTPClient is the shared client for calls to the classifier service.
func ExternalHTTPClient() *http.Client {
	return externalHTTPClient
}

// ConfigureExternalHTTPClient sets the per-request timeout. Values <= 0
// restore the default. It returns the timeout now in effect.
func ConfigureExternalHTTPClient(timeoutSeconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}

// userAgentTransport tags requests that don't already carry a User-Agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(req)
}
