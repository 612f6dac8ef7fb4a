package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExternalHTTPClientTimeout(t *testing.T) {
	if ExternalHTTPClient() == nil {
		t.Fatal("ExternalHTTPClient must not be nil")
	}
	if externalHTTPClient.Timeout != defaultExternalHTTPTimeout {
		t.Fatalf("externalHTTPClient timeout = %s, want %s", externalHTTPClient.Timeout, defaultExternalHTTPTimeout)
	}
}

func TestConfigureExternalHTTPClient(t *testing.T) {
	original := externalHTTPClient.Timeout
	t.Cleanup(func() {
		externalHTTPClient.Timeout = original
	})

	if got := ConfigureExternalHTTPClient(120); got != 120*time.Second {
		t.Fatalf("ConfigureExternalHTTPClient(120) = %s, want %s", got, 120*time.Second)
	}
	if ExternalHTTPClient().Timeout != 120*time.Second {
		t.Fatalf("configured timeout = %s, want %s", ExternalHTTPClient().Timeout, 120*time.Second)
	}

	if got := ConfigureExternalHTTPClient(-1); got != defaultExternalHTTPTimeout {
		t.Fatalf("ConfigureExternalHTTPClient(-1) = %s, want %s", got, defaultExternalHTTPTimeout)
	}
}

func TestUserAgent(t *testing.T) {
	agents := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
	}))
	defer server.Close()

	resp, err := ExternalHTTPClient().Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "custom/2.0")
	resp, err = ExternalHTTPClient().Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if got := <-agents; got != userAgent {
		t.Fatalf("default User-Agent = %q, want %q", got, userAgent)
	}
	if got := <-agents; got != "custom/2.0" {
		t.Fatalf("explicit User-Agent = %q, want custom/2.0", got)
	}
}
