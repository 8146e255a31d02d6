package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chathub/pkg/store"
)

func TestHandlerServesReadyzThroughMiddleware(t *testing.T) {
	eff := baseEff()
	eff.DBPath = t.TempDir()
	eff.Config.Security.CORS.AllowedOrigins = []string{"https://chat.example.com"}

	a, err := New(eff, "1.2.3", "none", "unknown")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/readyz", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Origin", "https://chat.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `"1.2.3"`) {
		t.Fatalf("readyz body missing version: %s", body)
	}
	// the perimeter middleware is in the chain
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://chat.example.com" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}

	// the routed API surface is mounted under the same handler
	resp2, err := http.Get(srv.URL + "/api/registered-users")
	if err != nil {
		t.Fatalf("GET /api/registered-users: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("registered-users status = %d", resp2.StatusCode)
	}
}
