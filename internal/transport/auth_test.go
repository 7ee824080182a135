package transport

import (
	"net/http"
	"testing"
)

func TestNoAuth(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	(&NoAuth{}).Apply(req, "token")
	if len(req.Header) != 0 {
		t.Errorf("Expected no headers, got %d", len(req.Header))
	}
}

func TestBearerAuth(t *testing.T) {
	t.Run("sets header", func(t *testing.T) {
		req := &http.Request{Header: make(http.Header)}
		(&BearerAuth{}).Apply(req, "snipe-token")
		if got := req.Header.Get("Authorization"); got != "Bearer snipe-token" {
			t.Errorf("Expected Authorization header %q, got %q", "Bearer snipe-token", got)
		}
	})

	t.Run("empty token leaves request alone", func(t *testing.T) {
		req := &http.Request{Header: make(http.Header)}
		(&BearerAuth{}).Apply(req, "")
		if req.Header.Get("Authorization") != "" {
			t.Error("Expected no Authorization header")
		}
	})
}
