package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/embed" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "User u1 triggered a transaction event with data: amount: 50" {
			t.Errorf("text = %q", req.Text)
		}
		json.NewEncoder(w).Encode(map[string]any{"vector": []float32{0.6, 0.8}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "", 0)
	if e.Scheme() != SchemeRemoteV1 {
		t.Errorf("scheme = %q", e.Scheme())
	}

	vec, err := e.Embed("User u1 triggered a transaction event with data: amount: 50")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.6 || vec[1] != 0.8 {
		t.Errorf("vector = %v", vec)
	}
}

func TestHTTPEmbedder_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "", 0)
	if _, err := e.Embed("some text"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestHTTPEmbedder_EmptyVectorRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"vector": []float32{}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "", 0)
	if _, err := e.Embed("some text"); err == nil {
		t.Fatal("expected error on empty vector")
	}
}
