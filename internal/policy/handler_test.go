package policy

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestServer(t *testing.T, s *Store) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(s).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postPolicy(t *testing.T, url string, p Policy) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(p)
	resp, err := http.Post(url+"/v1/policies", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestHandler_Create(t *testing.T) {
	srv := newTestServer(t, NewStore(filepath.Join(t.TempDir(), "policies.json")))

	p := testPolicy("pol-1")
	if resp := postPolicy(t, srv.URL, p); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	if resp := postPolicy(t, srv.URL, p); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", resp.StatusCode)
	}
	if resp := postPolicy(t, srv.URL, Policy{ID: "pol-2"}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid policy status = %d, want 400", resp.StatusCode)
	}
}

func TestHandler_CreateStoreFailureIs500(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.json")
	if err := os.WriteFile(path, []byte("not json"), 0640); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}
	srv := newTestServer(t, NewStore(path))

	// The policy itself is valid; the unreadable store is a server fault.
	if resp := postPolicy(t, srv.URL, testPolicy("pol-1")); resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("store failure status = %d, want 500", resp.StatusCode)
	}
}

func TestHandler_DeleteMissing(t *testing.T) {
	srv := newTestServer(t, NewStore(filepath.Join(t.TempDir(), "policies.json")))

	req, _ := http.NewRequest("DELETE", srv.URL+"/v1/policies/absent", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", resp.StatusCode)
	}
}
