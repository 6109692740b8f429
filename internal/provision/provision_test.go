package provision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"phalanx/internal/config"
)

type stubRunner struct {
	specs []ContainerSpec
	id    string
	err   error
}

func (s *stubRunner) Run(_ context.Context, spec ContainerSpec) (string, error) {
	s.specs = append(s.specs, spec)
	return s.id, s.err
}

func testProvisionConfig() config.ProvisionConfig {
	return config.ProvisionConfig{
		MongoImage:    "mongo:7",
		PostgresImage: "postgres:16",
		StartTimeout:  time.Minute,
	}
}

func TestProvisioner_MongoDB(t *testing.T) {
	runner := &stubRunner{id: "abc123"}
	p := NewProvisioner(runner, testProvisionConfig(), nil)

	id, err := p.MongoDB(context.Background())
	if err != nil {
		t.Fatalf("mongodb: %v", err)
	}
	if id != "abc123" {
		t.Errorf("id = %q", id)
	}

	spec := runner.specs[0]
	if spec.Image != "mongo:7" {
		t.Errorf("image = %q", spec.Image)
	}
	if string(spec.Port) != "27017/tcp" || spec.HostPort != 27017 {
		t.Errorf("port binding = %s -> %d", spec.Port, spec.HostPort)
	}
	if !slices.Contains(spec.Env, "MONGO_INITDB_ROOT_USERNAME=admin") ||
		!slices.Contains(spec.Env, "MONGO_INITDB_ROOT_PASSWORD=password") {
		t.Errorf("env = %v", spec.Env)
	}
}

func TestProvisioner_PostgreSQL(t *testing.T) {
	runner := &stubRunner{id: "def456"}
	p := NewProvisioner(runner, testProvisionConfig(), nil)

	if _, err := p.PostgreSQL(context.Background()); err != nil {
		t.Fatalf("postgresql: %v", err)
	}

	spec := runner.specs[0]
	if spec.Image != "postgres:16" {
		t.Errorf("image = %q", spec.Image)
	}
	if string(spec.Port) != "5432/tcp" || spec.HostPort != 5432 {
		t.Errorf("port binding = %s -> %d", spec.Port, spec.HostPort)
	}
	if !slices.Contains(spec.Env, "POSTGRES_USER=admin") {
		t.Errorf("env = %v", spec.Env)
	}
}

func TestHandler_MongoDBSuccessMessage(t *testing.T) {
	runner := &stubRunner{id: "abc123"}
	h := NewHandler(NewProvisioner(runner, testProvisionConfig(), nil), nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/provision/mongodb", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["message"] != "MongoDB container abc123 created successfully." {
		t.Errorf("message = %q", body["message"])
	}
}

func TestHandler_RunnerFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("daemon unreachable")}
	h := NewHandler(NewProvisioner(runner, testProvisionConfig(), nil), nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/v1/provision/mongodb", "/v1/provision/postgres"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("%s status = %d, want 502", path, resp.StatusCode)
		}
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewHandler(NewProvisioner(&stubRunner{}, testProvisionConfig(), nil), nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/provision/mongodb")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer health.Body.Close()
	var hb map[string]string
	json.NewDecoder(health.Body).Decode(&hb)
	if hb["status"] != "healthy" {
		t.Errorf("health = %v", hb)
	}
}
