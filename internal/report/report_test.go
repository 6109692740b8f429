package report

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"phalanx/internal/schema"
	"phalanx/internal/scoring"

	"github.com/google/uuid"
)

func anomalyVerdict() *scoring.Verdict {
	ev := &schema.Event{UserID: "user_123", Timestamp: "2026-08-01T10:00:00Z", EventType: "data_record"}
	ev.Data = schema.NewFields()
	ev.Data.Set("query", "SELECT * FROM users; --")
	return &scoring.Verdict{
		ID:        uuid.New(),
		IsAnomaly: true,
		Reason:    "No historical data found for this user.",
		Reasons:   []string{"No historical data found for this user."},
		Event:     ev,
		Timestamp: time.Date(2026, 8, 9, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuild(t *testing.T) {
	content := Build(anomalyVerdict(), time.Date(2026, 8, 9, 12, 5, 0, 0, time.UTC))

	for _, fragment := range []string{
		"DORA Incident Report",
		"Date of Incident: 2026-08-09 12:05:00",
		"Date of Detection: 2026-08-09 12:00:00",
		"Anomalous data_record event detected for user user_123.",
		"No historical data found for this user.",
		"SELECT * FROM users",
		"Escalate to security team",
	} {
		if !strings.Contains(content, fragment) {
			t.Errorf("report missing %q", fragment)
		}
	}
}

func TestBuildMonthly(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	empty := BuildMonthly(nil, now)
	if !strings.Contains(empty, "No anomalies were recorded") {
		t.Error("empty period summary missing no-anomalies line")
	}

	content := BuildMonthly([]*scoring.Verdict{anomalyVerdict(), anomalyVerdict()}, now)
	if !strings.Contains(content, "Incidents This Period: 2") {
		t.Error("summary missing incident count")
	}
	if !strings.Contains(content, "user_123: 2") {
		t.Error("summary missing per-user breakdown")
	}
}

func TestStore_SaveListRead(t *testing.T) {
	store, err := NewStore(t.TempDir() + "/reports")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	now := time.Now().UTC()
	rep, err := store.Save("report body", now)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	// Same second, distinct names.
	rep2, err := store.Save("another body", now)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rep.Name == rep2.Name {
		t.Errorf("report names collide: %s", rep.Name)
	}

	reports, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("listed %d reports, want 2", len(reports))
	}

	content, err := store.Read(rep.Name)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if content != "report body" {
		t.Errorf("content = %q", content)
	}
}

func TestStore_SequenceSurvivesRestart(t *testing.T) {
	dir := t.TempDir() + "/reports"
	now := time.Now().UTC()

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	rep, err := store.Save("before restart", now)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	rep2, err := reopened.Save("after restart", now)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rep.Name == rep2.Name {
		t.Fatalf("restart reused report name %s", rep.Name)
	}

	content, err := reopened.Read(rep.Name)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if content != "before restart" {
		t.Errorf("pre-restart report overwritten: %q", content)
	}
}

func TestStore_ReadRejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir() + "/reports")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	for _, name := range []string{"../../etc/passwd", "dora_report_../x.txt", "other.txt"} {
		if _, err := store.Read(name); err == nil {
			t.Errorf("Read(%q) accepted an invalid name", name)
		}
	}
}

func TestHandler_ReportAnomaly(t *testing.T) {
	store, err := NewStore(t.TempDir() + "/reports")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	h := NewHandler(store, nil, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	payload, _ := json.Marshal(anomalyVerdict())
	resp, err := http.Post(srv.URL+"/v1/report-anomaly", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	name, _ := body["report"].(string)
	if name == "" {
		t.Fatal("response missing report name")
	}

	// The report is listed and readable.
	lresp, err := http.Get(srv.URL + "/v1/reports")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer lresp.Body.Close()
	var listing map[string]any
	json.NewDecoder(lresp.Body).Decode(&listing)
	if listing["total"] != float64(1) {
		t.Errorf("total = %v, want 1", listing["total"])
	}

	rresp, err := http.Get(srv.URL + "/v1/reports/" + name)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer rresp.Body.Close()
	buf := new(bytes.Buffer)
	buf.ReadFrom(rresp.Body)
	if !strings.Contains(buf.String(), "DORA Incident Report") {
		t.Error("report content not served")
	}
}

func TestReporter_ReportOnce(t *testing.T) {
	drained := false
	detect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/anomalies/drain" || r.Method != "POST" {
			http.NotFound(w, r)
			return
		}
		drained = true
		json.NewEncoder(w).Encode(map[string]any{
			"anomalies": []*scoring.Verdict{anomalyVerdict()},
			"total":     1,
		})
	}))
	defer detect.Close()

	store, err := NewStore(t.TempDir() + "/reports")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	rep := NewReporter(detect.URL, store, nil, time.Hour, nil)

	if err := rep.ReportOnce(context.Background()); err != nil {
		t.Fatalf("report once: %v", err)
	}
	if !drained {
		t.Error("reporter never called the drain endpoint")
	}

	reports, err := store.List()
	if err != nil || len(reports) != 1 {
		t.Fatalf("reports = %v, err = %v", reports, err)
	}
	content, _ := store.Read(reports[0].Name)
	if !strings.Contains(content, "Incidents This Period: 1") {
		t.Errorf("summary content wrong: %q", content)
	}
}
