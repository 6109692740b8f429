package schema

import (
	"encoding/json"
	"testing"
)

func TestFields_OrderPreservingRoundTrip(t *testing.T) {
	raw := `{"amount":9000,"currency":"EUR","recipient":"Offshore_Account_123","country":"Cayman Islands","flagged":true}`

	var f Fields
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	wantKeys := []string{"amount", "currency", "recipient", "country", "flagged"}
	gotKeys := f.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("expected %d keys, got %d", len(wantKeys), len(gotKeys))
	}
	for i, k := range wantKeys {
		if gotKeys[i] != k {
			t.Errorf("key[%d] = %q, want %q", i, gotKeys[i], k)
		}
	}

	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("round trip changed document:\n got %s\nwant %s", out, raw)
	}
}

func TestFields_RejectsNestedValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"nested object", `{"amount":{"value":10}}`},
		{"nested array", `{"tags":["a","b"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Fields
			if err := json.Unmarshal([]byte(tt.raw), &f); err == nil {
				t.Error("expected error for nested value, got nil")
			}
		})
	}
}

func TestEvent_Serialize(t *testing.T) {
	e := &Event{
		UserID:    "user_456",
		Timestamp: "2026-08-01T10:00:00Z",
		EventType: "transaction",
	}
	e.Data = NewFields()
	e.Data.Set("amount", float64(9000))
	e.Data.Set("currency", "EUR")
	e.Data.Set("recipient", "Offshore_Account_123")

	want := "User user_456 triggered a transaction event with data: amount: 9000, currency: EUR, recipient: Offshore_Account_123"
	if got := e.Serialize(); got != want {
		t.Errorf("Serialize() =\n %q\nwant %q", got, want)
	}
}

func TestEvent_SerializeStableAcrossDecodes(t *testing.T) {
	raw := `{"user_id":"u1","timestamp":"2026-08-01T10:00:00Z","event_type":"transaction","data":{"b":1,"a":2,"c":"x"}}`

	var first, second Event
	if err := json.Unmarshal([]byte(raw), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal([]byte(raw), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if first.Serialize() != second.Serialize() {
		t.Errorf("serialization is not deterministic:\n %q\n %q", first.Serialize(), second.Serialize())
	}
}

func TestEvent_Clone(t *testing.T) {
	e := &Event{UserID: "u1", Timestamp: "2026-08-01T10:00:00Z", EventType: "transaction"}
	e.Data = NewFields()
	e.Data.Set("amount", float64(100))

	c := e.Clone()
	c.Data.Set("amount", float64(999))

	v, _ := e.Data.Get("amount")
	if v.(float64) != 100 {
		t.Error("mutating the clone changed the original")
	}
}
