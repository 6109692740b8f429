package schema

import (
	"strings"
	"testing"
)

func validEvent() *Event {
	e := &Event{
		UserID:    "user_123",
		Timestamp: "2026-08-01T10:00:00Z",
		EventType: "transaction",
	}
	e.Data = NewFields()
	e.Data.Set("amount", float64(50))
	return e
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		mutate  func(*Event)
		wantErr bool
	}{
		{
			name:    "valid event",
			mutate:  func(e *Event) {},
			wantErr: false,
		},
		{
			name:    "missing user id",
			mutate:  func(e *Event) { e.UserID = "" },
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			mutate:  func(e *Event) { e.Timestamp = "" },
			wantErr: true,
		},
		{
			name:    "garbage timestamp",
			mutate:  func(e *Event) { e.Timestamp = "yesterday" },
			wantErr: true,
		},
		{
			name:    "python style timestamp accepted",
			mutate:  func(e *Event) { e.Timestamp = "2026-08-01T10:00:00.123456" },
			wantErr: false,
		},
		{
			name:    "missing event type",
			mutate:  func(e *Event) { e.EventType = "" },
			wantErr: true,
		},
		{
			name:    "uppercase event type rejected",
			mutate:  func(e *Event) { e.EventType = "Transaction" },
			wantErr: true,
		},
		{
			name:    "underscored event type accepted",
			mutate:  func(e *Event) { e.EventType = "loan_application" },
			wantErr: false,
		},
		{
			name:    "empty data accepted",
			mutate:  func(e *Event) { e.Data = NewFields() },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(e)
			err := v.Validate(e)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidator_MaxDataFields(t *testing.T) {
	v := NewValidatorWithConfig(ValidatorConfig{MaxDataFields: 2})

	e := validEvent()
	e.Data = NewFields()
	e.Data.Set("a", float64(1))
	e.Data.Set("b", float64(2))
	e.Data.Set("c", float64(3))

	err := v.Validate(e)
	if err == nil {
		t.Fatal("expected error for oversized data")
	}
	if !strings.Contains(err.Error(), "max 2") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestValidateEventType(t *testing.T) {
	valid := []string{"transaction", "loan_application", "data_record", "system_config"}
	for _, s := range valid {
		if !ValidateEventType(s) {
			t.Errorf("ValidateEventType(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "Transaction", "loan-application", "1config", "a.b"}
	for _, s := range invalid {
		if ValidateEventType(s) {
			t.Errorf("ValidateEventType(%q) = true, want false", s)
		}
	}
}
