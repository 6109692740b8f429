package schema

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// eventTypePattern defines the valid format for event type strings.
// Types must be lowercase and use underscores as separators.
// Examples: "transaction", "loan_application", "system_config"
var eventTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validator checks events against the canonical schema before scoring.
// Validation failures are the only errors surfaced to API callers.
type Validator struct {
	validate *validator.Validate
	maxData  int
}

// ValidatorConfig holds configuration for the validator.
type ValidatorConfig struct {
	MaxDataFields int
}

// DefaultValidatorConfig returns the default validator configuration.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{MaxDataFields: 64}
}

// NewValidator creates a new Validator with default configuration.
func NewValidator() *Validator {
	return NewValidatorWithConfig(DefaultValidatorConfig())
}

// NewValidatorWithConfig creates a new Validator with the specified configuration.
func NewValidatorWithConfig(cfg ValidatorConfig) *Validator {
	v := validator.New()

	v.RegisterValidation("event_type_format", func(fl validator.FieldLevel) bool {
		return eventTypePattern.MatchString(fl.Field().String())
	})

	return &Validator{
		validate: v,
		maxData:  cfg.MaxDataFields,
	}
}

// Validate validates an event against the canonical schema.
func (v *Validator) Validate(event *Event) error {
	if err := v.validate.Struct(event); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if event.Data.Len() > v.maxData {
		return fmt.Errorf("data has %d fields (max %d)", event.Data.Len(), v.maxData)
	}

	// Timestamps are carried as strings and never compared for monotonicity,
	// but a value that does not parse at all is rejected up front.
	if _, err := time.Parse(time.RFC3339, event.Timestamp); err != nil {
		if _, err := time.Parse("2006-01-02T15:04:05.999999", event.Timestamp); err != nil {
			return fmt.Errorf("timestamp %q is not ISO-8601", event.Timestamp)
		}
	}

	return nil
}

// ValidateEventType checks if an event type string matches the required format.
func ValidateEventType(eventType string) bool {
	return eventTypePattern.MatchString(eventType)
}
