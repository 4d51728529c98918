// Package validation validates Foundry request payloads before they reach
// the engine. It uses go-playground/validator for struct-level constraints.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"evalgo.org/foundry/models"
)

// Validator checks request payloads against their struct constraints.
type Validator struct {
	structValidator *validator.Validate
}

// ValidationError is a single field-level validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult reports whether a payload passed and the errors found.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// New creates a ready-to-use validator.
func New() *Validator {
	return &Validator{structValidator: validator.New()}
}

// ValidateContainerRequest checks a container-create payload: coordinates
// must be fully specified.
func (v *Validator) ValidateContainerRequest(resource *models.ContainerResource) ValidationResult {
	return v.validateStruct(resource)
}

// ValidateReleaseID checks upgrade coordinates.
func (v *Validator) ValidateReleaseID(releaseID models.ReleaseID) ValidationResult {
	return v.validateStruct(releaseID)
}

func (v *Validator) validateStruct(payload any) ValidationResult {
	err := v.structValidator.Struct(payload)
	if err == nil {
		return ValidationResult{Valid: true}
	}

	result := ValidationResult{Valid: false}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{Field: "payload", Message: err.Error()})
		return result
	}
	for _, fieldErr := range validationErrors {
		result.Errors = append(result.Errors, ValidationError{
			Field:   strings.ToLower(fieldErr.Field()),
			Message: messageForTag(fieldErr),
		})
	}
	return result
}

func messageForTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}
