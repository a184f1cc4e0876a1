// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/workflow"
)

// slugRegex validates slugs: lowercase letters, numbers, hyphens.
// Must start and end with alphanumeric, no consecutive hyphens.
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("slug", validateSlug)
	_ = v.RegisterValidation("workflow_status", validateWorkflowStatus)
	_ = v.RegisterValidation("execution_status", validateExecutionStatus)
	_ = v.RegisterValidation("log_level", validateLogLevel)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateSlug validates URL-safe slugs.
func validateSlug(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return slugRegex.MatchString(value)
}

// validateWorkflowStatus validates that a string is a valid workflow status.
func validateWorkflowStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return workflow.Status(value).IsValid()
}

// validateExecutionStatus validates that a string is a valid execution status.
func validateExecutionStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return execution.Status(value).IsValid()
}

// validateLogLevel validates that a string is a valid execution log level.
func validateLogLevel(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return execution.LogLevel(value).IsValid()
}

func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(e.Param(), " ", ", "))
	case "slug":
		return "must contain only lowercase letters, numbers, and hyphens"
	case "workflow_status":
		return fmt.Sprintf("must be one of: %s", formatWorkflowStatuses())
	case "execution_status":
		return fmt.Sprintf("must be one of: %s", formatExecutionStatuses())
	case "log_level":
		return "must be one of: debug, info, warn, error"
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}

func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func formatWorkflowStatuses() string {
	statuses := workflow.AllStatuses()
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	return strings.Join(strs, ", ")
}

func formatExecutionStatuses() string {
	statuses := execution.AllStatuses()
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	return strings.Join(strs, ", ")
}
