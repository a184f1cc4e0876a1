// Package form defines hosted form entities: field schemas that feed
// workflow trigger payloads.
package form

import (
	"time"

	"github.com/netpad/api/pkg/domain/shared"
)

// Status represents the lifecycle status of a form.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// FieldType identifies the input widget for a form field.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeNumber   FieldType = "number"
	FieldTypeEmail    FieldType = "email"
	FieldTypeSelect   FieldType = "select"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeDate     FieldType = "date"
)

// Field is a single form field definition. Options applies to select fields.
type Field struct {
	Key      string   `json:"key"`
	Type     FieldType `json:"type"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// Form represents a hosted form whose submissions trigger workflows.
type Form struct {
	ID             shared.ID
	OrganizationID shared.ID
	WorkflowID     *shared.ID
	DataSourceID   *shared.ID
	Name           string
	Slug           string
	Status         Status
	Version        int
	Fields         []Field
	CreatedBy      *shared.ID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New creates a new draft form.
func New(orgID shared.ID, name, slug string) (*Form, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION", "name is required", shared.ErrValidation)
	}
	if orgID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "organization_id is required", shared.ErrValidation)
	}

	now := time.Now()
	return &Form{
		ID:             shared.NewID(),
		OrganizationID: orgID,
		Name:           name,
		Slug:           slug,
		Status:         StatusDraft,
		Version:        1,
		Fields:         []Field{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// SetFields replaces the field schema and bumps the version.
func (f *Form) SetFields(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if field.Key == "" {
			return shared.NewDomainError("VALIDATION", "field key is required", shared.ErrValidation)
		}
		if seen[field.Key] {
			return shared.NewDomainError("VALIDATION", "duplicate field key: "+field.Key, shared.ErrValidation)
		}
		seen[field.Key] = true
	}
	f.Fields = fields
	f.Version++
	f.UpdatedAt = time.Now()
	return nil
}

// Publish makes the form live. A form needs at least one field to publish.
func (f *Form) Publish() error {
	if f.Status == StatusArchived {
		return shared.NewDomainError("INVALID_TRANSITION", "archived forms cannot be published", shared.ErrValidation)
	}
	if len(f.Fields) == 0 {
		return shared.NewDomainError("EMPTY_FORM", "form must contain at least one field", shared.ErrValidation)
	}
	f.Status = StatusPublished
	f.UpdatedAt = time.Now()
	return nil
}

// Archive retires the form.
func (f *Form) Archive() {
	f.Status = StatusArchived
	f.UpdatedAt = time.Now()
}
