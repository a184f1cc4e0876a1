package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpad/api/pkg/validator"
)

type createWorkflowRequest struct {
	Name   string `validate:"required,min=1,max=255"`
	Slug   string `validate:"omitempty,slug"`
	Status string `validate:"omitempty,workflow_status"`
}

func TestValidator_Validate(t *testing.T) {
	v := validator.New()

	t.Run("valid request", func(t *testing.T) {
		err := v.Validate(createWorkflowRequest{
			Name:   "Order Sync",
			Slug:   "order-sync",
			Status: "draft",
		})
		assert.NoError(t, err)
	})

	t.Run("missing name", func(t *testing.T) {
		err := v.Validate(createWorkflowRequest{Slug: "order-sync"})
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		require.Len(t, verrs, 1)
		assert.Equal(t, "name", verrs[0].Field)
		assert.Equal(t, "is required", verrs[0].Message)
	})

	t.Run("invalid slug", func(t *testing.T) {
		for _, slug := range []string{"Has-Caps", "double--hyphen", "-leading", "trailing-", "spa ces"} {
			err := v.Validate(createWorkflowRequest{Name: "W", Slug: slug})
			assert.Error(t, err, "slug %q should be rejected", slug)
		}
	})

	t.Run("invalid workflow status", func(t *testing.T) {
		err := v.Validate(createWorkflowRequest{Name: "W", Status: "running"})
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs[0].Message, "draft")
	})

	t.Run("multiple errors collected", func(t *testing.T) {
		err := v.Validate(createWorkflowRequest{Slug: "BAD", Status: "bogus"})
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Len(t, verrs, 3)
	})
}

func TestValidator_LogLevel(t *testing.T) {
	v := validator.New()

	type query struct {
		MinLevel string `validate:"omitempty,log_level"`
	}

	assert.NoError(t, v.Validate(query{MinLevel: "warn"}))
	assert.NoError(t, v.Validate(query{}))
	assert.Error(t, v.Validate(query{MinLevel: "trace"}))
}

func TestValidationErrors_Error(t *testing.T) {
	verrs := validator.ValidationErrors{
		{Field: "name", Message: "is required"},
		{Field: "slug", Message: "must contain only lowercase letters, numbers, and hyphens"},
	}
	assert.Equal(t, "name: is required; slug: must contain only lowercase letters, numbers, and hyphens", verrs.Error())
	assert.Empty(t, validator.ValidationErrors{}.Error())
}
