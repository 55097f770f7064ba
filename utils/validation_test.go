package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type provisionFixture struct {
	Email     string `validate:"required,email"`
	FirstName string `validate:"required,max=5"`
	Role      string `validate:"omitempty,oneof=Teacher Student"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(provisionFixture{Email: "alice@upb.edu", FirstName: "Alice", Role: "Teacher"})
		assert.NoError(t, err)
	})

	t.Run("collects field messages", func(t *testing.T) {
		err := ValidateStruct(provisionFixture{Email: "not-an-email", FirstName: "Alexandra", Role: "Janitor"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "Email must be a valid email", fields["Email"])
		assert.Equal(t, "FirstName must be at most 5", fields["FirstName"])
		assert.Equal(t, "Role must be one of: Teacher Student", fields["Role"])
	})

	t.Run("required fields", func(t *testing.T) {
		err := ValidateStruct(provisionFixture{})
		fields := GetValidationFields(err)
		assert.Equal(t, "Email is required", fields["Email"])
		assert.Equal(t, "FirstName is required", fields["FirstName"])
		assert.NotContains(t, fields, "Role")
	})
}

func TestGetValidationFieldsOnOtherErrors(t *testing.T) {
	assert.Nil(t, GetValidationFields(errors.New("boom")))
	assert.False(t, IsValidationError(errors.New("boom")))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@upb.edu"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("alice"))
}
