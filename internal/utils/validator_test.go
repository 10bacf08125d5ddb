package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"  user.name+tag@mail.example.org ", true},
		{"userexample.com", false},
		{"user@example", false},
		{"@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateEmail(tt.email))
		})
	}
}

func TestCheckPassword(t *testing.T) {
	assert.NoError(t, CheckPassword("secret"))
	assert.Error(t, CheckPassword("short"))
	assert.Error(t, CheckPassword(""))
	assert.Error(t, CheckPassword("ñññ"), "six bytes but three characters")
	assert.NoError(t, CheckPassword("ññññññ"))
}

func TestCheckDisplayName(t *testing.T) {
	assert.NoError(t, CheckDisplayName("Al"))
	assert.NoError(t, CheckDisplayName("  Ana  "))

	err := CheckDisplayName("   ")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "display_name", verr.Field)
	assert.Equal(t, "display name must not be empty", verr.Error())

	assert.Error(t, CheckDisplayName(" A "))
}

func TestCheckEmail(t *testing.T) {
	assert.NoError(t, CheckEmail("a@b.co"))

	var verr *ValidationError
	assert.ErrorAs(t, CheckEmail(""), &verr)
	assert.Equal(t, "email is required", verr.Message)
	assert.ErrorAs(t, CheckEmail("nope"), &verr)
	assert.Equal(t, "email format is not valid", verr.Message)
}

func TestSanitizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", SanitizeEmail("  User@Example.COM "))
}
