package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	LoginKey string `json:"login_key" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(sample{LoginKey: "nope", Password: "short"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := ve.Fields()
	assert.Equal(t, "must be a valid email address", fields["login_key"])
	assert.Equal(t, "must be at least 8 characters", fields["password"])
	assert.Contains(t, ve.Error(), "field 'login_key'")
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(sample{LoginKey: "a@example.com", Password: "longenough1"}))
}
