package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	var err error = &ValidationError{Field: "capacity", Reason: "must be positive"}

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "invalid capacity: must be positive", err.Error())

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "capacity", vErr.Field)
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, StoreError("list rooms", nil))

	cause := errors.New("connection refused")
	err := StoreError("list rooms", cause)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "list rooms")
}
