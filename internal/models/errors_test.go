package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("amount", "must be a number")
	assert.Equal(t, "amount: must be a number", err.Error())
	assert.Equal(t, "name is required", (&ValidationError{Msg: "name is required"}).Error())

	wrapped := fmt.Errorf("create expense: %w", err)
	assert.True(t, IsValidationError(wrapped))
	assert.False(t, IsValidationError(ErrNotFound))
	assert.False(t, IsValidationError(nil))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
}
