package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	assert.ErrorIs(t, NotFound("match", 4), ErrNotFound)
	assert.ErrorIs(t, Conflict("entry %d already matched", 3), ErrConflict)
	assert.ErrorIs(t, InvalidTransition("cannot close"), ErrInvalidTransition)
	assert.EqualError(t, NotFound("match", 4), "match 4: not found")
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("creating entry: %w", &ValidationError{Fields: []FieldError{
		{Field: "amount", Message: "must not be zero"},
		{Field: "transactionDate", Message: "is required"},
	}})

	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Len(t, Fields(err), 2)
	assert.Contains(t, err.Error(), "amount: must not be zero; transactionDate: is required")
	assert.Nil(t, Fields(ErrConflict))
}
