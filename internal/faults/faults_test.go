package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFault_Error_Formatting(t *testing.T) {
	f := Validation("bad input %d", 7)
	assert.Equal(t, "VALIDATION: bad input 7", f.Error())

	f = NotFound("account", "record missing")
	assert.Equal(t, "NOT_FOUND: record missing (entity=account)", f.Error())

	f = Uniqueness("contact", []string{"firstname", "lastname"})
	assert.Contains(t, f.Error(), "entity=contact")
	assert.Contains(t, f.Error(), "firstname,lastname")
	assert.Contains(t, f.Message, "[firstname, lastname]")
}

func TestIsHelpers(t *testing.T) {
	cases := []struct {
		err   error
		check func(error) bool
	}{
		{Validation("x"), IsValidation},
		{NotFound("account", "x"), IsNotFound},
		{Uniqueness("account", []string{"a"}), IsUniqueness},
		{TypeMismatch("x"), IsTypeMismatch},
		{Range("x"), IsRange},
		{Concurrency("account", 1, 2), IsConcurrency},
	}
	for _, tc := range cases {
		assert.True(t, tc.check(tc.err))
		assert.False(t, tc.check(errors.New("plain")))
	}

	// One category never satisfies another's helper.
	assert.False(t, IsNotFound(Validation("x")))
}

func TestIsHelpers_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("seed record 3: %w", Uniqueness("contact", []string{"email"}))
	assert.True(t, IsUniqueness(wrapped))
}

func TestConcurrency_NamesVersions(t *testing.T) {
	err := Concurrency("account", 4, 9)
	assert.Contains(t, err.Error(), "4")
	assert.Contains(t, err.Error(), "9")
}
