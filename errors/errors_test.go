package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWrapf(t *testing.T) {
	original := New("original")
	wrapped := Wrapf(original, "wrapped: %d", 42)

	assert.Contains(t, wrapped.Error(), "wrapped: 42")
	assert.Contains(t, wrapped.Error(), "original")
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
}

func TestSentinelTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
		check    func(error) bool
	}{
		{"not found", ErrNotFound, IsNotFound},
		{"validation", ErrValidation, IsValidation},
		{"disabled", ErrDisabled, IsDisabled},
		{"execution", ErrExecution, IsExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.sentinel, "some context")
			assert.True(t, tt.check(wrapped))
			assert.False(t, tt.check(New("unrelated")))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	err := Wrap(ErrValidation, "interval below floor")

	assert.True(t, Is(err, ErrValidation))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrExecution))
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("interval %d below minimum %d", 5, 15)

	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "interval 5 below minimum 15")
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("job %s", "abc123")

	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "job abc123")
}

func TestErrorChaining(t *testing.T) {
	base := ErrExecution

	err := Wrap(base, "agent run failed")
	err = WithDetail(err, "job id: abc123")
	err = Wrap(err, "dispatch")

	assert.True(t, Is(err, base))
	details := GetAllDetails(err)
	require.Len(t, details, 1)
	assert.Equal(t, "job id: abc123", details[0])
}
