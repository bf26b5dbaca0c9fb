package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrNetwork", ErrNetwork},
		{"ErrParse", ErrParse},
		{"ErrInstall", ErrInstall},
		{"ErrUninstall", ErrUninstall},
		{"ErrValidation", ErrValidation},
		{"ErrQueue", ErrQueue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestFailure_MatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NetworkError("fetch popular", cause)

	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrParse))
	assert.Equal(t, "network error: fetch popular: connection reset", err.Error())
}

func TestFailure_WrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("fetch detail: %w", ParseError("no detail container", nil))

	assert.True(t, errors.Is(err, ErrParse))

	var f *Failure
	assert.True(t, errors.As(err, &f))
	assert.Equal(t, "no detail container", f.Message)
}

func TestQueueError_Formats(t *testing.T) {
	err := QueueError("chapter %d already queued", 7)

	assert.True(t, errors.Is(err, ErrQueue))
	assert.Equal(t, "queue error: chapter 7 already queued", err.Error())
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{"failure", ValidationError("bad script", nil), "bad script"},
		{"failure with cause", NetworkError("GET /x", errors.New("timeout")), "GET /x: timeout"},
		{"wrapped failure", fmt.Errorf("install: %w", ValidationError("no jar", nil)), "no jar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureMessage(tt.err))
		})
	}
}
