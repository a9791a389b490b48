package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFormatsMessage(t *testing.T) {
	err := New(ErrorTypeUpstream, 404, "user %q not found", "ghost")

	assert.Equal(t, ErrorTypeUpstream, err.Type)
	assert.Equal(t, 404, err.Code)
	assert.Equal(t, `user "ghost" not found`, err.Message)
	assert.Contains(t, err.Error(), "upstream error (code 404)")
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{"client error passes through", 429, 429},
		{"server error passes through", 502, 502},
		{"zero falls back to 500", 0, 500},
		{"success status falls back to 500", 200, 500},
		{"out of range falls back to 500", 700, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(ErrorTypeUnknown, tt.code, "boom")
			assert.Equal(t, tt.want, err.StatusCode())
		})
	}
}

func TestErrorsAsUnwrapsThroughWrapping(t *testing.T) {
	typed := New(ErrorTypeNetwork, 0, "connection refused")
	wrapped := fmt.Errorf("fetching profile: %w", typed)

	var got *Error
	assert.True(t, stderrors.As(wrapped, &got))
	assert.Equal(t, ErrorTypeNetwork, got.Type)
}
