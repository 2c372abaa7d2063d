package rpcerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_CodeAndRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind      Kind
		code      int
		retryable bool
	}{
		{ParseError, -32700, false},
		{InvalidRequest, -32600, false},
		{MethodNotFound, -32601, false},
		{InvalidParams, -32602, false},
		{InvalidArguments, -32602, false},
		{InvalidCredential, -32001, false},
		{Expired, -32001, false},
		{ToolNotFound, -32004, false},
		{Network, -32003, true},
		{Timeout, -32003, true},
		{RateLimited, -32003, true},
		{ServerError, -32003, true},
		{ClientError, -32003, false},
		{InternalError, -32603, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.code, tt.kind.Code())
			assert.Equal(t, tt.retryable, tt.kind.Retryable())
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	wrapped := fmt.Errorf("calling backend: %w", Wrap(RateLimited, base, "throttled"))

	assert.Equal(t, RateLimited, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, Timeout, KindOf(fmt.Errorf("wait: %w", context.DeadlineExceeded)))
	assert.Equal(t, InternalError, KindOf(base))
	assert.True(t, Is(wrapped, RateLimited))
	assert.False(t, Is(nil, InternalError))
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := New(ToolNotFound, "tool %q not found", "get_pipeline")
	assert.Equal(t, `ToolNotFound: tool "get_pipeline" not found`, err.Error())
	assert.Equal(t, CodeToolNotFound, err.Code())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
