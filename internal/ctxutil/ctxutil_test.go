package ctxutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))

	// Inner values shadow outer ones.
	assert.Equal(t, "req-43", RequestIDFromContext(WithRequestID(ctx, "req-43")))
}
