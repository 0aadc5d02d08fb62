package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromCtx(t *testing.T) {
	logger := New(&bytes.Buffer{}, false)

	assert.Equal(t, DiscardLogger, FromCtx(context.Background()))
	assert.Equal(t, logger, FromCtx(ToCtx(context.Background(), logger)))
	assert.Equal(t, DiscardLogger, FromCtx(ToCtx(context.Background(), nil)))
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	New(&buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
