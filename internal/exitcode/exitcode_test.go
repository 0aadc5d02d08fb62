package exitcode

import (
	"errors"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	base := errors.New("executable not found")

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", expected: OK},
		{name: "plain error", err: base, expected: Failure},
		{name: "usage", err: Wrap(Usage, base), expected: Usage},
		{name: "wrapped by trace", err: trace.Wrap(Wrap(Usage, base)), expected: Usage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, From(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")

	assert.NoError(t, Wrap(Usage, nil))
	err := Wrap(Usage, base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "boom", err.Error())
}
