package errorcodes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestConvError verifies formatting and matching of wrapped conversion errors.
func TestConvError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "F1: No input format plugin for format", ErrF1.Error())
	assert.Equal(t, "F1", ErrNoInputPlugin.CodeOnly())

	wrapped := fmt.Errorf("convert book.xyz: %w", ErrNoInputPlugin)
	assert.True(t, errors.Is(wrapped, ErrF1))
	assert.False(t, errors.Is(wrapped, ErrF2))

	var ce ConvError
	assert.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, "F1", ce.CodeOnly())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	e, ok := Lookup("L2")
	assert.True(t, ok)
	assert.Equal(t, ErrL2, e)

	_, ok = Lookup("99")
	assert.False(t, ok)
}
