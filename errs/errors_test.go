package errs

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindClassification(t *testing.T) {
	err := InvalidArgument("k must be at least %d", 2)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Contains(t, err.Error(), "k must be at least 2")

	assert.True(t, errors.Is(MemoryLimit("too big"), ErrMemoryLimit))
	assert.True(t, errors.Is(InvalidState("sealed"), ErrInvalidState))
	assert.True(t, errors.Is(Internal("oops"), ErrInternal))
}

func TestWrappedCauseSurvives(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	err := IO(cause, "read header of %s", "runs/r0.b")
	require.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "the host cause must stay reachable")
	assert.Contains(t, err.Error(), "runs/r0.b")

	err = Serialization(cause, "decode record")
	assert.True(t, errors.Is(err, ErrSerialization))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestNilCause(t *testing.T) {
	err := IO(nil, "no stored sequence %q", "missing")
	assert.True(t, errors.Is(err, ErrIO))
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestKindsAreDistinct(t *testing.T) {
	kinds := []error{
		ErrInvalidArgument, ErrOutputUnderTempNamespace, ErrIO,
		ErrSerialization, ErrMemoryLimit, ErrInvalidState, ErrInternal,
	}
	for i, a := range kinds {
		for j, b := range kinds {
			if i != j {
				assert.False(t, errors.Is(a, b))
			}
		}
	}
}
