package errors_test

import (
	"fmt"
	"io"
	"testing"

	"codeberg.org/mutker/wvasim/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid log level", f.New(errors.ErrInvalidLogLevel).Error())
	assert.Equal(t, "Invalid log level: loud", f.WithData(errors.ErrInvalidLogLevel, "loud").Error())
	assert.Equal(t, "Failed to read configuration: EOF", f.Wrap(errors.ErrReadConfig, io.EOF).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "some_unknown_code", f.New(errors.ErrorCode("some_unknown_code")).Error())
}

func TestCodeLookup(t *testing.T) {
	f := errors.New()
	inner := f.Wrap(errors.ErrTimeout, io.EOF)
	outer := fmt.Errorf("serving: %w", f.Wrap(errors.ErrServe, inner))

	assert.Equal(t, errors.ErrServe, errors.CodeOf(outer))
	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(outer, errors.ErrInvalidConfig))
	assert.True(t, errors.Is(outer, io.EOF))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(io.EOF))
}

func TestIsMatchesByCode(t *testing.T) {
	f := errors.New()
	sentinel := f.New(errors.ErrAlreadyRunning)

	assert.True(t, errors.Is(f.WithData(errors.ErrAlreadyRunning, 42), sentinel))
	assert.False(t, errors.Is(f.New(errors.ErrInternal), sentinel))
}
