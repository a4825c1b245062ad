package notifier

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sthembisoo/airbrake-notifier/types"
)

func failingQuery() error {
	return pkgerrors.New("no rows")
}

func hasMethodSuffix(frames []types.StackFrame, suffix string) bool {
	for _, f := range frames {
		if strings.HasSuffix(f.MethodName, suffix) {
			return true
		}
	}
	return false
}

func TestNewExceptionInfoCapturesCaller(t *testing.T) {
	exc := NewExceptionInfo(errors.New("plain"))

	require.NotEmpty(t, exc.Frames)
	last := exc.Frames[len(exc.Frames)-1]
	assert.True(t, strings.HasSuffix(last.MethodName, ".TestNewExceptionInfoCapturesCaller"), last.MethodName)
	assert.True(t, strings.HasSuffix(last.FileName, "capture_test.go"), last.FileName)
	assert.Positive(t, last.LineNumber)
	assert.Equal(t, "errorString", exc.Kind)
	assert.False(t, hasMethodSuffix(exc.Frames, ".NewExceptionInfo"))
}

func TestNewExceptionInfoUsesErrorStack(t *testing.T) {
	err := fmt.Errorf("loading user: %w", failingQuery())
	exc := NewExceptionInfo(err)

	require.NotEmpty(t, exc.Frames)
	last := exc.Frames[len(exc.Frames)-1]
	assert.True(t, strings.HasSuffix(last.MethodName, ".failingQuery"), last.MethodName)
	assert.Equal(t, err, exc.Err)
}

func TestFromPanic(t *testing.T) {
	var exc types.ExceptionInfo
	func() {
		defer func() {
			exc = FromPanic(recover())
		}()
		panic("kaboom")
	}()

	assert.Equal(t, "panic", exc.Kind)
	assert.Equal(t, "kaboom", errorMessage(exc.Err))
	assert.Equal(t, "string", errorClass(exc.Err))
	assert.True(t, hasMethodSuffix(exc.Frames, ".TestFromPanic"))
}

func TestFromPanicKeepsErrors(t *testing.T) {
	cause := errors.New("wrapped")
	exc := FromPanic(cause)

	assert.Same(t, cause, exc.Err)
	assert.NotEmpty(t, exc.Frames)
}
