package notifier

import (
	"errors"
	"fmt"
	"runtime"
	"slices"

	pkgerrors "github.com/pkg/errors"
	"github.com/sthembisoo/airbrake-notifier/types"
)

const maxFrames = 64

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// PanicError wraps a recovered panic value that is not an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprint(e.Value)
}

// Class names the type of the panic value rather than PanicError.
func (e *PanicError) Class() string {
	if e.Value == nil {
		return "nil"
	}
	return typeName(e.Value)
}

// NewExceptionInfo snapshots err. The backtrace comes from the deepest
// github.com/pkg/errors stack trace in the chain; when there is none it is
// captured from the caller of NewExceptionInfo.
func NewExceptionInfo(err error) types.ExceptionInfo {
	frames := framesFromError(err)
	if frames == nil {
		frames = captureFrames(1)
	}
	return types.ExceptionInfo{
		Kind:   errorClass(err),
		Err:    err,
		Frames: frames,
	}
}

// FromPanic snapshots a value returned by recover. Call it from the
// deferred function so the panicking frames are still on the stack.
func FromPanic(recovered any) types.ExceptionInfo {
	err, ok := recovered.(error)
	if !ok {
		err = &PanicError{Value: recovered}
	}
	frames := framesFromError(err)
	if frames == nil {
		frames = captureFrames(1)
	}
	return types.ExceptionInfo{
		Kind:   "panic",
		Err:    err,
		Frames: frames,
	}
}

// framesFromError returns the frames of the stack trace closest to the
// origin of err, innermost last.
func framesFromError(err error) []types.StackFrame {
	var trace pkgerrors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			trace = st.StackTrace()
		}
	}
	if len(trace) == 0 {
		return nil
	}

	pcs := make([]uintptr, len(trace))
	for i, f := range trace {
		pcs[i] = uintptr(f)
	}
	return resolveFrames(pcs)
}

// captureFrames records the stack of the current goroutine starting at the
// caller of the function that calls captureFrames, skipping skip-1 more.
func captureFrames(skip int) []types.StackFrame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	return resolveFrames(pcs[:n])
}

func resolveFrames(pcs []uintptr) []types.StackFrame {
	var frames []types.StackFrame
	iter := runtime.CallersFrames(pcs)
	for {
		frame, more := iter.Next()
		if frame.Function != "" || frame.File != "" {
			frames = append(frames, types.StackFrame{
				FileName:   frame.File,
				LineNumber: frame.Line,
				MethodName: frame.Function,
			})
		}
		if !more {
			break
		}
	}
	// runtime reports the innermost frame first
	slices.Reverse(frames)
	return frames
}
