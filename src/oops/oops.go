package oops

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
	"github.com/rs/zerolog"
)

type Error struct {
	Message string
	Wrapped error
	Stack   CallStack
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

type CallStack []StackFrame

func (s CallStack) MarshalZerologArray(a *zerolog.Array) {
	for _, frame := range s {
		a.Object(frame)
	}
}

type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f StackFrame) MarshalZerologObject(e *zerolog.Event) {
	e.
		Str("file", f.File).
		Int("line", f.Line).
		Str("function", f.Function)
}

var ZerologStackMarshaler = func(err error) interface{} {
	var asOops *Error
	if errors.As(err, &asOops) {
		return asOops.Stack
	}
	return nil
}

// Trace captures the stack of the caller, minus runtime frames and this
// function itself.
func Trace() CallStack {
	trace := stack.Trace().TrimRuntime()
	if len(trace) > 0 {
		trace = trace[1:]
	}
	frames := make(CallStack, len(trace))
	for i, call := range trace {
		callFrame := call.Frame()
		frames[i] = StackFrame{
			File:     callFrame.File,
			Line:     callFrame.Line,
			Function: callFrame.Function,
		}
	}
	return frames
}

// New wraps an error with a message and the current stack. wrapped may be
// nil, in which case the message stands alone.
func New(wrapped error, format string, args ...interface{}) error {
	frames := Trace()
	if len(frames) > 0 {
		frames = frames[1:]
	}

	return &Error{
		Message: fmt.Sprintf(format, args...),
		Wrapped: wrapped,
		Stack:   frames,
	}
}
