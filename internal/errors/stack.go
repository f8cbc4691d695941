package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 32

// Stack is a captured call stack
type Stack []uintptr

// Frame is a resolved stack frame
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// String formats the frame as "function file:line"
func (f Frame) String() string {
	return fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line)
}

func callers(skip int) Stack {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	stack := make(Stack, n)
	copy(stack, pcs[:n])
	return stack
}

// Frames resolves the stack into frames
func (s Stack) Frames() []Frame {
	if len(s) == 0 {
		return nil
	}

	frames := make([]Frame, 0, len(s))
	iter := runtime.CallersFrames(s)
	for {
		frame, more := iter.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more {
			break
		}
	}
	return frames
}

// String renders one frame per line
func (s Stack) String() string {
	var b strings.Builder
	for _, f := range s.Frames() {
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// StackOf returns the stack of the first Error in err's chain that has one
func StackOf(err error) Stack {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return nil
		}
		if len(e.stack) > 0 {
			return e.stack
		}
		err = e.Cause
	}
	return nil
}
