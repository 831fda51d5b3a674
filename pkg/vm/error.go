// Package vm provides error handling for the bytecode virtual machine.
package vm

import (
	"errors"
	"fmt"

	"github.com/zurustar/awvm/pkg/resource"
)

// ErrorType represents the type of runtime diagnostic.
type ErrorType string

const (
	// Fatal-class diagnostics. The machine still keeps running; the class
	// only marks state that is probably no longer trustworthy.
	ErrorStackOverflow ErrorType = "STACK_OVERFLOW"

	// Non-fatal diagnostics - the operation becomes a no-op
	ErrorStackFull           ErrorType = "STACK_FULL"
	ErrorStackUnderflow      ErrorType = "STACK_UNDERFLOW"
	ErrorInvalidCondition    ErrorType = "INVALID_CONDITION"
	ErrorInvalidThreadOp     ErrorType = "INVALID_THREAD_OPERATION"
	ErrorUnimplementedOpcode ErrorType = "UNIMPLEMENTED_OPCODE"
	ErrorUnknownResource     ErrorType = "UNKNOWN_RESOURCE"
	ErrorCorruptResource     ErrorType = "CORRUPT_RESOURCE"
	ErrorInvalidPart         ErrorType = "INVALID_PART"
)

// RuntimeError is a diagnostic raised while executing bytecode.
type RuntimeError struct {
	Type    ErrorType
	Message string
	PC      int // PC of the faulting instruction, -1 if unknown
	Thread  int // thread index, -1 if unknown
	Err     error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Thread >= 0 && e.PC >= 0 {
		msg += fmt.Sprintf(" at thread %d pc 0x%04X", e.Thread, e.PC)
	} else if e.PC >= 0 {
		msg += fmt.Sprintf(" at pc 0x%04X", e.PC)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsFatal returns true for fatal-class diagnostics.
func (e *RuntimeError) IsFatal() bool {
	return e.Type == ErrorStackOverflow
}

// NewRuntimeError creates a new RuntimeError without location information.
func NewRuntimeError(errType ErrorType, message string) *RuntimeError {
	return &RuntimeError{
		Type:    errType,
		Message: message,
		PC:      -1,
		Thread:  -1,
	}
}

// DiagnosticHandler receives every diagnostic the VM raises.
type DiagnosticHandler func(*RuntimeError)

// Error helper functions for common diagnostics

// NewStackFullError is raised by a push on a full stack.
func NewStackFullError() *RuntimeError {
	return NewRuntimeError(ErrorStackFull, fmt.Sprintf("push on full stack (depth %d)", StackDepth))
}

// NewStackOverflowError is raised by the first pop after an overflow.
func NewStackOverflowError() *RuntimeError {
	return NewRuntimeError(ErrorStackOverflow, "pop after stack overflow")
}

// NewStackUnderflowError is raised by a pop on an empty stack.
func NewStackUnderflowError() *RuntimeError {
	return NewRuntimeError(ErrorStackUnderflow, "pop on empty stack")
}

// NewInvalidConditionError is raised by a conditional jump with predicate 6 or 7.
func NewInvalidConditionError(sub byte) *RuntimeError {
	return NewRuntimeError(ErrorInvalidCondition, fmt.Sprintf("invalid condition %d (sub-opcode 0x%02X)", sub&7, sub))
}

// NewUnimplementedOpcodeError is raised by an opcode byte outside the instruction set.
func NewUnimplementedOpcodeError(op byte) *RuntimeError {
	return NewRuntimeError(ErrorUnimplementedOpcode, fmt.Sprintf("unimplemented opcode 0x%02X", op))
}

// NewResourceError classifies an error returned by a collaborator.
func NewResourceError(op string, err error) *RuntimeError {
	t := ErrorCorruptResource
	if errors.Is(err, resource.ErrUnknownResource) {
		t = ErrorUnknownResource
	}
	e := NewRuntimeError(t, op+" failed")
	e.Err = err
	return e
}
