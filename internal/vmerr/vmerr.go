// Package vmerr defines the error kinds raised across the allocator,
// fiber, and machine layers so callers can classify a failure without
// string matching.
package vmerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error conditions spec'd for the machine.
type Kind int

const (
	// InvalidAddress is raised when an address is out of the arena's
	// bounds, or a jump target lands outside a fiber's text Section.
	InvalidAddress Kind = iota
	// InsufficientMemory is raised when the allocator has no gap large
	// enough to satisfy a request.
	InsufficientMemory
	// InvalidPointer is raised when deallocate is asked to retire a
	// range that isn't live (double free).
	InvalidPointer
	// StackOverflow is raised when a fiber's stack would grow past its
	// hard cap.
	StackOverflow
	// StackUnderflow is raised when pop/peek/swap is attempted on an
	// empty (or too small) stack.
	StackUnderflow
	// InvalidRegister is raised when a register id isn't one of
	// {0..7, 100, 101}.
	InvalidRegister
	// InvalidFiberState is raised when a fiber's state byte holds a
	// value outside {Running, Halted, Blocked}.
	InvalidFiberState
	// InvalidOpcode is raised when the decoder can't map a u16 to a
	// known opcode.
	InvalidOpcode
	// InvalidFiber is raised when a Machine operation is given an
	// unknown fiber id.
	InvalidFiber
	// InvalidBytecodeDataType is raised when WriteBytecodes is given a
	// tag outside {0,1,2,3}.
	InvalidBytecodeDataType
)

func (k Kind) String() string {
	switch k {
	case InvalidAddress:
		return "InvalidAddress"
	case InsufficientMemory:
		return "InsufficientMemory"
	case InvalidPointer:
		return "InvalidPointer"
	case StackOverflow:
		return "StackOverflow"
	case StackUnderflow:
		return "StackUnderflow"
	case InvalidRegister:
		return "InvalidRegister"
	case InvalidFiberState:
		return "InvalidFiberState"
	case InvalidOpcode:
		return "InvalidOpcode"
	case InvalidFiber:
		return "InvalidFiber"
	case InvalidBytecodeDataType:
		return "InvalidBytecodeDataType"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with the fiber id and program counter active when
// the error occurred, plus whatever detail the raising site attached.
type Error struct {
	Kind    Kind
	FiberID uint64
	PC      uint64
	Detail  string
	cause   error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the underlying cause, if any, so errors.Is/As chains
// through to it.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a bare Error of the given kind.
func New(kind Kind, detail string) error {
	return errors.WithStack(&Error{Kind: kind, Detail: detail})
}

// Newf builds a bare Error of the given kind with a formatted detail.
func Newf(kind Kind, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

// WithFiber attaches fiber/PC context to an error, wrapping it if it
// isn't already a *Error.
func WithFiber(err error, fiberID, pc uint64) error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) {
		clone := *ve
		clone.FiberID = fiberID
		clone.PC = pc
		return errors.WithStack(&clone)
	}
	return errors.Wrapf(err, "fiber %d at pc %d", fiberID, pc)
}

// KindOf reports the Kind of err, and whether err is (or wraps) a
// *Error at all.
func KindOf(err error) (Kind, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return 0, false
}

// Is reports whether err is (or wraps) a *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
