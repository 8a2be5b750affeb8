package core

import (
	"errors"
)

// Errors returned by the execution engine. Format and precondition failures
// always abort the enclosing operation before any asset movement.
var (
	ErrInvalidArgument = errors.New("invalid argument")

	// Format errors.
	ErrTruncatedBatch          = errors.New("truncated call batch")
	ErrTruncatedProgram        = errors.New("truncated hydration program")
	ErrUnknownDataKind         = errors.New("unknown data kind")
	ErrUnknownValueSource      = errors.New("unknown value source")
	ErrOffsetOutOfBounds       = errors.New("write offset out of bounds")
	ErrAmountOffsetOutOfBounds = errors.New("amount offset out of bounds")
	ErrCallIndexOutOfRange     = errors.New("call index out of range")
	ErrPlaceholderMismatch     = errors.New("placeholder mismatch")

	// Precondition errors.
	ErrNoValueAvailable       = errors.New("no value available")
	ErrSuccessSentinelNotSet  = errors.New("success sentinel not set")
	ErrNotDelegateCall        = errors.New("not a delegate call")
	ErrDelegateCallNotAllowed = errors.New("delegate call not allowed")

	// Sub-call errors.
	ErrInsufficientBudget = errors.New("insufficient computational budget")
	ErrSubCallReverted    = errors.New("sub-call reverted")
	ErrTargetCallFailed   = errors.New("target call failed")

	// Asset errors.
	ErrNativeTransferFailed  = errors.New("native transfer failed")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownAsset          = errors.New("unknown asset")
)
