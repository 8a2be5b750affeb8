package vm

import (
	"fmt"

	"github.com/smartacct/vm/core"
)

// SubCallError reports the failure of one dispatched sub-call, carrying the
// call index and the sub-call's raw failure payload.
type SubCallError struct {
	Index      int
	ReturnData []byte
	Err        error
}

func (e *SubCallError) Error() string {
	return fmt.Sprintf("%v: call %d: %v", core.ErrSubCallReverted, e.Index, e.Err)
}

func (e *SubCallError) Unwrap() error {
	return e.Err
}

func (e *SubCallError) Is(target error) bool {
	return target == core.ErrSubCallReverted
}

// TargetCallError wraps the failure of the single-slot injector's target
// call, preserving the target's raw failure payload.
type TargetCallError struct {
	ReturnData []byte
	Err        error
}

func (e *TargetCallError) Error() string {
	return fmt.Sprintf("%v: %v", core.ErrTargetCallFailed, e.Err)
}

func (e *TargetCallError) Unwrap() error {
	return e.Err
}

func (e *TargetCallError) Is(target error) bool {
	return target == core.ErrTargetCallFailed
}
