package vm

import (
	"errors"
	"fmt"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

// Dispatch executes a hydrated batch in order. Each call runs under its own
// error policy; a fallback-only call is skipped unless the previous call
// failed under PolicyIgnore, and the flag is consumed whether or not the
// next call uses it.
//
// Context-preserving sub-calls are only permitted when the current frame is
// itself borrowed; otherwise the whole batch aborts before any call runs.
func Dispatch(ctx types.LedgerContext, frame types.ExecutionFrame, calls []CallDescriptor) ([]types.CallResult, error) {
	// Nested-delegation gate, checked before any asset movement.
	if !frame.Borrowed() {
		for i := range calls {
			if calls[i].ContextPreserving {
				return nil, fmt.Errorf("%w: call %d", core.ErrDelegateCallNotAllowed, i)
			}
		}
	}

	results := make([]types.CallResult, 0, len(calls))
	fallbackArmed := false
	for i := range calls {
		call := &calls[i]

		armed := fallbackArmed
		fallbackArmed = false
		if call.FallbackOnly && !armed {
			// Skipped call, recorded as a no-op.
			results = append(results, types.CallResult{Success: true})
			continue
		}

		self := call.Target
		if call.ContextPreserving {
			self = frame.Self
		}
		ret, err := ctx.Call(types.HandlerCall{
			Caller: frame.Self,
			Target: call.Target,
			Self:   self,
			Origin: frame.Origin,
			Value:  call.Value,
			Input:  call.Input,
			Budget: budgetOf(call),
		})
		if err == nil {
			results = append(results, types.CallResult{Success: true, ReturnData: ret})
			continue
		}

		if !errors.Is(err, core.ErrInsufficientBudget) {
			err = &SubCallError{Index: i, ReturnData: ret, Err: err}
		}
		results = append(results, types.CallResult{Success: false, ReturnData: ret})

		switch call.Policy {
		case PolicyRevert:
			return nil, err
		case PolicyAbort:
			return results, nil
		case PolicyIgnore:
			fallbackArmed = true
		case PolicyContinue:
			// Proceed without flag propagation.
		}
	}
	return results, nil
}

// budgetOf maps a descriptor's 256-bit budget cap to the dispatch budget.
// Zero means unlimited; a cap beyond the 64-bit range is treated as
// unlimited as well.
func budgetOf(call *CallDescriptor) uint64 {
	if call.BudgetCap == nil || call.BudgetCap.IsZero() || !call.BudgetCap.IsUint64() {
		return 0
	}
	return call.BudgetCap.Uint64()
}
