// Package api defines the caller-facing surface of the execution engine.
// This is the API between an embedding ledger and the engine; it is not used
// by dispatch targets themselves.
package api

import (
	"github.com/holiman/uint256"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

// DefaultModuleAddress is the conventional deployed identity of the engine
// logic (deterministic, well-known).
var DefaultModuleAddress = core.Address{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xac, 0xc1,
}

// Executor exposes the hydration, injection and settlement entry points.
type Executor interface {
	// HydrateAndExecute resolves a hydration program against live ledger
	// state and dispatches the mutated call batch.
	HydrateAndExecute(frame types.ExecutionFrame, batch, program []byte) ([]types.CallResult, error)

	// HydrateExecuteAndSweep runs HydrateAndExecute, then sweeps each listed
	// asset (and optionally the native balance) to sweepTarget; a zero
	// target sweeps to the immediate caller. Requires a borrowed frame.
	HydrateExecuteAndSweep(frame types.ExecutionFrame, batch, program []byte,
		sweepTarget core.Address, assets []core.Address, sweepNative bool) ([]types.CallResult, error)

	// InjectAndCall swaps a 32-byte placeholder in the prepared input for
	// the executing account's live asset balance and dispatches the call.
	InjectAndCall(frame types.ExecutionFrame, asset, target core.Address,
		input []byte, offset uint16, placeholder core.Hash) ([]byte, error)

	// InjectSweepAndCall first pulls the caller's token balance into the
	// executing account, then proceeds as InjectAndCall.
	InjectSweepAndCall(frame types.ExecutionFrame, asset, target core.Address,
		input []byte, offset uint16, placeholder core.Hash) ([]byte, error)

	// Sweep transfers the executing account's entire asset balance to
	// recipient. Requires a borrowed frame.
	Sweep(frame types.ExecutionFrame, asset, recipient core.Address) error

	// RefundAndSweep refunds up to refundCap to refundRecipient and sweeps
	// the remainder to sweepRecipient. Requires a borrowed frame.
	RefundAndSweep(frame types.ExecutionFrame, asset, refundRecipient core.Address,
		refundCap *uint256.Int, sweepRecipient core.Address) error

	// MarkOpSuccess records the success sentinel for opHash in the current
	// transaction. Requires a borrowed frame.
	MarkOpSuccess(frame types.ExecutionFrame, opHash core.Hash) error

	// ValidateOpHashAndSweep sweeps only if opHash's success sentinel was
	// set in the current transaction. Requires a borrowed frame.
	ValidateOpHashAndSweep(frame types.ExecutionFrame, opHash core.Hash,
		asset, recipient core.Address) error
}
