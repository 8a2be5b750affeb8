package vm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

// successNamespace salts the transient slot a success sentinel lives in.
const successNamespace = "smartacct.vm.opSuccess"

// SuccessValue is the word a producer step writes to mark an operation
// successful for the remainder of the transaction.
var SuccessValue = core.Hash{core.WordLength - 1: 0x01}

// SentinelSlot derives the transient-storage slot of an operation's success
// sentinel.
func SentinelSlot(opHash core.Hash) core.Hash {
	return core.GetHash(append([]byte(successNamespace), opHash.Bytes()...))
}

// Sweep transfers the executing account's entire balance of asset to
// recipient. The Sweep event is emitted even for a zero balance. It must run
// under a borrowed frame.
func (e *Engine) Sweep(frame types.ExecutionFrame, asset, recipient core.Address) error {
	if err := requireBorrowed(frame); err != nil {
		return err
	}
	return e.sweep(frame, asset, recipient, nil)
}

// sweep moves min(balance, cap) of asset from the executing account to
// recipient. A nil cap is unlimited. No external call occurs between the
// balance read and the transfer it gates.
func (e *Engine) sweep(frame types.ExecutionFrame, asset, recipient core.Address, cap *uint256.Int) error {
	balance, err := e.assetBalance(asset, frame.Self)
	if err != nil {
		return err
	}
	amount := balance
	if cap != nil && cap.Lt(balance) {
		amount = cap.Clone()
	}
	if !amount.IsZero() {
		if err := e.assetTransfer(asset, frame.Self, recipient, amount); err != nil {
			return err
		}
	}
	e.ctx.Log(frame.Self, "Sweep",
		"asset", asset, "recipient", recipient, "amount", amount.Dec())
	return nil
}

// RefundAndSweep refunds min(balance, refundCap) of asset to
// refundRecipient and sweeps the remainder to sweepRecipient. It must run
// under a borrowed frame.
func (e *Engine) RefundAndSweep(frame types.ExecutionFrame, asset, refundRecipient core.Address,
	refundCap *uint256.Int, sweepRecipient core.Address) error {
	if err := requireBorrowed(frame); err != nil {
		return err
	}
	if refundCap == nil {
		return core.ErrInvalidArgument
	}

	balance, err := e.assetBalance(asset, frame.Self)
	if err != nil {
		return err
	}

	actualRefund := refundCap.Clone()
	if refundCap.Gt(balance) {
		// Requested-vs-actual mismatch, surfaced for auditability.
		actualRefund = balance.Clone()
		e.ctx.Log(frame.Self, "ActualRefund",
			"asset", asset, "refundRecipient", refundRecipient,
			"refundCap", refundCap.Dec(), "actualRefund", actualRefund.Dec())
	}

	if !actualRefund.IsZero() {
		if err := e.assetTransfer(asset, frame.Self, refundRecipient, actualRefund); err != nil {
			return err
		}
	}
	e.ctx.Log(frame.Self, "Refund",
		"asset", asset, "recipient", refundRecipient, "amount", actualRefund.Dec())

	remaining := new(uint256.Int).Sub(balance, actualRefund)
	if !remaining.IsZero() {
		if err := e.assetTransfer(asset, frame.Self, sweepRecipient, remaining); err != nil {
			return err
		}
	}
	e.ctx.Log(frame.Self, "Sweep",
		"asset", asset, "recipient", sweepRecipient, "amount", remaining.Dec())

	e.ctx.Log(frame.Self, "RefundAndSweep",
		"asset", asset, "refundRecipient", refundRecipient, "refundCap", refundCap.Dec(),
		"sweepRecipient", sweepRecipient, "actualRefund", actualRefund.Dec(),
		"remaining", remaining.Dec())
	return nil
}

// MarkOpSuccess is the producer step: it records the success sentinel for
// opHash in the executing account's transient storage. It must run under a
// borrowed frame.
func (e *Engine) MarkOpSuccess(frame types.ExecutionFrame, opHash core.Hash) error {
	if err := requireBorrowed(frame); err != nil {
		return err
	}
	e.ctx.TransientSet(frame.Self, SentinelSlot(opHash), SuccessValue)
	e.ctx.Log(frame.Self, "OpSuccess", "opHash", opHash)
	return nil
}

// ValidateOpHashAndSweep requires that opHash's success sentinel was set in
// the current transaction, then sweeps the asset to recipient. It must run
// under a borrowed frame.
func (e *Engine) ValidateOpHashAndSweep(frame types.ExecutionFrame, opHash core.Hash,
	asset, recipient core.Address) error {
	if err := requireBorrowed(frame); err != nil {
		return err
	}
	if e.ctx.TransientGet(frame.Self, SentinelSlot(opHash)) != SuccessValue {
		return fmt.Errorf("%w: %s", core.ErrSuccessSentinelNotSet, opHash)
	}
	return e.sweep(frame, asset, recipient, nil)
}

func (e *Engine) assetBalance(asset, account core.Address) (*uint256.Int, error) {
	if asset.IsNative() {
		return e.ctx.Balance(account), nil
	}
	return e.ctx.TokenBalance(asset, account)
}

// assetTransfer moves funds held by from. A native transfer the recipient's
// code rejects surfaces as ErrNativeTransferFailed; a token transfer failure
// surfaces the asset's own error.
func (e *Engine) assetTransfer(asset, from, to core.Address, amount *uint256.Int) error {
	if asset.IsNative() {
		if err := e.ctx.Transfer(from, to, amount); err != nil {
			return fmt.Errorf("%w: %v", core.ErrNativeTransferFailed, err)
		}
		return nil
	}
	return e.ctx.TokenTransfer(asset, from, to, amount)
}
