package vm

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

// InjectAndCall is the single-slot balance injector: it swaps the known
// 32-byte placeholder at offset in input for the executing account's live
// balance of asset, then dispatches the prepared call to target. Unlike the
// general interpreter it requires the bytes being replaced to equal the
// declared placeholder.
//
// For the native asset the sampled balance is also forwarded as the call's
// value; for a token asset the call carries no value, the funds having been
// moved to the executing account beforehand.
func (e *Engine) InjectAndCall(frame types.ExecutionFrame, asset, target core.Address,
	input []byte, offset uint16, placeholder core.Hash) ([]byte, error) {
	balance, err := e.assetBalance(asset, frame.Self)
	if err != nil {
		return nil, err
	}
	if balance.IsZero() {
		return nil, fmt.Errorf("%w: asset %s", core.ErrNoValueAvailable, asset)
	}

	end := int(offset) + core.WordLength
	if end > len(input) {
		return nil, fmt.Errorf("%w: offset %d buffer %d",
			core.ErrAmountOffsetOutOfBounds, offset, len(input))
	}
	if !bytes.Equal(input[offset:end], placeholder.Bytes()) {
		return nil, fmt.Errorf("%w: at offset %d", core.ErrPlaceholderMismatch, offset)
	}

	word := balance.Bytes32()
	copy(input[offset:], word[:])

	value := uint256.NewInt(0)
	if asset.IsNative() {
		value = balance
	}
	ret, err := e.ctx.Call(types.HandlerCall{
		Caller: frame.Self,
		Target: target,
		Self:   target,
		Origin: frame.Origin,
		Value:  value,
		Input:  input,
	})
	if err != nil {
		return nil, &TargetCallError{ReturnData: ret, Err: err}
	}

	e.ctx.Log(frame.Self, "BalanceInjected",
		"asset", asset, "target", target, "placeholder", placeholder,
		"amount", balance.Dec(), "offset", offset, "success", true, "result", ret)
	return ret, nil
}

// InjectSweepAndCall first pulls the immediate caller's entire balance of a
// token asset into the executing account (via the caller's allowance), then
// proceeds as InjectAndCall. For the native asset there is nothing to pull:
// the value arrives with the invocation itself.
func (e *Engine) InjectSweepAndCall(frame types.ExecutionFrame, asset, target core.Address,
	input []byte, offset uint16, placeholder core.Hash) ([]byte, error) {
	if !asset.IsNative() {
		pull, err := e.ctx.TokenBalance(asset, frame.Caller)
		if err != nil {
			return nil, err
		}
		if pull.IsZero() {
			return nil, fmt.Errorf("%w: asset %s", core.ErrNoValueAvailable, asset)
		}
		if err := e.ctx.TokenTransferFrom(asset, frame.Self, frame.Caller, frame.Self, pull); err != nil {
			return nil, err
		}
	}
	return e.InjectAndCall(frame, asset, target, input, offset, placeholder)
}
