// Package vm implements the smart-account value-hydration and settlement
// engine: a batch codec and dispatcher, a hydration interpreter that splices
// live ledger values into pre-authorized call data, a single-slot balance
// injector, and sweep/refund settlement primitives gated by an
// invocation-mode guard.
package vm

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/smartacct/vm/core"
)

// ErrorPolicy selects how the dispatcher reacts to one call's failure.
type ErrorPolicy uint8

const (
	// PolicyRevert aborts the whole batch on failure.
	PolicyRevert ErrorPolicy = iota
	// PolicyAbort stops the remaining calls silently on failure.
	PolicyAbort
	// PolicyIgnore records the failure and arms the next call's fallback flag.
	PolicyIgnore
	// PolicyContinue records the failure and proceeds without flag propagation.
	PolicyContinue
)

const policyMax = PolicyContinue

// Flag bits of the encoded call descriptor.
const (
	flagContextPreserving = 1 << 0
	flagFallbackOnly      = 1 << 1
)

// CallDescriptor is one decoded sub-invocation of a batch. The hydration
// interpreter may overwrite Target, Value, and in-place byte ranges of
// Input; it never resizes Input.
type CallDescriptor struct {
	Target            core.Address
	Value             *uint256.Int
	Input             []byte
	BudgetCap         *uint256.Int // 0 = unlimited
	ContextPreserving bool
	FallbackOnly      bool
	Policy            ErrorPolicy
}

// DecodeCalls decodes a packed call batch:
//
//	u8 count, then per call:
//	target(20) | value(32) | budgetCap(32) | flags(1) | policy(1) |
//	inputLen(u16 BE) | input
func DecodeCalls(data []byte) ([]CallDescriptor, error) {
	r := newReader(data, core.ErrTruncatedBatch)
	count, err := r.readByte()
	if err != nil {
		return nil, err
	}
	calls := make([]CallDescriptor, 0, count)
	for i := 0; i < int(count); i++ {
		var call CallDescriptor
		if call.Target, err = r.readAddress(); err != nil {
			return nil, err
		}
		if call.Value, err = r.readWord(); err != nil {
			return nil, err
		}
		if call.BudgetCap, err = r.readWord(); err != nil {
			return nil, err
		}
		flags, err := r.readByte()
		if err != nil {
			return nil, err
		}
		call.ContextPreserving = flags&flagContextPreserving != 0
		call.FallbackOnly = flags&flagFallbackOnly != 0
		policy, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if ErrorPolicy(policy) > policyMax {
			return nil, core.ErrInvalidArgument
		}
		call.Policy = ErrorPolicy(policy)
		inputLen, err := r.readUint16()
		if err != nil {
			return nil, err
		}
		input, err := r.read(int(inputLen))
		if err != nil {
			return nil, err
		}
		// Hydration mutates the buffer in place, so each call owns its copy.
		call.Input = append([]byte(nil), input...)
		calls = append(calls, call)
	}
	if r.more() {
		return nil, core.ErrInvalidArgument
	}
	return calls, nil
}

// EncodeCalls packs descriptors into the wire format accepted by DecodeCalls.
func EncodeCalls(calls []CallDescriptor) ([]byte, error) {
	if len(calls) > 255 {
		return nil, core.ErrInvalidArgument
	}
	buf := []byte{byte(len(calls))}
	for _, call := range calls {
		if len(call.Input) > 0xffff {
			return nil, core.ErrInvalidArgument
		}
		buf = append(buf, call.Target.Bytes()...)
		buf = appendWord(buf, call.Value)
		buf = appendWord(buf, call.BudgetCap)
		var flags byte
		if call.ContextPreserving {
			flags |= flagContextPreserving
		}
		if call.FallbackOnly {
			flags |= flagFallbackOnly
		}
		buf = append(buf, flags, byte(call.Policy))
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(call.Input)))
		buf = append(buf, call.Input...)
	}
	return buf, nil
}

func appendWord(buf []byte, v *uint256.Int) []byte {
	var word [core.WordLength]byte
	if v != nil {
		word = v.Bytes32()
	}
	return append(buf, word[:]...)
}
