package vm

import (
	"fmt"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

// DataKind selects what a hydration command computes and where it writes.
type DataKind byte

const (
	// KindAccountID writes a resolved 20-byte account id into the buffer.
	KindAccountID DataKind = 0x1
	// KindNativeBalance writes a native balance word into the buffer.
	KindNativeBalance DataKind = 0x2
	// KindAssetBalance writes a fungible-asset balance word into the buffer.
	KindAssetBalance DataKind = 0x3
	// KindAssetAllowance writes an owner->spender allowance word into the buffer.
	KindAssetAllowance DataKind = 0x4
	// KindCallTarget assigns the resolved account to the call's target field.
	KindCallTarget DataKind = 0x5
	// KindCallValue assigns the resolved account's native balance to the
	// call's value field.
	KindCallValue DataKind = 0x6
)

const kindMax = KindCallValue

// Hydrate interprets a hydration program against an already-decoded call
// batch, mutating the descriptors in place. It performs pure reads only, so
// every sampled value reflects ledger state strictly before dispatch. Any
// format error aborts the pass with no partial application guarantee beyond
// already-written bytes of a batch that is then never dispatched.
//
// Program layout: a leading initial call index byte, then entries. A 0x00
// byte followed by an index byte advances the call cursor. Any other entry
// is a command byte whose top nibble is the data kind and bottom nibble the
// value source, followed by its operands in decode order: explicit account,
// asset address, spender source (with its own explicit account), and the
// 16-bit write offset for buffer-writing kinds.
func Hydrate(ctx types.LedgerContext, frame types.ExecutionFrame, calls []CallDescriptor, program []byte) error {
	if len(program) == 0 {
		return nil
	}
	sampler := NewSampler(ctx, frame)
	r := newReader(program, core.ErrTruncatedProgram)

	index, err := r.readByte()
	if err != nil {
		return err
	}
	current := int(index)

	for r.more() {
		cmd, err := r.readByte()
		if err != nil {
			return err
		}
		kind := DataKind(cmd >> 4)
		source := ValueSource(cmd & 0x0f)

		if source > sourceMax {
			return fmt.Errorf("%w: 0x%x", core.ErrUnknownValueSource, byte(source))
		}
		if cmd == 0x00 {
			index, err := r.readByte()
			if err != nil {
				return err
			}
			current = int(index)
			continue
		}
		if kind == 0 || kind > kindMax {
			return fmt.Errorf("%w: 0x%x", core.ErrUnknownDataKind, byte(kind))
		}

		var explicit core.Address
		if source == SourceExplicit {
			if explicit, err = r.readAddress(); err != nil {
				return err
			}
		}
		account, err := sampler.ResolveAccount(source, explicit)
		if err != nil {
			return err
		}

		if current >= len(calls) {
			return fmt.Errorf("%w: %d", core.ErrCallIndexOutOfRange, current)
		}
		call := &calls[current]

		switch kind {
		case KindAccountID:
			offset, err := r.readUint16()
			if err != nil {
				return err
			}
			if err := writeInto(call, offset, account.Bytes()); err != nil {
				return err
			}

		case KindNativeBalance:
			offset, err := r.readUint16()
			if err != nil {
				return err
			}
			word := sampler.NativeBalanceOf(account).Bytes32()
			if err := writeInto(call, offset, word[:]); err != nil {
				return err
			}

		case KindAssetBalance:
			asset, err := r.readAddress()
			if err != nil {
				return err
			}
			offset, err := r.readUint16()
			if err != nil {
				return err
			}
			balance, err := sampler.AssetBalanceOf(asset, account)
			if err != nil {
				return err
			}
			word := balance.Bytes32()
			if err := writeInto(call, offset, word[:]); err != nil {
				return err
			}

		case KindAssetAllowance:
			asset, err := r.readAddress()
			if err != nil {
				return err
			}
			spenderSource, err := r.readByte()
			if err != nil {
				return err
			}
			if ValueSource(spenderSource) > sourceMax {
				return fmt.Errorf("%w: 0x%x", core.ErrUnknownValueSource, spenderSource)
			}
			var spenderExplicit core.Address
			if ValueSource(spenderSource) == SourceExplicit {
				if spenderExplicit, err = r.readAddress(); err != nil {
					return err
				}
			}
			spender, err := sampler.ResolveAccount(ValueSource(spenderSource), spenderExplicit)
			if err != nil {
				return err
			}
			offset, err := r.readUint16()
			if err != nil {
				return err
			}
			allowance, err := sampler.AssetAllowanceOf(asset, account, spender)
			if err != nil {
				return err
			}
			word := allowance.Bytes32()
			if err := writeInto(call, offset, word[:]); err != nil {
				return err
			}

		case KindCallTarget:
			call.Target = account

		case KindCallValue:
			call.Value = sampler.NativeBalanceOf(account)
		}
	}
	return nil
}

// writeInto overwrites len(data) bytes of the call's input buffer at offset.
// The region must lie entirely within the existing buffer; the buffer is
// never resized.
func writeInto(call *CallDescriptor, offset uint16, data []byte) error {
	if int(offset)+len(data) > len(call.Input) {
		return fmt.Errorf("%w: offset %d width %d buffer %d",
			core.ErrOffsetOutOfBounds, offset, len(data), len(call.Input))
	}
	copy(call.Input[offset:], data)
	return nil
}
