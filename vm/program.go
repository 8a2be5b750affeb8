package vm

import (
	"encoding/binary"

	"github.com/smartacct/vm/core"
)

// Source pairs a value source with its explicit account operand, used by the
// program builder.
type Source struct {
	Kind    ValueSource
	Account core.Address
}

// Self samples against the executing storage identity.
func Self() Source { return Source{Kind: SourceSelf} }

// Caller samples against the immediate invoker.
func Caller() Source { return Source{Kind: SourceCaller} }

// Origin samples against the top-level transaction initiator.
func Origin() Source { return Source{Kind: SourceOrigin} }

// Explicit samples against the given account.
func Explicit(account core.Address) Source {
	return Source{Kind: SourceExplicit, Account: account}
}

// ProgramBuilder assembles a hydration program without hand-packing bytes.
// It mirrors the wire format Hydrate decodes.
type ProgramBuilder struct {
	buf []byte
}

// NewProgram starts a program whose commands initially apply to call
// initialCall.
func NewProgram(initialCall uint8) *ProgramBuilder {
	return &ProgramBuilder{buf: []byte{initialCall}}
}

// SelectCall emits a cursor-advance marker.
func (p *ProgramBuilder) SelectCall(index uint8) *ProgramBuilder {
	p.buf = append(p.buf, 0x00, index)
	return p
}

func (p *ProgramBuilder) command(kind DataKind, src Source) {
	p.buf = append(p.buf, byte(kind)<<4|byte(src.Kind))
	if src.Kind == SourceExplicit {
		p.buf = append(p.buf, src.Account.Bytes()...)
	}
}

func (p *ProgramBuilder) offset(offset uint16) {
	p.buf = binary.BigEndian.AppendUint16(p.buf, offset)
}

// AccountID writes the resolved 20-byte account id at offset.
func (p *ProgramBuilder) AccountID(src Source, off uint16) *ProgramBuilder {
	p.command(KindAccountID, src)
	p.offset(off)
	return p
}

// NativeBalance writes the resolved account's native balance word at offset.
func (p *ProgramBuilder) NativeBalance(src Source, off uint16) *ProgramBuilder {
	p.command(KindNativeBalance, src)
	p.offset(off)
	return p
}

// AssetBalance writes the resolved account's asset balance word at offset.
func (p *ProgramBuilder) AssetBalance(asset core.Address, src Source, off uint16) *ProgramBuilder {
	p.command(KindAssetBalance, src)
	p.buf = append(p.buf, asset.Bytes()...)
	p.offset(off)
	return p
}

// AssetAllowance writes the owner->spender allowance word at offset.
func (p *ProgramBuilder) AssetAllowance(asset core.Address, owner, spender Source, off uint16) *ProgramBuilder {
	p.command(KindAssetAllowance, owner)
	p.buf = append(p.buf, asset.Bytes()...)
	p.buf = append(p.buf, byte(spender.Kind))
	if spender.Kind == SourceExplicit {
		p.buf = append(p.buf, spender.Account.Bytes()...)
	}
	p.offset(off)
	return p
}

// CallTarget assigns the resolved account to the current call's target.
func (p *ProgramBuilder) CallTarget(src Source) *ProgramBuilder {
	p.command(KindCallTarget, src)
	return p
}

// CallValue assigns the resolved account's native balance to the current
// call's value.
func (p *ProgramBuilder) CallValue(src Source) *ProgramBuilder {
	p.command(KindCallValue, src)
	return p
}

// Bytes returns the assembled program.
func (p *ProgramBuilder) Bytes() []byte {
	return p.buf
}
