package vm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

// ValueSource selects the account a hydration command samples against.
type ValueSource byte

const (
	// SourceSelf resolves to the executing storage identity.
	SourceSelf ValueSource = 0x0
	// SourceCaller resolves to the immediate invoker.
	SourceCaller ValueSource = 0x1
	// SourceOrigin resolves to the top-level transaction initiator.
	SourceOrigin ValueSource = 0x2
	// SourceExplicit resolves to an account embedded in the instruction stream.
	SourceExplicit ValueSource = 0x3
)

const sourceMax = SourceExplicit

// Sampler provides the pure read functions hydration resolves values
// through. Self, caller and origin are constants for one pass; balance and
// allowance reads are live reads against the ledger.
type Sampler struct {
	ctx   types.LedgerContext
	frame types.ExecutionFrame
}

// NewSampler creates a sampler over the given ledger context and frame.
func NewSampler(ctx types.LedgerContext, frame types.ExecutionFrame) *Sampler {
	return &Sampler{ctx: ctx, frame: frame}
}

// ResolveAccount maps a value source to a concrete account id.
func (s *Sampler) ResolveAccount(source ValueSource, explicit core.Address) (core.Address, error) {
	switch source {
	case SourceSelf:
		return s.frame.Self, nil
	case SourceCaller:
		return s.frame.Caller, nil
	case SourceOrigin:
		return s.frame.Origin, nil
	case SourceExplicit:
		return explicit, nil
	default:
		return core.Address{}, fmt.Errorf("%w: 0x%x", core.ErrUnknownValueSource, byte(source))
	}
}

// NativeBalanceOf returns the live native-asset balance of account.
func (s *Sampler) NativeBalanceOf(account core.Address) *uint256.Int {
	return s.ctx.Balance(account)
}

// AssetBalanceOf returns the live balance of account for the given asset.
// The native-asset sentinel maps to the native balance. A query against an
// asset that exposes no balance query fails the whole hydration pass.
func (s *Sampler) AssetBalanceOf(asset, account core.Address) (*uint256.Int, error) {
	if asset.IsNative() {
		return s.ctx.Balance(account), nil
	}
	return s.ctx.TokenBalance(asset, account)
}

// AssetAllowanceOf returns the live owner->spender allowance for the asset.
func (s *Sampler) AssetAllowanceOf(asset, owner, spender core.Address) (*uint256.Int, error) {
	return s.ctx.TokenAllowance(asset, owner, spender)
}
