// Package types contains shared type definitions used by both the execution
// engine and the pluggable ledger-context implementations.
package types

import (
	"github.com/holiman/uint256"

	"github.com/smartacct/vm/core"
)

// ExecutionFrame carries the invocation context of the currently executing
// code. Self is the storage identity in effect for this frame; under a
// context-preserving (borrowed-storage) invocation it is the owning
// account's identity, not the engine's. Code is the canonical deployed
// identity of the engine logic itself.
type ExecutionFrame struct {
	Self   core.Address
	Code   core.Address
	Caller core.Address
	Origin core.Address
}

// Borrowed reports whether the frame runs inside a context-preserving
// invocation, i.e. the executing storage identity is not the engine's own
// deployed identity.
func (f ExecutionFrame) Borrowed() bool {
	return f.Self != f.Code
}

// HandlerCall describes one sub-call handed to the ledger context for
// dispatch. Self equals Target for an ordinary call; for a
// context-preserving call it is the caller's own storage identity.
type HandlerCall struct {
	Caller core.Address
	Target core.Address
	Self   core.Address
	Origin core.Address
	Value  *uint256.Int
	Input  []byte
	Budget uint64 // 0 = unlimited
}

// CallHandler is the code attached to a dispatch target. Returning an error
// marks the sub-call as reverted; the returned bytes are its revert payload
// or return data.
type CallHandler func(ctx LedgerContext, call HandlerCall) ([]byte, error)

// CallResult is the outcome of one dispatched sub-call.
type CallResult struct {
	Success    bool
	ReturnData []byte
}

// Event is one audit record emitted through the ledger context.
type Event struct {
	Contract  core.Address
	Name      string
	KeyValues []any
}

// LedgerContext is the explicit account-state handle every engine primitive
// operates on: native and token balances, allowances, transfers,
// per-transaction transient storage, and sub-call dispatch to registered
// target handlers. Implementations are registered with the context package
// and selected by configuration.
type LedgerContext interface {
	// WithTransaction scopes the context to one top-level transaction,
	// discarding all transient storage written by the previous one.
	WithTransaction(txHash core.Hash, origin core.Address) LedgerContext
	// TransactionHash returns the current transaction hash.
	TransactionHash() core.Hash

	// Balance returns the native-asset balance of addr.
	Balance(addr core.Address) *uint256.Int
	// Transfer moves native funds between accounts.
	Transfer(from, to core.Address, amount *uint256.Int) error
	// Mint credits native funds to addr.
	Mint(addr core.Address, amount *uint256.Int) error

	// CreateToken registers a fungible asset. Balance and allowance queries
	// against an unregistered asset fail with core.ErrUnknownAsset.
	CreateToken(token core.Address) error
	// TokenBalance returns the balance of addr for the given asset.
	TokenBalance(token, addr core.Address) (*uint256.Int, error)
	// TokenAllowance returns the owner->spender allowance for the asset.
	TokenAllowance(token, owner, spender core.Address) (*uint256.Int, error)
	// TokenTransfer moves asset funds held by from.
	TokenTransfer(token, from, to core.Address, amount *uint256.Int) error
	// TokenTransferFrom moves asset funds held by owner on behalf of
	// spender, debiting the owner->spender allowance.
	TokenTransferFrom(token, spender, owner, to core.Address, amount *uint256.Int) error
	// MintToken credits asset funds to addr.
	MintToken(token, addr core.Address, amount *uint256.Int) error
	// Approve sets the owner->spender allowance for the asset.
	Approve(token, owner, spender core.Address, amount *uint256.Int) error

	// TransientGet reads a per-transaction storage word scoped to owner.
	TransientGet(owner core.Address, slot core.Hash) core.Hash
	// TransientSet writes a per-transaction storage word scoped to owner.
	TransientSet(owner core.Address, slot core.Hash, value core.Hash)

	// RegisterTarget attaches handler code to a dispatch target address.
	RegisterTarget(addr core.Address, handler CallHandler)
	// Call transfers the call value and runs the target's handler, if any.
	Call(call HandlerCall) ([]byte, error)

	// Log emits an audit event.
	Log(contract core.Address, event string, keyValues ...any)
	// Events returns the events emitted in the current transaction scope.
	Events() []Event
}
