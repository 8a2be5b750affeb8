// Package memory implements the in-memory ledger context. It is the default
// context for tests and single-process embedding; nothing survives the
// process.
package memory

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"github.com/smartacct/vm/context"
	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

type allowanceKey struct {
	owner   core.Address
	spender core.Address
}

type transientKey struct {
	owner core.Address
	slot  core.Hash
}

// tokenState holds one fungible asset's balances and allowances.
type tokenState struct {
	balances   map[core.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

// ledgerContext implements types.LedgerContext backed by plain maps.
type ledgerContext struct {
	mu sync.Mutex

	txHash core.Hash
	origin core.Address

	balances map[core.Address]*uint256.Int
	tokens   map[core.Address]*tokenState

	// Transient storage, discarded on WithTransaction.
	transient map[transientKey]core.Hash

	handlers map[core.Address]types.CallHandler

	// Accounts that refuse incoming native funds. Test hook mirroring a
	// recipient whose code rejects plain value transfers.
	rejectNative map[core.Address]bool

	events []types.Event
}

func init() {
	context.Register(context.MemoryContextType, NewLedgerContext)
}

// NewLedgerContext creates a new in-memory ledger context.
func NewLedgerContext(params map[string]any) types.LedgerContext {
	return &ledgerContext{
		balances:     make(map[core.Address]*uint256.Int),
		tokens:       make(map[core.Address]*tokenState),
		transient:    make(map[transientKey]core.Hash),
		handlers:     make(map[core.Address]types.CallHandler),
		rejectNative: make(map[core.Address]bool),
	}
}

func (ctx *ledgerContext) WithTransaction(txHash core.Hash, origin core.Address) types.LedgerContext {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.txHash = txHash
	ctx.origin = origin
	ctx.transient = make(map[transientKey]core.Hash)
	ctx.events = nil
	return ctx
}

func (ctx *ledgerContext) TransactionHash() core.Hash {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.txHash
}

// Balance gets the native-asset balance of addr.
func (ctx *ledgerContext) Balance(addr core.Address) *uint256.Int {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if bal, ok := ctx.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

// Transfer moves native funds between accounts.
func (ctx *ledgerContext) Transfer(from, to core.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.rejectNative[to] {
		return core.ErrNativeTransferFailed
	}
	fromBal, ok := ctx.balances[from]
	if !ok || fromBal.Lt(amount) {
		return core.ErrInsufficientBalance
	}
	fromBal.Sub(fromBal, amount)
	ctx.creditLocked(to, amount)
	return nil
}

func (ctx *ledgerContext) Mint(addr core.Address, amount *uint256.Int) error {
	if amount == nil {
		return core.ErrInvalidArgument
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.creditLocked(addr, amount)
	return nil
}

func (ctx *ledgerContext) creditLocked(addr core.Address, amount *uint256.Int) {
	if bal, ok := ctx.balances[addr]; ok {
		bal.Add(bal, amount)
		return
	}
	ctx.balances[addr] = amount.Clone()
}

// RejectNativeTransfers marks addr as refusing incoming native funds.
func (ctx *ledgerContext) RejectNativeTransfers(addr core.Address) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.rejectNative[addr] = true
}

func (ctx *ledgerContext) CreateToken(token core.Address) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if _, exists := ctx.tokens[token]; exists {
		return nil
	}
	ctx.tokens[token] = &tokenState{
		balances:   make(map[core.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
	return nil
}

func (ctx *ledgerContext) tokenLocked(token core.Address) (*tokenState, error) {
	state, ok := ctx.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownAsset, token)
	}
	return state, nil
}

func (ctx *ledgerContext) TokenBalance(token, addr core.Address) (*uint256.Int, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	state, err := ctx.tokenLocked(token)
	if err != nil {
		return nil, err
	}
	if bal, ok := state.balances[addr]; ok {
		return bal.Clone(), nil
	}
	return uint256.NewInt(0), nil
}

func (ctx *ledgerContext) TokenAllowance(token, owner, spender core.Address) (*uint256.Int, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	state, err := ctx.tokenLocked(token)
	if err != nil {
		return nil, err
	}
	if allowance, ok := state.allowances[allowanceKey{owner, spender}]; ok {
		return allowance.Clone(), nil
	}
	return uint256.NewInt(0), nil
}

func (ctx *ledgerContext) TokenTransfer(token, from, to core.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.tokenTransferLocked(token, from, to, amount)
}

func (ctx *ledgerContext) tokenTransferLocked(token, from, to core.Address, amount *uint256.Int) error {
	state, err := ctx.tokenLocked(token)
	if err != nil {
		return err
	}
	fromBal, ok := state.balances[from]
	if !ok || fromBal.Lt(amount) {
		return fmt.Errorf("%w: token %s", core.ErrInsufficientBalance, token)
	}
	fromBal.Sub(fromBal, amount)
	if toBal, ok := state.balances[to]; ok {
		toBal.Add(toBal, amount)
	} else {
		state.balances[to] = amount.Clone()
	}
	return nil
}

func (ctx *ledgerContext) TokenTransferFrom(token, spender, owner, to core.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	state, err := ctx.tokenLocked(token)
	if err != nil {
		return err
	}
	key := allowanceKey{owner, spender}
	allowance, ok := state.allowances[key]
	if !ok || allowance.Lt(amount) {
		return fmt.Errorf("%w: token %s", core.ErrInsufficientAllowance, token)
	}
	if err := ctx.tokenTransferLocked(token, owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (ctx *ledgerContext) MintToken(token, addr core.Address, amount *uint256.Int) error {
	if amount == nil {
		return core.ErrInvalidArgument
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	state, err := ctx.tokenLocked(token)
	if err != nil {
		return err
	}
	if bal, ok := state.balances[addr]; ok {
		bal.Add(bal, amount)
	} else {
		state.balances[addr] = amount.Clone()
	}
	return nil
}

func (ctx *ledgerContext) Approve(token, owner, spender core.Address, amount *uint256.Int) error {
	if amount == nil {
		return core.ErrInvalidArgument
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	state, err := ctx.tokenLocked(token)
	if err != nil {
		return err
	}
	state.allowances[allowanceKey{owner, spender}] = amount.Clone()
	return nil
}

func (ctx *ledgerContext) TransientGet(owner core.Address, slot core.Hash) core.Hash {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.transient[transientKey{owner, slot}]
}

func (ctx *ledgerContext) TransientSet(owner core.Address, slot core.Hash, value core.Hash) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.transient[transientKey{owner, slot}] = value
}

func (ctx *ledgerContext) RegisterTarget(addr core.Address, handler types.CallHandler) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.handlers[addr] = handler
}

// Call transfers the call value and runs the target's handler, if any. The
// handler runs without the context lock held so it may call back into the
// ledger.
func (ctx *ledgerContext) Call(call types.HandlerCall) ([]byte, error) {
	if call.Value != nil && !call.Value.IsZero() && call.Self == call.Target {
		if err := ctx.Transfer(call.Caller, call.Target, call.Value); err != nil {
			return nil, err
		}
	}
	ctx.mu.Lock()
	handler := ctx.handlers[call.Target]
	ctx.mu.Unlock()
	if handler == nil {
		// Plain value transfer, no code at the target.
		return nil, nil
	}
	return handler(ctx, call)
}

// Log records events
func (ctx *ledgerContext) Log(contract core.Address, eventName string, keyValues ...any) {
	ctx.mu.Lock()
	ctx.events = append(ctx.events, types.Event{
		Contract:  contract,
		Name:      eventName,
		KeyValues: keyValues,
	})
	ctx.mu.Unlock()

	params := []any{
		"contract", contract,
		"event", eventName,
	}
	params = append(params, keyValues...)
	slog.Info("Ledger event", params...)
}

func (ctx *ledgerContext) Events() []types.Event {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	out := make([]types.Event, len(ctx.events))
	copy(out, ctx.events)
	return out
}
