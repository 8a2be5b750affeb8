package vm

import (
	"fmt"

	"github.com/smartacct/vm/context"
	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/repository"
	"github.com/smartacct/vm/types"
)

// Engine hosts the hydration, dispatch and settlement entry points over one
// ledger context.
type Engine struct {
	config *Config
	ctx    types.LedgerContext
	repo   *repository.Manager
}

// Config represents engine configuration
type Config struct {
	// ModuleAddress is the canonical deployed identity of the engine logic.
	// A frame whose storage identity differs from it is a borrowed frame.
	ModuleAddress core.Address
	// WasmModulesDir is the storage directory for wasm target modules;
	// empty disables the on-disk module repository.
	WasmModulesDir string
	// ContextType selects the ledger-context implementation.
	ContextType string
	// ContextParams are passed to the context constructor.
	ContextParams map[string]any
}

// NewEngine creates a new execution engine
func NewEngine(config *Config) (*Engine, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, err := context.Get(context.ContextType(config.ContextType), config.ContextParams)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger context: %w", err)
	}

	var repo *repository.Manager
	if config.WasmModulesDir != "" {
		repo, err = repository.NewManager(config.WasmModulesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create module repository: %w", err)
		}
	}

	return &Engine{
		config: config,
		ctx:    ctx,
		repo:   repo,
	}, nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.ModuleAddress.IsZero() {
		return fmt.Errorf("module address is zero")
	}
	return nil
}

func (e *Engine) WithContext(ctx types.LedgerContext) *Engine {
	e.ctx = ctx
	return e
}

func (e *Engine) GetContext() types.LedgerContext {
	return e.ctx
}

// ModuleAddress returns the engine's canonical deployed identity.
func (e *Engine) ModuleAddress() core.Address {
	return e.config.ModuleAddress
}

// Frame builds an execution frame for an invocation of the engine. self is
// the storage identity in effect: the owning account under a borrowed
// (context-preserving) invocation, or the module address itself for a
// direct call.
func (e *Engine) Frame(self, caller, origin core.Address) types.ExecutionFrame {
	return types.ExecutionFrame{
		Self:   self,
		Code:   e.config.ModuleAddress,
		Caller: caller,
		Origin: origin,
	}
}

// requireBorrowed is the invocation-mode context check: primitives acting on
// the owning account's balances must run under a borrowed frame.
func requireBorrowed(frame types.ExecutionFrame) error {
	if !frame.Borrowed() {
		return core.ErrNotDelegateCall
	}
	return nil
}

// HydrateAndExecute decodes a call batch, resolves the hydration program
// against live ledger state, and dispatches the mutated batch. Hydration
// completes entirely before the first call runs.
func (e *Engine) HydrateAndExecute(frame types.ExecutionFrame, batch, program []byte) ([]types.CallResult, error) {
	calls, err := DecodeCalls(batch)
	if err != nil {
		return nil, err
	}
	if err := Hydrate(e.ctx, frame, calls, program); err != nil {
		return nil, err
	}
	return Dispatch(e.ctx, frame, calls)
}

// HydrateExecuteAndSweep runs HydrateAndExecute, then sweeps each listed
// asset (and optionally the native balance) of the executing account to
// sweepTarget. A zero sweepTarget sweeps to the immediate caller. It must
// run under a borrowed frame.
func (e *Engine) HydrateExecuteAndSweep(frame types.ExecutionFrame, batch, program []byte,
	sweepTarget core.Address, assets []core.Address, sweepNative bool) ([]types.CallResult, error) {
	if err := requireBorrowed(frame); err != nil {
		return nil, err
	}
	if sweepTarget.IsZero() {
		sweepTarget = frame.Caller
	}

	results, err := e.HydrateAndExecute(frame, batch, program)
	if err != nil {
		return nil, err
	}

	for _, asset := range assets {
		if err := e.sweep(frame, asset, sweepTarget, nil); err != nil {
			return nil, err
		}
	}
	if sweepNative {
		if err := e.sweep(frame, core.NativeAsset, sweepTarget, nil); err != nil {
			return nil, err
		}
	}
	return results, nil
}
