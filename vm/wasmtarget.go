package vm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	wazeroapi "github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

// RegisterWasmTarget attaches a WebAssembly module as a dispatch target. The
// module must export `allocate(size) -> ptr` and
// `process(ptr, len) -> (ptr << 32 | len)`. Its code is persisted in the
// module repository when one is configured.
func (e *Engine) RegisterWasmTarget(addr core.Address, wasmCode []byte) error {
	if len(wasmCode) == 0 {
		return fmt.Errorf("wasm target code is empty")
	}
	if e.repo != nil {
		if err := e.repo.RegisterCode(addr, wasmCode); err != nil {
			return fmt.Errorf("failed to store wasm target: %w", err)
		}
	}
	e.ctx.RegisterTarget(addr, WasmHandler(wasmCode))
	return nil
}

// LoadWasmTargets re-registers every module stored in the repository, for
// process restarts.
func (e *Engine) LoadWasmTargets() error {
	if e.repo == nil {
		return nil
	}
	addrs, err := e.repo.List()
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		module, err := e.repo.GetCode(addr)
		if err != nil {
			return err
		}
		e.ctx.RegisterTarget(addr, WasmHandler(module.Code))
	}
	return nil
}

// WasmHandler wraps a wasm module as a CallHandler. Each invocation
// instantiates a fresh runtime so one call cannot observe another's linear
// memory.
func WasmHandler(wasmCode []byte) types.CallHandler {
	return func(ctx types.LedgerContext, call types.HandlerCall) ([]byte, error) {
		return runWasmCall(ctx, call, wasmCode)
	}
}

func runWasmCall(ledger types.LedgerContext, call types.HandlerCall, wasmCode []byte) ([]byte, error) {
	rctx := context.Background()
	runtime := wazero.NewRuntime(rctx)
	defer runtime.Close(rctx)

	compiled, err := runtime.CompileModule(rctx, wasmCode)
	if err != nil {
		return nil, fmt.Errorf("failed to compile wasm module: %w", err)
	}

	builder := runtime.NewHostModuleBuilder("env")

	// Balance reads are truncated to the low 64 bits of the 256-bit word;
	// wasm targets that need full precision read it from their call input.
	builder.NewFunctionBuilder().
		WithParameterNames("addrPtr").
		WithResultNames("balance").
		WithFunc(func(_ context.Context, m wazeroapi.Module, addrPtr uint32) uint64 {
			mem := m.Memory()
			if mem == nil {
				return 0
			}
			addrData, ok := mem.Read(addrPtr, core.AddressLength)
			if !ok || len(addrData) != core.AddressLength {
				return 0
			}
			var addr core.Address
			copy(addr[:], addrData)
			return ledger.Balance(addr).Uint64()
		}).
		Export("get_balance")

	builder.NewFunctionBuilder().
		WithResultNames("value").
		WithFunc(func(_ context.Context, _ wazeroapi.Module) uint64 {
			if call.Value == nil {
				return 0
			}
			return call.Value.Uint64()
		}).
		Export("get_call_value")

	builder.NewFunctionBuilder().
		WithParameterNames("bufPtr").
		WithResultNames("written").
		WithFunc(func(_ context.Context, m wazeroapi.Module, bufPtr uint32) uint32 {
			mem := m.Memory()
			if mem == nil || !mem.Write(bufPtr, call.Caller.Bytes()) {
				return 0
			}
			return core.AddressLength
		}).
		Export("get_caller")

	if _, err := builder.Instantiate(rctx); err != nil {
		return nil, fmt.Errorf("failed to instantiate host module: %w", err)
	}

	wasi_snapshot_preview1.MustInstantiate(rctx, runtime)

	config := wazero.NewModuleConfig().
		WithName("target").
		WithStartFunctions("_initialize")
	module, err := runtime.InstantiateModule(rctx, compiled, config)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate wasm module: %w", err)
	}

	allocate := module.ExportedFunction("allocate")
	if allocate == nil {
		return nil, fmt.Errorf("allocate function not found")
	}
	process := module.ExportedFunction("process")
	if process == nil {
		return nil, fmt.Errorf("process function not found")
	}

	var inputPtr uint64
	if len(call.Input) > 0 {
		res, err := allocate.Call(rctx, uint64(len(call.Input)))
		if err != nil {
			return nil, fmt.Errorf("allocate failed: %w", err)
		}
		inputPtr = res[0]
		if !module.Memory().Write(uint32(inputPtr), call.Input) {
			return nil, fmt.Errorf("failed to write call input")
		}
	}

	res, err := process.Call(rctx, inputPtr, uint64(len(call.Input)))
	if err != nil {
		return nil, fmt.Errorf("process failed: %w", err)
	}

	packed := res[0]
	retPtr := uint32(packed >> 32)
	retLen := uint32(packed)
	if retLen == 0 {
		return nil, nil
	}
	out, ok := module.Memory().Read(retPtr, retLen)
	if !ok {
		return nil, fmt.Errorf("failed to read call result")
	}
	return append([]byte(nil), out...), nil
}
