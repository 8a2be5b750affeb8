package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartacct/vm/api"
	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

var _ api.Executor = (*Engine)(nil)

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)

	_, err = NewEngine(&Config{ContextType: "memory"})
	assert.Error(t, err, "zero module address")

	_, err = NewEngine(&Config{ModuleAddress: testModule, ContextType: "no-such-context"})
	assert.Error(t, err)

	engine, err := NewEngine(&Config{ModuleAddress: testModule, ContextType: "memory"})
	require.NoError(t, err)
	assert.Equal(t, testModule, engine.ModuleAddress())
}

func TestFrameBorrowed(t *testing.T) {
	engine, _ := newTestEngine(t)

	borrowed := engine.Frame(testAddr(0xaa), testAddr(0xbb), testAddr(0xbb))
	assert.True(t, borrowed.Borrowed())

	direct := engine.Frame(testModule, testAddr(0xbb), testAddr(0xbb))
	assert.False(t, direct.Borrowed())
}

func TestHydrateAndExecute(t *testing.T) {
	engine, ctx := newTestEngine(t)
	owner := testAddr(0xaa)
	target := testAddr(0x40)
	require.NoError(t, ctx.Mint(owner, uint256.NewInt(64)))

	var seen []byte
	ctx.RegisterTarget(target, func(_ types.LedgerContext, call types.HandlerCall) ([]byte, error) {
		seen = append([]byte(nil), call.Input...)
		return []byte("ack"), nil
	})

	batch, err := EncodeCalls([]CallDescriptor{{
		Target: target,
		Input:  make([]byte, 32),
	}})
	require.NoError(t, err)
	program := NewProgram(0).NativeBalance(Self(), 0).Bytes()

	frame := engine.Frame(owner, testAddr(0xbb), testAddr(0xbb))
	results, err := engine.HydrateAndExecute(frame, batch, program)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, []byte("ack"), results[0].ReturnData)

	want := uint256.NewInt(64).Bytes32()
	assert.Equal(t, want[:], seen)
}

func TestHydrateAndExecuteBadBatch(t *testing.T) {
	engine, _ := newTestEngine(t)
	frame := engine.Frame(testAddr(0xaa), testAddr(0xbb), testAddr(0xbb))
	_, err := engine.HydrateAndExecute(frame, []byte{0x01, 0x02}, nil)
	assert.ErrorIs(t, err, core.ErrTruncatedBatch)
}

func TestHydrateExecuteAndSweep(t *testing.T) {
	engine, ctx := newTestEngine(t)
	owner := testAddr(0xaa)
	sweepee := testAddr(0xcc)
	token := testAddr(0x70)
	require.NoError(t, ctx.Mint(owner, uint256.NewInt(50)))
	require.NoError(t, ctx.CreateToken(token))
	require.NoError(t, ctx.MintToken(token, owner, uint256.NewInt(30)))

	batch, err := EncodeCalls(nil)
	require.NoError(t, err)

	frame := engine.Frame(owner, testAddr(0xbb), testAddr(0xbb))
	_, err = engine.HydrateExecuteAndSweep(frame, batch, nil, sweepee,
		[]core.Address{token}, true)
	require.NoError(t, err)

	bal, err := ctx.TokenBalance(token, sweepee)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(30), bal)
	assert.Equal(t, uint256.NewInt(50), ctx.Balance(sweepee))
	assert.True(t, ctx.Balance(owner).IsZero())
}

func TestHydrateExecuteAndSweepDefaultsToCaller(t *testing.T) {
	engine, ctx := newTestEngine(t)
	owner := testAddr(0xaa)
	caller := testAddr(0xbb)
	require.NoError(t, ctx.Mint(owner, uint256.NewInt(25)))

	batch, err := EncodeCalls(nil)
	require.NoError(t, err)

	frame := engine.Frame(owner, caller, caller)
	_, err = engine.HydrateExecuteAndSweep(frame, batch, nil, core.ZeroAddress, nil, true)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(25), ctx.Balance(caller))
}

func TestHydrateExecuteAndSweepRequiresBorrowedFrame(t *testing.T) {
	engine, _ := newTestEngine(t)
	batch, err := EncodeCalls(nil)
	require.NoError(t, err)

	frame := engine.Frame(testModule, testAddr(0xbb), testAddr(0xbb))
	_, err = engine.HydrateExecuteAndSweep(frame, batch, nil, testAddr(0xcc), nil, true)
	assert.ErrorIs(t, err, core.ErrNotDelegateCall)
}
