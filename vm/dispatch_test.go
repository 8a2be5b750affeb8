package vm

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

func failingTarget(ctx types.LedgerContext, addr core.Address, ret []byte) {
	ctx.RegisterTarget(addr, func(types.LedgerContext, types.HandlerCall) ([]byte, error) {
		return ret, errors.New("handler reverted")
	})
}

func recordingTarget(ctx types.LedgerContext, addr core.Address, hits *int) {
	ctx.RegisterTarget(addr, func(types.LedgerContext, types.HandlerCall) ([]byte, error) {
		*hits++
		return []byte("ok"), nil
	})
}

func TestDispatchPolicyRevert(t *testing.T) {
	ctx := newTestLedger(t)
	bad := testAddr(0x40)
	next := testAddr(0x41)
	failingTarget(ctx, bad, []byte("boom"))
	var hits int
	recordingTarget(ctx, next, &hits)

	calls := []CallDescriptor{
		{Target: bad, Policy: PolicyRevert},
		{Target: next},
	}
	results, err := Dispatch(ctx, testFrame(testAddr(0xaa), testAddr(0xbb)), calls)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Equal(t, 0, hits)

	var sub *SubCallError
	require.ErrorAs(t, err, &sub)
	assert.Equal(t, 0, sub.Index)
	assert.Equal(t, []byte("boom"), sub.ReturnData)
	assert.ErrorIs(t, err, core.ErrSubCallReverted)
}

func TestDispatchPolicyAbort(t *testing.T) {
	ctx := newTestLedger(t)
	bad := testAddr(0x40)
	next := testAddr(0x41)
	failingTarget(ctx, bad, nil)
	var hits int
	recordingTarget(ctx, next, &hits)

	calls := []CallDescriptor{
		{Target: bad, Policy: PolicyAbort},
		{Target: next},
	}
	results, err := Dispatch(ctx, testFrame(testAddr(0xaa), testAddr(0xbb)), calls)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, 0, hits)
}

func TestDispatchPolicyIgnoreArmsFallback(t *testing.T) {
	ctx := newTestLedger(t)
	bad := testAddr(0x40)
	fallback := testAddr(0x41)
	failingTarget(ctx, bad, nil)
	var hits int
	recordingTarget(ctx, fallback, &hits)

	calls := []CallDescriptor{
		{Target: bad, Policy: PolicyIgnore},
		{Target: fallback, FallbackOnly: true},
		{Target: fallback, FallbackOnly: true}, // flag already consumed
	}
	results, err := Dispatch(ctx, testFrame(testAddr(0xaa), testAddr(0xbb)), calls)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, []byte("ok"), results[1].ReturnData)
	// The second fallback-only call was skipped, not run.
	assert.True(t, results[2].Success)
	assert.Nil(t, results[2].ReturnData)
	assert.Equal(t, 1, hits)
}

func TestDispatchPolicyContinueDoesNotArm(t *testing.T) {
	ctx := newTestLedger(t)
	bad := testAddr(0x40)
	fallback := testAddr(0x41)
	failingTarget(ctx, bad, nil)
	var hits int
	recordingTarget(ctx, fallback, &hits)

	calls := []CallDescriptor{
		{Target: bad, Policy: PolicyContinue},
		{Target: fallback, FallbackOnly: true},
	}
	results, err := Dispatch(ctx, testFrame(testAddr(0xaa), testAddr(0xbb)), calls)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, 0, hits)
}

func TestDispatchFallbackSkippedAfterSuccess(t *testing.T) {
	ctx := newTestLedger(t)
	first := testAddr(0x40)
	fallback := testAddr(0x41)
	var firstHits, fallbackHits int
	recordingTarget(ctx, first, &firstHits)
	recordingTarget(ctx, fallback, &fallbackHits)

	calls := []CallDescriptor{
		{Target: first, Policy: PolicyIgnore},
		{Target: fallback, FallbackOnly: true},
	}
	results, err := Dispatch(ctx, testFrame(testAddr(0xaa), testAddr(0xbb)), calls)
	require.NoError(t, err)
	assert.Equal(t, 1, firstHits)
	assert.Equal(t, 0, fallbackHits)
	assert.True(t, results[1].Success)
}

func TestDispatchBudgetErrorPassesThrough(t *testing.T) {
	ctx := newTestLedger(t)
	target := testAddr(0x40)
	ctx.RegisterTarget(target, func(_ types.LedgerContext, call types.HandlerCall) ([]byte, error) {
		if call.Budget != 0 && call.Budget < 100 {
			return nil, core.ErrInsufficientBudget
		}
		return nil, nil
	})

	calls := []CallDescriptor{
		{Target: target, BudgetCap: uint256.NewInt(50), Policy: PolicyRevert},
	}
	_, err := Dispatch(ctx, testFrame(testAddr(0xaa), testAddr(0xbb)), calls)
	require.ErrorIs(t, err, core.ErrInsufficientBudget)
	// The budget error is not rewrapped as a sub-call revert.
	var sub *SubCallError
	assert.False(t, errors.As(err, &sub))
}

func TestDispatchNestedDelegationGate(t *testing.T) {
	ctx := newTestLedger(t)
	target := testAddr(0x40)
	var hits int
	recordingTarget(ctx, target, &hits)

	// Direct frame: the executing identity is the module itself.
	direct := types.ExecutionFrame{
		Self: testModule, Code: testModule,
		Caller: testAddr(0xbb), Origin: testAddr(0xbb),
	}
	calls := []CallDescriptor{
		{Target: target},
		{Target: target, ContextPreserving: true},
	}
	results, err := Dispatch(ctx, direct, calls)
	require.ErrorIs(t, err, core.ErrDelegateCallNotAllowed)
	assert.Nil(t, results)
	// The gate fires before any call runs, even ones ahead of the offender.
	assert.Equal(t, 0, hits)
}

func TestDispatchContextPreservingSelf(t *testing.T) {
	ctx := newTestLedger(t)
	owner := testAddr(0xaa)
	target := testAddr(0x40)
	var seenSelf core.Address
	ctx.RegisterTarget(target, func(_ types.LedgerContext, call types.HandlerCall) ([]byte, error) {
		seenSelf = call.Self
		return nil, nil
	})

	calls := []CallDescriptor{{Target: target, ContextPreserving: true}}
	_, err := Dispatch(ctx, testFrame(owner, testAddr(0xbb)), calls)
	require.NoError(t, err)
	assert.Equal(t, owner, seenSelf)
}

func TestDispatchValueTransfer(t *testing.T) {
	ctx := newTestLedger(t)
	owner := testAddr(0xaa)
	sink := testAddr(0x40)
	require.NoError(t, ctx.Mint(owner, uint256.NewInt(500)))

	calls := []CallDescriptor{{Target: sink, Value: uint256.NewInt(200)}}
	results, err := Dispatch(ctx, testFrame(owner, testAddr(0xbb)), calls)
	require.NoError(t, err)
	assert.True(t, results[0].Success)
	assert.Equal(t, uint256.NewInt(200), ctx.Balance(sink))
	assert.Equal(t, uint256.NewInt(300), ctx.Balance(owner))
}
