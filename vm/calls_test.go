package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartacct/vm/core"
)

func TestDecodeCalls(t *testing.T) {
	in := []CallDescriptor{
		{
			Target:    testAddr(0x40),
			Value:     uint256.NewInt(100),
			BudgetCap: uint256.NewInt(21000),
			Input:     []byte{0xde, 0xad, 0xbe, 0xef},
			Policy:    PolicyRevert,
		},
		{
			Target:            testAddr(0x41),
			ContextPreserving: true,
			FallbackOnly:      true,
			Policy:            PolicyIgnore,
		},
	}
	encoded, err := EncodeCalls(in)
	require.NoError(t, err)

	out, err := DecodeCalls(encoded)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, testAddr(0x40), out[0].Target)
	assert.Equal(t, uint256.NewInt(100), out[0].Value)
	assert.Equal(t, uint256.NewInt(21000), out[0].BudgetCap)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, out[0].Input)
	assert.False(t, out[0].ContextPreserving)
	assert.Equal(t, PolicyRevert, out[0].Policy)

	assert.True(t, out[1].ContextPreserving)
	assert.True(t, out[1].FallbackOnly)
	assert.Equal(t, PolicyIgnore, out[1].Policy)
	assert.Empty(t, out[1].Input)
}

func TestDecodeCallsOwnsInput(t *testing.T) {
	encoded, err := EncodeCalls([]CallDescriptor{{
		Target: testAddr(0x40),
		Input:  make([]byte, 8),
	}})
	require.NoError(t, err)

	calls, err := DecodeCalls(encoded)
	require.NoError(t, err)

	// Mutating the decoded buffer must not touch the wire bytes.
	calls[0].Input[0] = 0xff
	again, err := DecodeCalls(encoded)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), again[0].Input[0])
}

func TestDecodeCallsEmptyBatch(t *testing.T) {
	calls, err := DecodeCalls([]byte{0x00})
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestDecodeCallsTruncated(t *testing.T) {
	encoded, err := EncodeCalls([]CallDescriptor{{
		Target: testAddr(0x40),
		Input:  []byte{1, 2, 3, 4},
	}})
	require.NoError(t, err)

	for _, n := range []int{0, 1, 21, 53, 85, 87, 88, len(encoded) - 1} {
		_, err := DecodeCalls(encoded[:n])
		assert.ErrorIs(t, err, core.ErrTruncatedBatch, "prefix length %d", n)
	}
}

func TestDecodeCallsTrailingBytes(t *testing.T) {
	encoded, err := EncodeCalls([]CallDescriptor{{Target: testAddr(0x40)}})
	require.NoError(t, err)
	_, err = DecodeCalls(append(encoded, 0x00))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDecodeCallsUnknownPolicy(t *testing.T) {
	encoded, err := EncodeCalls([]CallDescriptor{{Target: testAddr(0x40)}})
	require.NoError(t, err)
	// Policy byte sits right after target, value, budget and flags.
	encoded[1+20+32+32+1] = 0x09
	_, err = DecodeCalls(encoded)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
