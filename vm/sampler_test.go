package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

func TestResolveAccount(t *testing.T) {
	frame := types.ExecutionFrame{
		Self:   testAddr(0xaa),
		Code:   testModule,
		Caller: testAddr(0xbb),
		Origin: testAddr(0xcc),
	}
	s := NewSampler(newTestLedger(t), frame)

	for _, tc := range []struct {
		source   ValueSource
		explicit core.Address
		want     core.Address
	}{
		{SourceSelf, core.ZeroAddress, frame.Self},
		{SourceCaller, core.ZeroAddress, frame.Caller},
		{SourceOrigin, core.ZeroAddress, frame.Origin},
		{SourceExplicit, testAddr(0xdd), testAddr(0xdd)},
	} {
		got, err := s.ResolveAccount(tc.source, tc.explicit)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := s.ResolveAccount(ValueSource(0x7), core.ZeroAddress)
	assert.ErrorIs(t, err, core.ErrUnknownValueSource)
}
