package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWasmTargetPersists(t *testing.T) {
	engine, err := NewEngine(&Config{
		ModuleAddress:  testModule,
		ContextType:    "memory",
		WasmModulesDir: t.TempDir(),
	})
	require.NoError(t, err)

	addr := testAddr(0x40)
	code := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	require.NoError(t, engine.RegisterWasmTarget(addr, code))

	stored, err := engine.repo.GetCode(addr)
	require.NoError(t, err)
	assert.Equal(t, code, stored.Code)

	// Same address cannot be registered twice.
	assert.Error(t, engine.RegisterWasmTarget(addr, code))
}

func TestRegisterWasmTargetEmptyCode(t *testing.T) {
	engine, _ := newTestEngine(t)
	assert.Error(t, engine.RegisterWasmTarget(testAddr(0x40), nil))
}

func TestLoadWasmTargetsWithoutRepo(t *testing.T) {
	engine, _ := newTestEngine(t)
	assert.NoError(t, engine.LoadWasmTargets())
}

func TestLoadWasmTargetsReregisters(t *testing.T) {
	dir := t.TempDir()
	engine, err := NewEngine(&Config{
		ModuleAddress:  testModule,
		ContextType:    "memory",
		WasmModulesDir: dir,
	})
	require.NoError(t, err)
	require.NoError(t, engine.RegisterWasmTarget(testAddr(0x40),
		[]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}))

	// A fresh engine over the same directory picks the target back up.
	restarted, err := NewEngine(&Config{
		ModuleAddress:  testModule,
		ContextType:    "memory",
		WasmModulesDir: dir,
	})
	require.NoError(t, err)
	require.NoError(t, restarted.LoadWasmTargets())

	addrs, err := restarted.repo.List()
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
}
