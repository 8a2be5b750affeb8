// Package repository stores wasm target modules on disk, keyed by the
// dispatch address they are registered under.
package repository

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/smartacct/vm/core"
)

// Manager is the on-disk module store.
type Manager struct {
	rootDir string
}

// ModuleCode is one stored wasm module.
type ModuleCode struct {
	Address    core.Address
	Code       []byte
	UpdateTime time.Time
	Hash       core.Hash
}

// ModuleMetadata is the sidecar metadata persisted next to the module.
type ModuleMetadata struct {
	Hash       string    `json:"hash"`
	UpdateTime time.Time `json:"update_time"`
}

// NewManager creates a module store rooted at rootDir.
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		slog.Error("failed to create root directory", "dir", rootDir, "error", err)
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &Manager{
		rootDir: rootDir,
	}, nil
}

// RegisterCode stores a new wasm module for the given dispatch address.
func (m *Manager) RegisterCode(address core.Address, code []byte) error {
	if len(code) == 0 {
		return fmt.Errorf("module code is empty")
	}

	moduleDir := m.getModuleDir(address)
	if _, err := os.Stat(moduleDir); err == nil {
		return fmt.Errorf("module already exists: %s", address)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check module directory: %w", err)
	}

	if err := os.MkdirAll(moduleDir, 0755); err != nil {
		return fmt.Errorf("failed to create module directory: %w", err)
	}

	module := &ModuleCode{
		Address:    address,
		Code:       code,
		UpdateTime: time.Now(),
		Hash:       core.GetHash(code),
	}

	if err := m.saveModuleFiles(module); err != nil {
		os.RemoveAll(moduleDir)
		return fmt.Errorf("failed to save module files: %w", err)
	}

	return nil
}

// GetCode loads the stored module for the given dispatch address.
func (m *Manager) GetCode(address core.Address) (*ModuleCode, error) {
	return m.loadModuleCode(address)
}

// List returns the addresses of all stored modules.
func (m *Manager) List() ([]core.Address, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}
	addrs := make([]core.Address, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		addr, err := core.AddressFromString(entry.Name())
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// Remove deletes the stored module for the given dispatch address.
func (m *Manager) Remove(address core.Address) error {
	return os.RemoveAll(m.getModuleDir(address))
}

func (m *Manager) getModuleDir(address core.Address) string {
	return filepath.Join(m.rootDir, address.String())
}

func (m *Manager) saveModuleFiles(module *ModuleCode) error {
	dir := m.getModuleDir(module.Address)

	if err := os.WriteFile(filepath.Join(dir, "module.wasm"), module.Code, 0644); err != nil {
		return fmt.Errorf("failed to save module code: %w", err)
	}

	metadata := ModuleMetadata{
		Hash:       hex.EncodeToString(module.Hash.Bytes()),
		UpdateTime: module.UpdateTime,
	}

	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

func (m *Manager) loadModuleCode(address core.Address) (*ModuleCode, error) {
	dir := m.getModuleDir(address)

	code, err := os.ReadFile(filepath.Join(dir, "module.wasm"))
	if err != nil {
		return nil, fmt.Errorf("failed to read module code: %w", err)
	}

	metadataBytes, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata ModuleMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	hashBytes, err := hex.DecodeString(metadata.Hash)
	if err != nil {
		return nil, fmt.Errorf("invalid hash in metadata: %w", err)
	}

	return &ModuleCode{
		Address:    address,
		Code:       code,
		UpdateTime: metadata.UpdateTime,
		Hash:       core.BytesToHash(hashBytes),
	}, nil
}
