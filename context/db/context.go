// Package db implements the LedgerContext interface using SQLite with GORM.
// Balances, allowances and emitted events persist across processes;
// transient storage and target handlers are per-process by definition.
package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/holiman/uint256"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/smartacct/vm/context"
	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/types"
)

const (
	defaultDBPath = "./ledger.db"
)

// DBBalance represents a native-asset balance in the database.
type DBBalance struct {
	Address string `gorm:"column:address;primaryKey;size:42"`
	Amount  string `gorm:"column:balance;not null;default:0;size:78"`
}

// TableName specifies the table name for DBBalance
func (DBBalance) TableName() string {
	return "balances"
}

// DBToken represents a registered fungible asset.
type DBToken struct {
	gorm.Model
	Token string `gorm:"column:token_address;not null;unique;index;size:42"`
}

// TableName specifies the table name for DBToken
func (DBToken) TableName() string {
	return "tokens"
}

// DBTokenBalance represents a fungible-asset balance in the database.
type DBTokenBalance struct {
	Token   string `gorm:"column:token_address;primaryKey;size:42"`
	Address string `gorm:"column:address;primaryKey;size:42"`
	Amount  string `gorm:"column:balance;not null;default:0;size:78"`
}

// TableName specifies the table name for DBTokenBalance
func (DBTokenBalance) TableName() string {
	return "token_balances"
}

// DBTokenAllowance represents an owner->spender allowance in the database.
type DBTokenAllowance struct {
	Token   string `gorm:"column:token_address;primaryKey;size:42"`
	Owner   string `gorm:"column:owner_address;primaryKey;size:42"`
	Spender string `gorm:"column:spender_address;primaryKey;size:42"`
	Amount  string `gorm:"column:allowance;not null;default:0;size:78"`
}

// TableName specifies the table name for DBTokenAllowance
func (DBTokenAllowance) TableName() string {
	return "token_allowances"
}

// DBEvent represents an emitted audit event in the database.
type DBEvent struct {
	gorm.Model
	TxHash    string `gorm:"column:tx_hash;not null;index;size:66"`
	Contract  string `gorm:"column:contract_address;not null;index;size:42"`
	EventName string `gorm:"column:event_name;not null;index;size:255"`
	KeyValues []byte `gorm:"column:key_values;type:blob;not null"` // JSON encoded key-value pairs
}

// TableName specifies the table name for DBEvent
func (DBEvent) TableName() string {
	return "events"
}

type transientKey struct {
	owner core.Address
	slot  core.Hash
}

// Context implements the LedgerContext interface using SQLite with GORM.
type Context struct {
	db *gorm.DB

	mu        sync.Mutex
	txHash    core.Hash
	origin    core.Address
	transient map[transientKey]core.Hash
	handlers  map[core.Address]types.CallHandler
}

func init() {
	context.Register(context.DBContextType, NewContext)
}

// NewContext creates a new SQLite-backed ledger context using GORM.
func NewContext(params map[string]any) types.LedgerContext {
	if params == nil {
		params = make(map[string]any)
	}
	dbPath := defaultDBPath
	if path, ok := params["db_path"].(string); ok && path != "" {
		dbPath = path
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		panic(fmt.Errorf("failed to create db directory: %v", err))
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		panic(fmt.Errorf("failed to open database: %v", err))
	}

	ctx := &Context{
		db:        db,
		transient: make(map[transientKey]core.Hash),
		handlers:  make(map[core.Address]types.CallHandler),
	}
	ctx.initDB()
	return ctx
}

func (c *Context) initDB() {
	err := c.db.AutoMigrate(
		&DBBalance{},
		&DBToken{},
		&DBTokenBalance{},
		&DBTokenAllowance{},
		&DBEvent{},
	)
	if err != nil {
		panic(fmt.Errorf("failed to migrate database: %v", err))
	}
}

func (c *Context) WithTransaction(txHash core.Hash, origin core.Address) types.LedgerContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txHash = txHash
	c.origin = origin
	c.transient = make(map[transientKey]core.Hash)
	return c
}

func (c *Context) TransactionHash() core.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txHash
}

func parseAmount(s string) *uint256.Int {
	if s == "" {
		return uint256.NewInt(0)
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		panic(fmt.Errorf("corrupt balance record %q: %v", s, err))
	}
	return amount
}

// Balance implements types.LedgerContext
func (c *Context) Balance(addr core.Address) *uint256.Int {
	var balance DBBalance
	result := c.db.Where("address = ?", addr.String()).First(&balance)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return uint256.NewInt(0)
	}
	if result.Error != nil {
		panic(fmt.Errorf("failed to get balance: %v", result.Error))
	}
	return parseAmount(balance.Amount)
}

// Transfer implements types.LedgerContext
func (c *Context) Transfer(from, to core.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		var fromBalance DBBalance
		result := tx.Where("address = ?", from.String()).First(&fromBalance)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return core.ErrInsufficientBalance
		} else if result.Error != nil {
			return fmt.Errorf("failed to get sender balance: %v", result.Error)
		}

		fromAmount := parseAmount(fromBalance.Amount)
		if fromAmount.Lt(amount) {
			return core.ErrInsufficientBalance
		}

		if err := tx.Model(&DBBalance{}).Where("address = ?", from.String()).
			Update("balance", new(uint256.Int).Sub(fromAmount, amount).Dec()).Error; err != nil {
			return fmt.Errorf("failed to update sender balance: %v", err)
		}

		return creditBalance(tx, to, amount)
	})
}

func creditBalance(tx *gorm.DB, to core.Address, amount *uint256.Int) error {
	var toBalance DBBalance
	result := tx.Where("address = ?", to.String()).First(&toBalance)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		toBalance = DBBalance{
			Address: to.String(),
			Amount:  amount.Dec(),
		}
		if err := tx.Create(&toBalance).Error; err != nil {
			return fmt.Errorf("failed to create recipient balance: %v", err)
		}
		return nil
	} else if result.Error != nil {
		return fmt.Errorf("failed to get recipient balance: %v", result.Error)
	}
	toAmount := parseAmount(toBalance.Amount)
	if err := tx.Model(&DBBalance{}).Where("address = ?", to.String()).
		Update("balance", new(uint256.Int).Add(toAmount, amount).Dec()).Error; err != nil {
		return fmt.Errorf("failed to update recipient balance: %v", err)
	}
	return nil
}

// Mint implements types.LedgerContext
func (c *Context) Mint(addr core.Address, amount *uint256.Int) error {
	if amount == nil {
		return core.ErrInvalidArgument
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		return creditBalance(tx, addr, amount)
	})
}

// CreateToken implements types.LedgerContext
func (c *Context) CreateToken(token core.Address) error {
	var existing DBToken
	result := c.db.Where("token_address = ?", token.String()).First(&existing)
	if result.Error == nil {
		return nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to query token: %v", result.Error)
	}
	if err := c.db.Create(&DBToken{Token: token.String()}).Error; err != nil {
		return fmt.Errorf("failed to create token: %v", err)
	}
	return nil
}

func (c *Context) requireToken(tx *gorm.DB, token core.Address) error {
	var existing DBToken
	result := tx.Where("token_address = ?", token.String()).First(&existing)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", core.ErrUnknownAsset, token)
	}
	if result.Error != nil {
		return fmt.Errorf("failed to query token: %v", result.Error)
	}
	return nil
}

// TokenBalance implements types.LedgerContext
func (c *Context) TokenBalance(token, addr core.Address) (*uint256.Int, error) {
	if err := c.requireToken(c.db, token); err != nil {
		return nil, err
	}
	var balance DBTokenBalance
	result := c.db.Where("token_address = ? AND address = ?", token.String(), addr.String()).First(&balance)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return uint256.NewInt(0), nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get token balance: %v", result.Error)
	}
	return parseAmount(balance.Amount), nil
}

// TokenAllowance implements types.LedgerContext
func (c *Context) TokenAllowance(token, owner, spender core.Address) (*uint256.Int, error) {
	if err := c.requireToken(c.db, token); err != nil {
		return nil, err
	}
	var allowance DBTokenAllowance
	result := c.db.Where("token_address = ? AND owner_address = ? AND spender_address = ?",
		token.String(), owner.String(), spender.String()).First(&allowance)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return uint256.NewInt(0), nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get allowance: %v", result.Error)
	}
	return parseAmount(allowance.Amount), nil
}

// TokenTransfer implements types.LedgerContext
func (c *Context) TokenTransfer(token, from, to core.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		return tokenTransfer(tx, token, from, to, amount)
	})
}

func tokenTransfer(tx *gorm.DB, token, from, to core.Address, amount *uint256.Int) error {
	var fromBalance DBTokenBalance
	result := tx.Where("token_address = ? AND address = ?", token.String(), from.String()).First(&fromBalance)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: token %s", core.ErrInsufficientBalance, token)
	} else if result.Error != nil {
		return fmt.Errorf("failed to get sender token balance: %v", result.Error)
	}

	fromAmount := parseAmount(fromBalance.Amount)
	if fromAmount.Lt(amount) {
		return fmt.Errorf("%w: token %s", core.ErrInsufficientBalance, token)
	}

	if err := tx.Model(&DBTokenBalance{}).
		Where("token_address = ? AND address = ?", token.String(), from.String()).
		Update("balance", new(uint256.Int).Sub(fromAmount, amount).Dec()).Error; err != nil {
		return fmt.Errorf("failed to update sender token balance: %v", err)
	}

	var toBalance DBTokenBalance
	result = tx.Where("token_address = ? AND address = ?", token.String(), to.String()).First(&toBalance)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		toBalance = DBTokenBalance{
			Token:   token.String(),
			Address: to.String(),
			Amount:  amount.Dec(),
		}
		if err := tx.Create(&toBalance).Error; err != nil {
			return fmt.Errorf("failed to create recipient token balance: %v", err)
		}
		return nil
	} else if result.Error != nil {
		return fmt.Errorf("failed to get recipient token balance: %v", result.Error)
	}
	toAmount := parseAmount(toBalance.Amount)
	if err := tx.Model(&DBTokenBalance{}).
		Where("token_address = ? AND address = ?", token.String(), to.String()).
		Update("balance", new(uint256.Int).Add(toAmount, amount).Dec()).Error; err != nil {
		return fmt.Errorf("failed to update recipient token balance: %v", err)
	}
	return nil
}

// TokenTransferFrom implements types.LedgerContext
func (c *Context) TokenTransferFrom(token, spender, owner, to core.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := c.requireToken(tx, token); err != nil {
			return err
		}
		var allowance DBTokenAllowance
		result := tx.Where("token_address = ? AND owner_address = ? AND spender_address = ?",
			token.String(), owner.String(), spender.String()).First(&allowance)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: token %s", core.ErrInsufficientAllowance, token)
		} else if result.Error != nil {
			return fmt.Errorf("failed to get allowance: %v", result.Error)
		}
		allowed := parseAmount(allowance.Amount)
		if allowed.Lt(amount) {
			return fmt.Errorf("%w: token %s", core.ErrInsufficientAllowance, token)
		}
		if err := tokenTransfer(tx, token, owner, to, amount); err != nil {
			return err
		}
		if err := tx.Model(&DBTokenAllowance{}).
			Where("token_address = ? AND owner_address = ? AND spender_address = ?",
				token.String(), owner.String(), spender.String()).
			Update("allowance", new(uint256.Int).Sub(allowed, amount).Dec()).Error; err != nil {
			return fmt.Errorf("failed to update allowance: %v", err)
		}
		return nil
	})
}

// MintToken implements types.LedgerContext
func (c *Context) MintToken(token, addr core.Address, amount *uint256.Int) error {
	if amount == nil {
		return core.ErrInvalidArgument
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := c.requireToken(tx, token); err != nil {
			return err
		}
		var balance DBTokenBalance
		result := tx.Where("token_address = ? AND address = ?", token.String(), addr.String()).First(&balance)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tx.Create(&DBTokenBalance{
				Token:   token.String(),
				Address: addr.String(),
				Amount:  amount.Dec(),
			}).Error
		} else if result.Error != nil {
			return fmt.Errorf("failed to get token balance: %v", result.Error)
		}
		current := parseAmount(balance.Amount)
		return tx.Model(&DBTokenBalance{}).
			Where("token_address = ? AND address = ?", token.String(), addr.String()).
			Update("balance", new(uint256.Int).Add(current, amount).Dec()).Error
	})
}

// Approve implements types.LedgerContext
func (c *Context) Approve(token, owner, spender core.Address, amount *uint256.Int) error {
	if amount == nil {
		return core.ErrInvalidArgument
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := c.requireToken(tx, token); err != nil {
			return err
		}
		result := tx.Where("token_address = ? AND owner_address = ? AND spender_address = ?",
			token.String(), owner.String(), spender.String()).
			Assign(DBTokenAllowance{Amount: amount.Dec()}).
			FirstOrCreate(&DBTokenAllowance{
				Token:   token.String(),
				Owner:   owner.String(),
				Spender: spender.String(),
				Amount:  amount.Dec(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to set allowance: %v", result.Error)
		}
		return nil
	})
}

// TransientGet implements types.LedgerContext
func (c *Context) TransientGet(owner core.Address, slot core.Hash) core.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transient[transientKey{owner, slot}]
}

// TransientSet implements types.LedgerContext
func (c *Context) TransientSet(owner core.Address, slot core.Hash, value core.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transient[transientKey{owner, slot}] = value
}

// RegisterTarget implements types.LedgerContext
func (c *Context) RegisterTarget(addr core.Address, handler types.CallHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[addr] = handler
}

// Call implements types.LedgerContext
func (c *Context) Call(call types.HandlerCall) ([]byte, error) {
	if call.Value != nil && !call.Value.IsZero() && call.Self == call.Target {
		if err := c.Transfer(call.Caller, call.Target, call.Value); err != nil {
			return nil, err
		}
	}
	c.mu.Lock()
	handler := c.handlers[call.Target]
	c.mu.Unlock()
	if handler == nil {
		return nil, nil
	}
	return handler(c, call)
}

// Log implements types.LedgerContext
func (c *Context) Log(contract core.Address, eventName string, keyValues ...any) {
	data, err := json.Marshal(keyValues)
	if err != nil {
		slog.Error("Failed to marshal event data", "error", err)
		return
	}

	event := &DBEvent{
		TxHash:    c.TransactionHash().String(),
		Contract:  contract.String(),
		EventName: eventName,
		KeyValues: data,
	}

	if err := c.db.Create(event).Error; err != nil {
		slog.Error("Failed to save event", "error", err)
		return
	}

	params := []any{
		"tx", event.TxHash,
		"contract", contract,
		"event", eventName,
	}
	params = append(params, keyValues...)
	slog.Info("Ledger event", params...)
}

// Events implements types.LedgerContext
func (c *Context) Events() []types.Event {
	var rows []DBEvent
	if err := c.db.Where("tx_hash = ?", c.TransactionHash().String()).
		Order("id asc").Find(&rows).Error; err != nil {
		slog.Error("Failed to load events", "error", err)
		return nil
	}
	out := make([]types.Event, 0, len(rows))
	for _, row := range rows {
		contract, _ := core.AddressFromString(row.Contract)
		var keyValues []any
		if err := json.Unmarshal(row.KeyValues, &keyValues); err != nil {
			slog.Error("Failed to decode event data", "error", err)
		}
		out = append(out, types.Event{
			Contract:  contract,
			Name:      row.EventName,
			KeyValues: keyValues,
		})
	}
	return out
}
