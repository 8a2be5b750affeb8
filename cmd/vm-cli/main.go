// vm-cli executes hydrated call batches and settlement operations against a
// chosen ledger context.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartacct/vm/api"
	"github.com/smartacct/vm/context"
	_ "github.com/smartacct/vm/context/db"
	_ "github.com/smartacct/vm/context/memory"
	"github.com/smartacct/vm/core"
	"github.com/smartacct/vm/vm"
)

var (
	contextType string
	dbPath      string
	moduleAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "vm-cli",
	Short: "Smart-account execution engine CLI",
	Long: `vm-cli runs hydrated call batches, balance injections and sweeps
against an in-memory or SQLite-backed ledger context.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&contextType, "context", "c", string(context.DBContextType), "ledger context type (memory|db)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./ledger.db", "SQLite database path for the db context")
	rootCmd.PersistentFlags().StringVar(&moduleAddr, "module", api.DefaultModuleAddress.String(), "deployed identity of the engine logic")

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(mintCmd)
}

// newEngine builds an engine from the persistent flags.
func newEngine() (*vm.Engine, error) {
	module, err := core.AddressFromString(moduleAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid module address: %w", err)
	}
	config := &vm.Config{
		ModuleAddress: module,
		ContextType:   contextType,
		ContextParams: map[string]any{"db_path": dbPath},
	}
	engine, err := vm.NewEngine(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
