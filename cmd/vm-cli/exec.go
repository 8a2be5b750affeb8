package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartacct/vm/core"
)

var (
	batchFile   string
	programFile string
	selfAddr    string
	callerAddr  string
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Hydrate and execute a call batch",
	Long: `Hydrate and execute a packed call batch.
Example: vm-cli exec -b batch.hex -p program.hex --self 0x... --caller 0x...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := readHexFile(batchFile)
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		var program []byte
		if programFile != "" {
			if program, err = readHexFile(programFile); err != nil {
				return fmt.Errorf("failed to read program: %w", err)
			}
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}

		self := engine.ModuleAddress()
		if selfAddr != "" {
			if self, err = core.AddressFromString(selfAddr); err != nil {
				return fmt.Errorf("invalid self address: %w", err)
			}
		}
		caller := core.Address{}
		if callerAddr != "" {
			if caller, err = core.AddressFromString(callerAddr); err != nil {
				return fmt.Errorf("invalid caller address: %w", err)
			}
		}

		frame := engine.Frame(self, caller, caller)
		slog.Info("executing batch", "self", self, "caller", caller, "batch", len(batch), "program", len(program))

		results, err := engine.HydrateAndExecute(frame, batch, program)
		if err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
		for i, result := range results {
			fmt.Printf("call %d: success=%v return=0x%x\n", i, result.Success, result.ReturnData)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().StringVarP(&batchFile, "batch", "b", "", "hex file with the packed call batch")
	execCmd.Flags().StringVarP(&programFile, "program", "p", "", "hex file with the hydration program")
	execCmd.Flags().StringVar(&selfAddr, "self", "", "executing storage identity (defaults to the module address)")
	execCmd.Flags().StringVar(&callerAddr, "caller", "", "immediate caller address")
	execCmd.MarkFlagRequired("batch")
}

// readHexFile reads a file containing hex bytes, ignoring whitespace and an
// optional 0x prefix.
func readHexFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "0x")
	s = strings.Join(strings.Fields(s), "")
	return hex.DecodeString(s)
}
