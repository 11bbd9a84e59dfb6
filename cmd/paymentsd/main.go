// Command paymentsd serves the payment request API and runs its maintenance tasks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/buildhub-payments/internal/common"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "paymentsd",
	Short: "Payment requests, approvals and receipt verification for construction projects",
	Long: `paymentsd runs the payment request subsystem.

Contractors submit stage or custom payment requests against a project,
homeowners approve or reject them, receipts are uploaded and verified.

Configuration comes from an optional YAML file (--config) and the
environment (PAYMENTS_* keys, plus DB_URL, DB_DRIVER, HTTP_ADDR, GRPC_ADDR
and JWT_SECRET).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates configuration and builds the process logger.
func loadConfig(validate bool) (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
