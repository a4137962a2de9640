package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/stockex/params"
)

// envFile is the optional .env path shared by every subcommand.
var envFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "exchange",
		Short:         "Single-book stock exchange: match orders, publish trades",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default: ./.env if present)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newSymbolsCmd())
	return root
}

func loadConfig() params.Config {
	return params.LoadFromEnv(envFile)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
