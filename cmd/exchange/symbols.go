package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/stockex/pkg/app/core/market"
)

func newSymbolsCmd() *cobra.Command {
	var file string
	registry := func() *market.FileRegistry {
		if file == "" {
			file = loadConfig().Symbols.File
		}
		return market.NewFileRegistry(file, nil)
	}

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List or edit the tradable symbol allow-list",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "allow-list file (default SYMBOLS_FILE)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the tradable symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printSymbols(cmd.OutOrStdout(), registry())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <symbol>...",
		Short: "Make symbols tradable",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := registry()
			for _, s := range args {
				if err := r.Add(s); err != nil {
					return err
				}
			}
			return printSymbols(cmd.OutOrStdout(), r)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <symbol>...",
		Short: "Stop accepting orders for symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := registry()
			for _, s := range args {
				if err := r.Remove(s); err != nil {
					return err
				}
			}
			return printSymbols(cmd.OutOrStdout(), r)
		},
	})
	return cmd
}

func printSymbols(out io.Writer, r *market.FileRegistry) error {
	symbols, err := r.Symbols()
	if err != nil {
		return err
	}
	for _, s := range symbols {
		fmt.Fprintln(out, s)
	}
	return nil
}
