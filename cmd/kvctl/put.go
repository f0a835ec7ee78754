package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"emberdb/pkg/kvstore"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "put <key> <value>",
		Short: "Set the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(args[0], args[1])
		},
	})
}

func runPut(key, value string) error {
	printVerbose("opening database: %s\n", dbDirectory)
	db, err := kvstore.Open(dbDirectory, openOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Put([]byte(key), []byte(value)); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	printVerbose("put %q (%d bytes)\n", key, len(value))
	return nil
}
