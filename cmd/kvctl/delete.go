package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"emberdb/pkg/kvstore"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Delete the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(args[0])
		},
	})
}

func runDelete(key string) error {
	db, err := kvstore.Open(dbDirectory, openOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Delete([]byte(key)); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	printVerbose("deleted %q\n", key)
	return nil
}
