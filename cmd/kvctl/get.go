package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"emberdb/pkg/kvstore"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args[0])
		},
	})
}

func runGet(key string) error {
	printVerbose("opening database: %s\n", dbDirectory)
	db, err := kvstore.Open(dbDirectory, openOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	value, closer, err := db.Get(context.Background(), kvstore.ReadOptions{}, []byte(key))
	if err != nil {
		return fmt.Errorf("get %q: %w", key, err)
	}
	defer closer.Close()

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]string{"key": key, "value": string(value)})
	}
	fmt.Println(string(value))
	return nil
}
