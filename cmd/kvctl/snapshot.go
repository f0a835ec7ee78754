package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"emberdb/pkg/kvstore"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "snapshot",
		Short: "Take a consistent snapshot and list the segment file ids visible through it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot()
		},
	})
}

func runSnapshot() error {
	db, err := kvstore.Open(dbDirectory, openOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	it, err := db.NewIterator(kvstore.ReadOptions{})
	if err != nil {
		return fmt.Errorf("failed to build iterator: %w", err)
	}
	defer it.Snapshot().Close()
	defer it.Close()

	fileIDs := it.FileIDs()
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"snapshot_id": it.Snapshot().ID(),
			"file_ids":    fileIDs,
		})
	}

	fmt.Printf("snapshot %d: %d segment file(s)\n", it.Snapshot().ID(), len(fileIDs))
	for _, id := range fileIDs {
		fmt.Printf("  %08d.seg\n", id)
	}
	return nil
}
