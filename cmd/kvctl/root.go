package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"emberdb/pkg/config"
)

var (
	dbDirectory string
	verbose     bool
	jsonOut     bool
)

var rootCmd = &cobra.Command{
	Use:   "kvctl",
	Short: "Inspect and manipulate an emberdb database",
	Long: `kvctl is a command-line client for emberdb, an embeddable persistent
key-value store. It supports point reads, writes, deletes, and dumping a
consistent snapshot of a database directory.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&dbDirectory, "db", "emberdb-data", "path to the database directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openOptions() config.Options {
	return config.Default()
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}
