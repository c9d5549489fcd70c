package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version info (set via ldflags)
	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lazyloop",
		Short: "Run a command over and over with a randomized pause in between",
		Long: `lazyloop runs a program in a loop.

Each iteration:
  1. Runs the program with the given arguments
  2. Judges success from its exit status (or output markers)
  3. Logs "Done in X.XXs." for successful iterations
  4. Pauses for a random delay before the next iteration

The loop stops after --loop-count iterations, or runs until interrupted.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCheckCmd())
	return root
}
