// Command forktest generates process-isolation wrappers for test bodies
// discovered in package directories. See the gen package for the discovery
// and naming rules.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func root() *cobra.Command {
	root := &cobra.Command{
		Use:           "forktest",
		Short:         "generate wrappers that run test bodies in separate processes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(genCmd(), listCmd())
	return root
}
