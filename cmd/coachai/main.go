package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "coachai",
		Short:   "coachai — prompt templating and AI cost-optimization engine",
		Version: version,
	}

	root.AddCommand(
		newRunCmd(),
		newStatsCmd(),
		newCostCmd(),
		newQuotaCmd(),
		newTemplatesCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
