// Command rxdemo runs latest-value combinations over values given on the
// command line, with each source fed by its own producer goroutine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rxdemo",
		Short: "Explore rx latest-value combinations from the terminal",
		Long: `rxdemo feeds comma-separated values into concurrent sources and
prints every combined emission, followed by the terminal event.

  rxdemo combine -s 1,2,3 -s a,b --delay 20ms`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		combineCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
