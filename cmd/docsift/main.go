// docsift analyzes loosely structured markdown documents: it extracts pipe
// tables and a narrative digest in parallel, then synthesizes an analysis
// report through a generative model.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docsift/internal/logging"
)

var version = "0.3.0"

func main() {
	root := &cobra.Command{
		Use:   "docsift",
		Short: "Structured analysis of markdown documents",
		Long: `docsift ingests a markdown document containing narrative prose and
pipe-delimited tables, extracts both in parallel, and produces a structured
analysis envelope, optionally enriched by a generative model.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newAnalyzeCmd())

	defer logging.Sync()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
