package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"docsift/internal/analyze"
	"docsift/internal/config"
	"docsift/internal/llm"
	"docsift/internal/logging"
)

type analyzeOptions struct {
	file       string
	configPath string
	mock       bool
	async      bool
	jsonOut    bool
	verbose    bool
	timeout    time.Duration
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [flags]",
		Short: "Analyze a markdown document",
		Long: `Reads a document from --file (or stdin when piped), runs the extraction
pipeline, and prints the analysis envelope. Without a configured provider or
--mock, extraction runs without model assistance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "document to analyze (default: stdin, or a built-in sample)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a yaml config file")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "use the built-in mock model instead of a provider")
	cmd.Flags().BoolVar(&opts.async, "async", false, "run through the asynchronous entry point")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the raw envelope as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall run timeout")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.Logging.Verbose = cfg.Logging.Verbose || opts.verbose
	if err := logging.Init(cfg.Logging); err != nil {
		return err
	}
	if opts.mock {
		cfg.LLM.Provider = "mock"
	}

	document, err := readDocument(opts.file)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	analyzer, err := analyze.New(cfg, client)
	if err != nil {
		return err
	}

	var result *analyze.Result
	if opts.async {
		outcome := <-analyzer.Start(ctx, document)
		result, err = outcome.Result, outcome.Err
	} else {
		result, err = analyzer.Run(ctx, document)
	}
	if err != nil {
		return err
	}

	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printResult(cmd.OutOrStdout(), result, opts.verbose)
}

// readDocument resolves the input document: an explicit file, piped stdin,
// or the embedded sample as a last resort.
func readDocument(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read document: %w", err)
		}
		return string(data), nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if len(data) > 0 {
			return string(data), nil
		}
	}
	return sampleDocument, nil
}

func printResult(w io.Writer, result *analyze.Result, verbose bool) error {
	fmt.Fprintf(w, "Run %s\n\n", result.RunID)

	fmt.Fprintf(w, "Theory  [%s]", result.Theory.Status)
	if verbose {
		fmt.Fprintf(w, "  %v", result.Theory.Diagnostics)
	}
	fmt.Fprintln(w)

	tables := result.TableRecords()
	fmt.Fprintf(w, "Tables  [%s]  %d extracted", result.Tables.Status, len(tables))
	if verbose {
		fmt.Fprintf(w, "  %v", result.Tables.Diagnostics)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Report  [%s]\n\n", result.Report.Status)

	report := result.ReportText()
	if report == "" {
		if reason, ok := result.Report.Diagnostics["error"]; ok {
			fmt.Fprintf(w, "(no report: %s)\n", reason)
		}
		return nil
	}

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		rendered, err := glamour.Render(report, "dark")
		if err == nil {
			fmt.Fprint(w, rendered)
			return nil
		}
	}
	fmt.Fprintln(w, report)
	return nil
}

// sampleDocument mirrors the kind of input docsift is built for: narrative
// prose with an embedded results table.
const sampleDocument = `# Cognitive Load and Retention

This study examines the relationship between cognitive load during learning
and long-term retention of the studied material. Prior work suggests that
moderate load improves encoding, while overload suppresses it.

We hypothesize an inverted-U relationship between load and retention.

## Results

| Condition | Load Score | Retention (%) |
|-----------|------------|---------------|
| Low       | 2.1        | 61            |
| Moderate  | 5.4        | 83            |
| High      | 8.7        | 52            |

The moderate-load group significantly outperformed both extremes (p < 0.01).
`
