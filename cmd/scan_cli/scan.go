package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fazecat/contractionscout/Internal/app"
	"github.com/fazecat/contractionscout/Internal/types"
	"github.com/fazecat/contractionscout/Internal/utils/formatting"
	"github.com/fazecat/contractionscout/Internal/utils/scanner"
)

type scanOptions struct {
	csvDir  string
	noStore bool
	detail  bool
}

type scanRow struct {
	Symbol           string  `json:"symbol"`
	Found            bool    `json:"found"`
	ContractionRatio float64 `json:"contraction_ratio"`
	PivotCount       int     `json:"pivot_count"`
	LastClose        float64 `json:"last_close"`
	Analysis         string  `json:"analysis"`
	Stored           bool    `json:"stored"`
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [SYMBOL...]",
		Short: "Evaluate symbols at their newest bar",
		Long: `Fetch history for each symbol, run the detector over every bar and report
whether the pattern is present at the newest bar. Without arguments the
configured watchlist is scanned. Found patterns are stored when a database
is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.csvDir, "csv-dir", "", "Read bars from <dir>/<SYMBOL>.csv instead of Alpaca")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "Do not store detections")
	cmd.Flags().BoolVar(&opts.detail, "detail", false, "Print pivots and legs for found patterns")
	return cmd
}

func runScan(cmd *cobra.Command, root *rootOptions, opts *scanOptions, args []string) error {
	cfg, err := root.load(cmd)
	if err != nil {
		return err
	}

	symbols := cfg.Global.Watchlist
	if len(args) > 0 {
		symbols = make([]string, 0, len(args))
		for _, a := range args {
			symbols = append(symbols, strings.ToUpper(a))
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols given and global.watchlist is empty")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := app.Build(ctx, cfg, app.Options{CSVDir: opts.csvDir, NoStore: opts.noStore || opts.csvDir != ""})
	if err != nil {
		return err
	}
	defer services.Close()

	base, err := services.Request("", root.profile)
	if err != nil {
		return err
	}
	results, err := services.Scanner.ScanWatchlist(ctx, symbols, base)
	if err != nil {
		return err
	}
	return printScan(cmd, root.format, opts.detail, base, results)
}

func printScan(cmd *cobra.Command, format string, detail bool, base scanner.Request, results []scanner.SymbolResult) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		rows := make([]scanRow, 0, len(results))
		for _, r := range results {
			c := r.Candidate()
			rows = append(rows, scanRow{
				Symbol:           c.Symbol,
				Found:            c.Found,
				ContractionRatio: c.ContractionRatio,
				PivotCount:       c.PivotCount,
				LastClose:        c.LastClose,
				Analysis:         c.Analysis,
				Stored:           r.Stored,
			})
		}
		return writeJSON(out, rows)
	}

	candidates := make([]types.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, r.Candidate())
	}
	found := scanner.Found(results)

	fmt.Fprintf(out, "Profile %s on %s: %d of %d symbols contracting\n\n", base.Profile, base.Timeframe, len(found), len(results))
	formatting.WriteCandidates(out, candidates)

	if detail {
		for _, r := range found {
			fmt.Fprintln(out)
			formatting.WriteResult(out, r.Symbol, r.Result)
		}
	}
	return nil
}
