package main

import (
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fazecat/contractionscout/Internal/app"
	datafeed "github.com/fazecat/contractionscout/Internal/database"
	"github.com/fazecat/contractionscout/Internal/strategy/detection"
	"github.com/fazecat/contractionscout/Internal/utils/formatting"
	"github.com/fazecat/contractionscout/Internal/utils/logging"
	"github.com/fazecat/contractionscout/Internal/utils/scanner"
)

type replayOptions struct {
	csvPath string
	last    bool
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay SYMBOL",
		Short: "Evaluate every bar of a symbol's history",
		Long: `Replay feeds the history bar by bar and evaluates the detector on each
closed bar, the way a chart recomputes. It reports every bar where the
pattern was present and how many separate episodes those bars form.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, root, opts, strings.ToUpper(args[0]))
		},
	}
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "Replay bars from this CSV file instead of fetching them")
	cmd.Flags().BoolVar(&opts.last, "last", false, "Print pivots and legs of the newest hit")
	return cmd
}

func runReplay(cmd *cobra.Command, root *rootOptions, opts *replayOptions, symbol string) error {
	cfg, err := root.load(cmd)
	if err != nil {
		return err
	}

	var report scanner.ReplayReport
	if opts.csvPath != "" {
		profile := root.profile
		detCfg, err := cfg.DetectorConfig(profile)
		if err != nil {
			return err
		}
		bars, err := datafeed.LoadBarsCSV(opts.csvPath)
		if err != nil {
			return err
		}
		report, err = scanner.Replay(bars, detCfg, logging.Component("replay"))
		if err != nil {
			return err
		}
		report.Symbol = symbol
	} else {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		services, err := app.Build(ctx, cfg, app.Options{NoStore: true})
		if err != nil {
			return err
		}
		defer services.Close()

		req, err := services.Request(symbol, root.profile)
		if err != nil {
			return err
		}
		report, err = services.Scanner.ReplaySymbol(ctx, req)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if root.format == "json" {
		return writeJSON(out, struct {
			scanner.ReplayReport
			Episodes int `json:"episodes"`
		}{report, report.Episodes()})
	}

	fmt.Fprintf(out, "%s: %d bars, %d evaluated, %d found in %d episodes\n",
		report.Symbol, report.Bars, report.Evaluated, len(report.Hits), report.Episodes())
	reasons := make([]string, 0, len(report.Reasons))
	for reason := range report.Reasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "  %-22s %d\n", strings.ToLower(reason), report.Reasons[detection.Reason(reason)])
	}
	for _, h := range report.Hits {
		fmt.Fprintf(out, "  bar %-6d %s  ratio %.2f  pivots %d\n",
			h.BarIndex, h.Time.Format("2006-01-02 15:04"), h.Result.ContractionRatio, len(h.Result.Pivots))
	}
	if opts.last && len(report.Hits) > 0 {
		fmt.Fprintln(out)
		formatting.WriteResult(out, report.Symbol, report.Hits[len(report.Hits)-1].Result)
	}
	return nil
}
