package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fazecat/contractionscout/Internal/utils/config"
	"github.com/fazecat/contractionscout/Internal/utils/logging"
)

type rootOptions struct {
	configPath string
	profile    string
	format     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "scan_cli",
		Short: "Volatility contraction scanner",
		Long: `scan_cli looks for volatility contraction patterns: price swinging around
an adaptive baseline in legs that keep getting smaller.

Examples:
  scan_cli scan                          # scan the configured watchlist
  scan_cli scan NVDA AMD --profile tight
  scan_cli replay AAPL --csv ./data/AAPL.csv --format json
  scan_cli profiles`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.yaml (default: search the usual locations)")
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "Detector profile (default: global.default_profile)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "table", "Output format: table, json")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")

	cmd.AddCommand(newScanCmd(opts), newReplayCmd(opts), newProfilesCmd(opts))
	return cmd
}

// load reads the config and installs the logger on stderr.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadConfigFile(o.configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logging.SetupWriter(cmd.ErrOrStderr(), level, cfg.Logging.Pretty)

	switch o.format {
	case "table", "json":
	default:
		return nil, fmt.Errorf("unknown format %q: use table or json", o.format)
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newProfilesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List detector profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(out, cfg.Profiles)
			}
			for _, name := range cfg.ProfileNames() {
				p := cfg.Profiles[name]
				marker := " "
				if name == cfg.Global.DefaultProfile {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-10s scan=%d overscan=%d legs=%d contracting>=%.0f%% delta=%.2f  %s\n",
					marker, name, p.ScanLength, p.OverscanLength, p.MinimumRequiredLegs,
					p.MinimumPercentageContractingLegs*100, p.MinimumATRDelta, strings.TrimSpace(p.Description))
			}
			return nil
		},
	}
}
