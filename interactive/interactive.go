package interactive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	datafeed "github.com/fazecat/contractionscout/Internal/database"
	"github.com/fazecat/contractionscout/Internal/types"
	"github.com/fazecat/contractionscout/Internal/utils/config"
	"github.com/fazecat/contractionscout/Internal/utils/formatting"
	"github.com/fazecat/contractionscout/Internal/utils/scanner"
)

// HistoryReader is the part of the detection store the menus read.
type HistoryReader interface {
	GetDetectionHistory(ctx context.Context, symbol string, limit int) ([]datafeed.DetectionRecord, error)
	GetDetectionStats(ctx context.Context, symbol string, lookbackDays int) (*datafeed.DetectionStats, error)
}

// Session holds what the console menus need. Input is line based.
type Session struct {
	Config  *config.Config
	Scanner *scanner.Scanner
	History HistoryReader // nil without a database
	Logger  zerolog.Logger

	in  *bufio.Reader
	out io.Writer
}

func NewSession(cfg *config.Config, s *scanner.Scanner, history HistoryReader, in io.Reader, out io.Writer) *Session {
	return &Session{
		Config:  cfg,
		Scanner: s,
		History: history,
		Logger:  zerolog.Nop(),
		in:      bufio.NewReader(in),
		out:     out,
	}
}

func (s *Session) Out() io.Writer { return s.out }

// Prompt prints label and returns the trimmed reply. io.EOF is returned once input ends.
func (s *Session) Prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return line, err
	}
	return line, nil
}

func (s *Session) promptChoice(label string, max int) (int, error) {
	reply, err := s.Prompt(label)
	if err != nil {
		return 0, err
	}
	choice, err := strconv.Atoi(reply)
	if err != nil || choice < 1 || choice > max {
		return 0, fmt.Errorf("invalid choice %q", reply)
	}
	return choice, nil
}

var timeframes = []struct {
	label string
	value string
}{
	{"1 Minute", "1Min"},
	{"5 Minutes", "5Min"},
	{"15 Minutes", "15Min"},
	{"30 Minutes", "30Min"},
	{"1 Hour", "1Hour"},
	{"4 Hours", "4Hour"},
	{"1 Day", "1Day"},
	{"1 Week", "1Week"},
}

// ShowTimeframeMenu returns the chosen timeframe. An empty reply keeps current.
func (s *Session) ShowTimeframeMenu(current string) (string, error) {
	fmt.Fprintln(s.out, "Choose timeframe:")
	for i, tf := range timeframes {
		fmt.Fprintf(s.out, "%d. %s\n", i+1, tf.label)
	}
	reply, err := s.Prompt(fmt.Sprintf("Enter choice [%s]: ", current))
	if err != nil {
		return "", err
	}
	if reply == "" {
		return current, nil
	}
	choice, err := strconv.Atoi(reply)
	if err != nil || choice < 1 || choice > len(timeframes) {
		return "", fmt.Errorf("invalid choice %q", reply)
	}
	return timeframes[choice-1].value, nil
}

// ShowProfileMenu returns the chosen profile. An empty reply picks the default profile.
func (s *Session) ShowProfileMenu() (string, error) {
	names := s.Config.ProfileNames()
	fmt.Fprintln(s.out, "\nChoose detector profile:")
	for i, name := range names {
		p := s.Config.Profiles[name]
		fmt.Fprintf(s.out, "%d. %-10s %s\n", i+1, name, p.Description)
	}
	reply, err := s.Prompt(fmt.Sprintf("Enter choice [%s]: ", s.Config.Global.DefaultProfile))
	if err != nil {
		return "", err
	}
	if reply == "" {
		return s.Config.Global.DefaultProfile, nil
	}
	choice, err := strconv.Atoi(reply)
	if err != nil || choice < 1 || choice > len(names) {
		return "", fmt.Errorf("invalid choice %q", reply)
	}
	return names[choice-1], nil
}

func (s *Session) request(symbol, profile, timeframe string) (scanner.Request, error) {
	cfg, err := s.Config.DetectorConfig(profile)
	if err != nil {
		return scanner.Request{}, err
	}
	return scanner.Request{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Profile:     profile,
		Config:      cfg,
		HistoryBars: s.Config.Global.HistoryBars,
	}, nil
}

// AnalyzeSymbol evaluates one symbol at its newest bar and prints the full breakdown.
func (s *Session) AnalyzeSymbol(ctx context.Context) error {
	symbol, err := s.Prompt("Enter symbol (e.g. AAPL or BTC/USD): ")
	if err != nil {
		return err
	}
	symbol = strings.ToUpper(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}

	timeframe, err := s.ShowTimeframeMenu(s.Config.Global.Timeframe)
	if err != nil {
		return err
	}
	profile, err := s.ShowProfileMenu()
	if err != nil {
		return err
	}
	req, err := s.request(symbol, profile, timeframe)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "\n🔍 Analyzing %s on %s with profile %s...\n", symbol, timeframe, profile)
	res, err := s.Scanner.ScanSymbol(ctx, req)
	if err != nil {
		return err
	}

	formatting.WriteResult(s.out, symbol, res.Result)
	if res.Stored {
		fmt.Fprintln(s.out, "💾 Detection stored")
	}
	return nil
}

// ScanWatchlist evaluates every watchlist symbol and prints a ranked table.
func (s *Session) ScanWatchlist(ctx context.Context) error {
	symbols := s.Config.Global.Watchlist
	if len(symbols) == 0 {
		return fmt.Errorf("watchlist is empty, add symbols under Configure")
	}
	profile, err := s.ShowProfileMenu()
	if err != nil {
		return err
	}
	base, err := s.request("", profile, s.Config.Global.Timeframe)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "\n📡 Scanning %d symbols on %s...\n\n", len(symbols), base.Timeframe)
	results, err := s.Scanner.ScanWatchlist(ctx, symbols, base)
	if err != nil {
		return err
	}

	candidates := make([]types.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, r.Candidate())
	}
	formatting.WriteCandidates(s.out, candidates)

	found := scanner.Found(results)
	if len(found) == 0 {
		fmt.Fprintln(s.out, "\nNo contraction patterns right now.")
		return nil
	}
	fmt.Fprintf(s.out, "\n✅ %d contracting: ", len(found))
	for i, r := range found {
		if i > 0 {
			fmt.Fprint(s.out, ", ")
		}
		fmt.Fprint(s.out, r.Symbol)
	}
	fmt.Fprintln(s.out)
	return nil
}

// ReplayCSV replays a CSV file bar by bar and lists the bars where the pattern was present.
func (s *Session) ReplayCSV(ctx context.Context) error {
	path, err := s.Prompt("CSV file with time,open,high,low,close columns: ")
	if err != nil {
		return err
	}
	bars, err := datafeed.LoadBarsCSV(path)
	if err != nil {
		return err
	}
	profile, err := s.ShowProfileMenu()
	if err != nil {
		return err
	}
	cfg, err := s.Config.DetectorConfig(profile)
	if err != nil {
		return err
	}

	report, err := scanner.Replay(bars, cfg, s.Logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "\n⏪ %d bars, %d evaluated, %d found in %d episodes\n",
		report.Bars, report.Evaluated, len(report.Hits), report.Episodes())
	for _, h := range report.Hits {
		fmt.Fprintf(s.out, "  %s  ratio %.2f  pivots %d\n",
			h.Time.Format("2006-01-02 15:04"), h.Result.ContractionRatio, len(h.Result.Pivots))
	}
	return nil
}

// ShowHistory lists stored detections and their 30 day summary.
func (s *Session) ShowHistory(ctx context.Context) error {
	if s.History == nil {
		return fmt.Errorf("detection history needs a database (set DB_HOST and friends)")
	}
	symbol, err := s.Prompt("Symbol (blank for all): ")
	if err != nil {
		return err
	}
	symbol = strings.ToUpper(symbol)

	records, err := s.History.GetDetectionHistory(ctx, symbol, 20)
	if err != nil {
		return err
	}
	stats, err := s.History.GetDetectionStats(ctx, symbol, 30)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, "\n"+formatting.Separator(60))
	fmt.Fprintln(s.out, "📜 DETECTION HISTORY")
	fmt.Fprintln(s.out, formatting.Separator(60))
	if len(records) == 0 {
		fmt.Fprintln(s.out, "No detections stored yet.")
	}
	for _, r := range records {
		fmt.Fprintf(s.out, "%s  %-8s %-6s %-9s ratio %.2f  range %s%%\n",
			r.DetectedAt.Format("2006-01-02 15:04"), r.Symbol, r.Timeframe, r.Profile,
			r.ContractionRatio, r.RangePercent().StringFixed(1))
	}
	fmt.Fprintf(s.out, "\nLast 30 days: %d detections across %d symbols, avg ratio %.2f, tightest %s (%s%%)\n",
		stats.TotalDetections, stats.DistinctSymbols, stats.AverageRatio,
		stats.TightestSymbol, stats.TightestRangePct.StringFixed(1))
	return nil
}

// Configure opens the configuration editor on the session's input.
func (s *Session) Configure() error {
	return config.Configure(s.Config, s.in, s.out)
}

// Run shows the main menu until the user exits or input ends.
func (s *Session) Run(ctx context.Context) error {
	actions := map[int]func(context.Context) error{
		1: s.AnalyzeSymbol,
		2: s.ScanWatchlist,
		3: s.ReplayCSV,
		4: s.ShowHistory,
		5: func(context.Context) error { return s.Configure() },
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "\n--- ContractionScout Menu ---")
		fmt.Fprintln(s.out, "1. Analyze Symbol")
		fmt.Fprintln(s.out, "2. Scan Watchlist")
		fmt.Fprintln(s.out, "3. Replay CSV")
		fmt.Fprintln(s.out, "4. Detection History")
		fmt.Fprintln(s.out, "5. Configure Settings")
		fmt.Fprintln(s.out, "6. Exit")

		choice, err := s.promptChoice("Enter choice (1-6): ", 6)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(s.out, "Invalid input. Try again.")
			continue
		}
		if choice == 6 {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}

		if err := actions[choice](ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.Logger.Debug().Err(err).Int("choice", choice).Msg("menu action failed")
			fmt.Fprintf(s.out, "❌ %v\n", err)
		}
	}
}
