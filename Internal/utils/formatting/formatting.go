package formatting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/fazecat/contractionscout/Internal/strategy/detection"
	"github.com/fazecat/contractionscout/Internal/types"
)

var (
	foundLabel    = color.New(color.FgGreen, color.Bold).SprintFunc()
	notFoundLabel = color.New(color.FgYellow).SprintFunc()
	errorLabel    = color.New(color.FgRed).SprintFunc()
)

// Separator returns a line separator of given width
func Separator(width int) string {
	return strings.Repeat("=", width)
}

// ParseDate parses a date string in multiple formats
func ParseDate(dateStr string) time.Time {
	formats := []string{
		"2006-01-02", // YYYY-MM-DD (standard)
		"02/01/2006", // DD/MM/YYYY
		"02.01.2006", // DD.MM.YYYY
		"01-02-2006", // MM-DD-YYYY (US format)
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t
		}
	}

	return time.Time{}
}

// Status is the one-word verdict shown next to a symbol.
func Status(res detection.Result) string {
	if res.Found {
		return foundLabel("FOUND")
	}
	if res.Reason == detection.ReasonNone {
		return notFoundLabel("NOT FOUND")
	}
	return notFoundLabel(string(res.Reason))
}

// RangePercent is the pattern's high-low span as a percentage of its low.
func RangePercent(res detection.Result) float64 {
	if res.Low <= 0 || len(res.Intervals) == 0 {
		return 0
	}
	return (res.High - res.Low) / res.Low * 100
}

// WriteResult prints a detailed report for one evaluation.
func WriteResult(w io.Writer, symbol string, res detection.Result) {
	fmt.Fprintln(w, Separator(60))
	fmt.Fprintf(w, "%s  %s\n", symbol, Status(res))
	fmt.Fprintln(w, Separator(60))

	if len(res.Intervals) == 0 {
		fmt.Fprintln(w, "No intervals in the scan window.")
		return
	}

	fmt.Fprintf(w, "Span:     %s -> %s\n", res.OpenTime.Format("2006-01-02 15:04"), res.CloseTime.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "OHLC:     %.2f / %.2f / %.2f / %.2f (range %.1f%%)\n", res.Open, res.High, res.Low, res.Close, RangePercent(res))
	fmt.Fprintf(w, "Runs:     %d after merging\n", len(res.Intervals))
	if len(res.Legs) > 0 {
		fmt.Fprintf(w, "Legs:     %d, %.0f%% contracting\n", len(res.Legs), res.ContractionRatio*100)
	}

	if len(res.Pivots) > 0 {
		fmt.Fprintln(w, "\nPivots:")
		WritePivots(w, res.Pivots)
	}
	if len(res.Legs) > 0 {
		fmt.Fprintln(w, "\nLegs:")
		WriteLegs(w, res.Legs)
	}
}

func WritePivots(w io.Writer, pivots []detection.PivotPoint) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tBAR\tAGO\tTIME\tPRICE")
	for i, p := range pivots {
		fmt.Fprintf(tw, "  %d\t%d\t%d\t%s\t%.2f\n", i+1, p.BarIndex, p.Offset, p.Time.Format("2006-01-02 15:04"), p.Price)
	}
	tw.Flush()
}

func WriteLegs(w io.Writer, legs []detection.Leg) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tFROM\tTO\tAMPLITUDE\tRATIO\t")
	for i, l := range legs {
		mark := ""
		if l.Contracting {
			mark = "contracting"
		}
		fmt.Fprintf(tw, "  %d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n", i+1, l.From.Price, l.To.Price, l.Amplitude, l.Ratio, mark)
	}
	tw.Flush()
}

// WriteCandidates prints one row per symbol. Found rows come first.
func WriteCandidates(w io.Writer, candidates []types.Candidate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tTF\tSTATUS\tRATIO\tPIVOTS\tCLOSE\tANALYSIS")
	for _, c := range sortCandidates(candidates) {
		status := notFoundLabel("-")
		switch {
		case strings.HasPrefix(c.Analysis, "error"):
			status = errorLabel("ERROR")
		case c.Found:
			status = foundLabel("FOUND")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%.2f\t%s\n",
			c.Symbol, c.Timeframe, status, c.ContractionRatio, c.PivotCount, c.LastClose, c.Analysis)
	}
	tw.Flush()
}

func sortCandidates(in []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, 0, len(in))
	for _, c := range in {
		if c.Found {
			out = append(out, c)
		}
	}
	for _, c := range in {
		if !c.Found {
			out = append(out, c)
		}
	}
	return out
}
