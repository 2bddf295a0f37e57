package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ConfigureInteractive lets the user edit detector profiles and global scan settings.
func ConfigureInteractive(cfg *Config) error {
	return Configure(cfg, bufio.NewReader(os.Stdin), os.Stdout)
}

// Configure runs the menu until the user leaves it or input ends.
func Configure(cfg *Config, reader *bufio.Reader, out io.Writer) error {
	for {
		fmt.Fprintln(out, "\n⚙️  Configuration Menu:")
		fmt.Fprintln(out, "1. View Current Configuration")
		fmt.Fprintln(out, "2. Configure Detector Profile")
		fmt.Fprintln(out, "3. Configure Watchlist & Timeframe")
		fmt.Fprintln(out, "4. Save & Exit")
		fmt.Fprintln(out, "5. Exit Without Saving")
		fmt.Fprint(out, "Select option: ")

		choice, err := reader.ReadString('\n')
		if err == io.EOF && strings.TrimSpace(choice) == "" {
			return nil
		}
		choice = strings.TrimSpace(choice)

		switch choice {
		case "1":
			DisplayConfiguration(cfg, out)
		case "2":
			configureProfile(cfg, reader, out)
		case "3":
			configureGlobal(cfg, reader, out)
		case "4":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "❌ Config not saved: %v\n", err)
				continue
			}
			if err := SaveConfig(cfg); err != nil {
				fmt.Fprintf(out, "❌ Error saving config: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "✅ Configuration saved successfully!")
			return nil
		case "5":
			return nil
		default:
			fmt.Fprintln(out, "❌ Invalid option")
		}
	}
}

// DisplayConfiguration prints every profile and the global scan settings.
func DisplayConfiguration(cfg *Config, out io.Writer) {
	fmt.Fprintln(out, "\n📋 Current Configuration:")
	fmt.Fprintln(out, "\n=== Profiles ===")
	for _, name := range cfg.ProfileNames() {
		p := cfg.Profiles[name]
		marker := ""
		if name == cfg.Global.DefaultProfile {
			marker = " (default)"
		}
		fmt.Fprintf(out, "\n%s%s: %s\n", strings.ToUpper(name), marker, p.Description)
		fmt.Fprintf(out, "  • Baseline: fast %d / slow %d / efficiency %d\n", p.FastLength, p.SlowLength, p.EfficiencyLength)
		fmt.Fprintf(out, "  • ATR Length: %d\n", p.ATRLength)
		fmt.Fprintf(out, "  • Minimum ATR Delta: %.2f\n", p.MinimumATRDelta)
		fmt.Fprintf(out, "  • Scan / Overscan: %d / %d bars\n", p.ScanLength, p.OverscanLength)
		fmt.Fprintf(out, "  • Minimum Legs: %d\n", p.MinimumRequiredLegs)
		fmt.Fprintf(out, "  • Minimum Contracting: %.0f%%\n", p.MinimumPercentageContractingLegs*100)
	}

	fmt.Fprintln(out, "\n=== Scan ===")
	fmt.Fprintf(out, "Timeframe: %s\n", cfg.Global.Timeframe)
	fmt.Fprintf(out, "History Bars: %d\n", cfg.Global.HistoryBars)
	fmt.Fprintf(out, "Watchlist: %s\n", strings.Join(cfg.Global.Watchlist, ", "))
	fmt.Fprintf(out, "Cache: %s\n", enabledStr(cfg.Cache.Enabled))
}

func configureProfile(cfg *Config, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "\n📊 Configure Detector Profile:")
	profiles := cfg.ProfileNames()
	for i, name := range profiles {
		fmt.Fprintf(out, "%d. %s\n", i+1, name)
	}
	fmt.Fprint(out, "Select profile (number): ")

	idx, err := strconv.Atoi(readLine(reader))
	if err != nil || idx < 1 || idx > len(profiles) {
		fmt.Fprintln(out, "❌ Invalid selection")
		return
	}

	profileName := profiles[idx-1]
	profile := cfg.Profiles[profileName]
	fmt.Fprintf(out, "\n✏️  Configuring %s profile (Enter keeps the current value):\n", profileName)

	promptInt(reader, out, "Fast length", &profile.FastLength)
	promptInt(reader, out, "Slow length", &profile.SlowLength)
	promptInt(reader, out, "Efficiency length", &profile.EfficiencyLength)
	promptInt(reader, out, "ATR length", &profile.ATRLength)
	promptFloat(reader, out, "Minimum ATR delta", &profile.MinimumATRDelta)
	promptInt(reader, out, "Scan length", &profile.ScanLength)
	promptInt(reader, out, "Overscan length", &profile.OverscanLength)
	promptInt(reader, out, "Minimum required legs", &profile.MinimumRequiredLegs)
	promptFloat(reader, out, "Minimum contracting fraction (0-1)", &profile.MinimumPercentageContractingLegs)

	if _, err := profile.DetectorConfig(); err != nil {
		fmt.Fprintf(out, "❌ Profile not updated: %v\n", err)
		return
	}
	cfg.Profiles[profileName] = profile
	fmt.Fprintln(out, "✅ Profile updated")
}

func configureGlobal(cfg *Config, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "\n🌐 Configure Watchlist & Timeframe:")

	fmt.Fprintf(out, "Current watchlist: %s\n", strings.Join(cfg.Global.Watchlist, ", "))
	fmt.Fprint(out, "New watchlist (comma separated): ")
	if input := readLine(reader); input != "" {
		var symbols []string
		for _, s := range strings.Split(input, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
		cfg.Global.Watchlist = symbols
	}

	fmt.Fprintf(out, "Current timeframe: %s\n", cfg.Global.Timeframe)
	fmt.Fprint(out, "New timeframe (e.g. 1Day, 1Hour, 15Min): ")
	if input := readLine(reader); input != "" {
		cfg.Global.Timeframe = input
	}

	promptInt(reader, out, "History bars", &cfg.Global.HistoryBars)

	fmt.Fprintf(out, "Current default profile: %s\n", cfg.Global.DefaultProfile)
	fmt.Fprint(out, "New default profile: ")
	if input := readLine(reader); input != "" {
		if _, ok := cfg.Profiles[input]; ok {
			cfg.Global.DefaultProfile = input
		} else {
			fmt.Fprintf(out, "⚠️  Unknown profile %q, keeping %s\n", input, cfg.Global.DefaultProfile)
		}
	}
	fmt.Fprintln(out, "✅ Scan settings updated")
}

func promptInt(reader *bufio.Reader, out io.Writer, label string, v *int) {
	fmt.Fprintf(out, "%s [%d]: ", label, *v)
	if val, err := strconv.Atoi(readLine(reader)); err == nil {
		*v = val
	}
}

func promptFloat(reader *bufio.Reader, out io.Writer, label string, v *float64) {
	fmt.Fprintf(out, "%s [%.2f]: ", label, *v)
	if val, err := strconv.ParseFloat(readLine(reader), 64); err == nil {
		*v = val
	}
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func enabledStr(enabled bool) string {
	if enabled {
		return "✅ Enabled"
	}
	return "❌ Disabled"
}
