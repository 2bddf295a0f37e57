package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fazecat/contractionscout/Internal/strategy/detection"
)

const defaultConfigPath = "Internal/utils/config/config.yaml"

var ErrUnknownProfile = errors.New("unknown detector profile")

type Config struct {
	Global struct {
		Timeframe      string   `yaml:"timeframe"`
		HistoryBars    int      `yaml:"history_bars"`
		Watchlist      []string `yaml:"watchlist"`
		AssetType      string   `yaml:"asset_type"`
		DefaultProfile string   `yaml:"default_profile"`
	} `yaml:"global"`

	Profiles map[string]ProfileConfig `yaml:"profiles"`

	Feed struct {
		DataFeed          string `yaml:"data_feed"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		Breaker           struct {
			MaxFailures uint32        `yaml:"max_failures"`
			OpenTimeout time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"feed"`

	Cache struct {
		Enabled bool          `yaml:"enabled"`
		Address string        `yaml:"address"`
		DB      int           `yaml:"db"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	API struct {
		Addr     string        `yaml:"addr"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"api"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`

	path string
}

// ProfileConfig is a named detector parameter set. Keys missing from the file
// keep the detector defaults.
type ProfileConfig struct {
	Description      string `yaml:"description"`
	detection.Config `yaml:",inline"`
}

func (p *ProfileConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ProfileConfig
	raw := plain{Config: detection.DefaultConfig()}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = ProfileConfig(raw)
	return nil
}

// DetectorConfig returns the profile's detector parameters, validated.
func (p ProfileConfig) DetectorConfig() (detection.Config, error) {
	if err := p.Config.Validate(); err != nil {
		return detection.Config{}, err
	}
	return p.Config, nil
}

func LoadConfig() (*Config, error) {
	// Resolve path relative to this file first
	_, filePath, _, ok := runtime.Caller(0)
	var basePath string
	if ok {
		basePath = filepath.Dir(filePath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	possiblePaths := []string{}
	if env := os.Getenv("CONTRACTIONSCOUT_CONFIG"); env != "" {
		possiblePaths = append(possiblePaths, env)
	}
	if basePath != "" {
		possiblePaths = append(possiblePaths, filepath.Join(basePath, "config.yaml"))
	}
	possiblePaths = append(possiblePaths,
		filepath.Join(cwd, "Internal", "utils", "config", "config.yaml"),
		defaultConfigPath,
		"config.yaml",
	)

	for _, path := range possiblePaths {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadConfigFile(path)
		}
	}
	return nil, fmt.Errorf("config.yaml not found in %v", possiblePaths)
}

// LoadConfigFile reads, defaults and validates the config at path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	cfg.Profiles = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = Default().Profiles
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.path = path
	return cfg, nil
}

// Default is the configuration used when a key is absent from the file.
func Default() *Config {
	cfg := &Config{}
	cfg.Global.Timeframe = "1Day"
	cfg.Global.HistoryBars = 250
	cfg.Global.AssetType = "stock"
	cfg.Global.DefaultProfile = "standard"
	cfg.Profiles = map[string]ProfileConfig{
		"standard": {
			Description: "default contraction parameters",
			Config:      detection.DefaultConfig(),
		},
	}
	cfg.Feed.DataFeed = "iex"
	cfg.Feed.RequestsPerMinute = 180
	cfg.Feed.Breaker.MaxFailures = 5
	cfg.Feed.Breaker.OpenTimeout = 30 * time.Second
	cfg.Cache.Address = "localhost:6379"
	cfg.Cache.TTL = 15 * time.Minute
	cfg.API.Addr = ":8080"
	cfg.API.TokenTTL = 24 * time.Hour
	cfg.Logging.Level = "info"
	return cfg
}

// Validate checks the global settings and every profile.
func (c *Config) Validate() error {
	if c.Global.HistoryBars <= 0 {
		return fmt.Errorf("global.history_bars must be positive, got %d", c.Global.HistoryBars)
	}
	if _, ok := c.Profiles[c.Global.DefaultProfile]; !ok {
		return fmt.Errorf("global.default_profile %q: %w", c.Global.DefaultProfile, ErrUnknownProfile)
	}
	for _, name := range c.ProfileNames() {
		p := c.Profiles[name]
		if _, err := p.DetectorConfig(); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		if p.RequiredBars() > c.Global.HistoryBars {
			return fmt.Errorf("profile %s needs %d bars but global.history_bars is %d",
				name, p.RequiredBars(), c.Global.HistoryBars)
		}
	}
	return nil
}

// ProfileNames returns the profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) GetProfile(profileName string) *ProfileConfig {
	if profile, exists := c.Profiles[profileName]; exists {
		return &profile
	}
	return nil
}

// DetectorConfig resolves a profile by name; an empty name means the default profile.
func (c *Config) DetectorConfig(profileName string) (detection.Config, error) {
	if profileName == "" {
		profileName = c.Global.DefaultProfile
	}
	profile := c.GetProfile(profileName)
	if profile == nil {
		return detection.Config{}, fmt.Errorf("%q: %w", profileName, ErrUnknownProfile)
	}
	return profile.DetectorConfig()
}

// Path is the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

func SaveConfig(cfg *Config) error {
	path := cfg.path
	if path == "" {
		path = defaultConfigPath
	}
	return SaveConfigFile(cfg, path)
}

func SaveConfigFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	cfg.path = path
	return nil
}
