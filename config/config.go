package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/buildopt/core/factory"
	"github.com/kilianp07/buildopt/core/metrics"
	"github.com/kilianp07/buildopt/infra/mqtt"
)

type Config struct {
	Building BuildingConfig       `json:"building"`
	Problem  ProblemConfig        `json:"problem"`
	Solver   factory.ModuleConfig `json:"solver"`
	Metrics  metrics.Config       `json:"metrics"`
	Logging  LoggingConfig        `json:"logging"`
	Export   ExportConfig         `json:"export"`
	History  HistoryConfig        `json:"history"`
	Sentry   SentryConfig         `json:"sentry"`
	Prices   factory.ModuleConfig `json:"prices"`
	MQTT     mqtt.Config          `json:"mqtt"`
}

// BuildingConfig points at the building document to optimize.
type BuildingConfig struct {
	Path string `json:"path"`
}

// ExportConfig selects where result files are written. An empty Dir
// disables the export.
type ExportConfig struct {
	Dir string `json:"dir"`
}

// Load reads the configuration at path and applies K_ prefixed environment
// overrides, e.g. K_PROBLEM__TYPE=minimum_load. Relative input paths are
// resolved against the directory of the configuration file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeHookFunc(time.RFC3339),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, err
	}
	cfg.resolve(filepath.Dir(path))
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Building.Path, &c.Problem.LoadReduction.ReferencePath, &c.History.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// SetDefaults fills unset sections.
func (c *Config) SetDefaults() {
	if c.Solver.Type == "" {
		c.Solver.Type = "simplex"
	}
	c.Problem.SetDefaults()
	c.Logging.SetDefaults()
	c.History.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Building.Path == "" {
		return fmt.Errorf("building.path is required")
	}
	if err := c.Problem.Validate(); err != nil {
		return fmt.Errorf("problem: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}
