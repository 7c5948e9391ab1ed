// Package config loads the engine configuration from YAML, applies
// defaults, pulls credentials from the environment and validates the
// result before anything else starts.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/quantara/ensemble-trader/internal/anomaly"
	"github.com/quantara/ensemble-trader/internal/logging"
	"github.com/quantara/ensemble-trader/internal/orchestrator"
	"github.com/quantara/ensemble-trader/internal/risk"
	"github.com/quantara/ensemble-trader/internal/validation"
)

// Config is the full engine configuration.
type Config struct {
	Symbols        []string `yaml:"symbols" validate:"min=1,dive,required"`
	CycleSchedule  string   `yaml:"cycle_schedule" default:"@every 1m"`
	AdjustSchedule string   `yaml:"adjust_schedule" default:"0 0 * * 1"`
	StateDir       string   `yaml:"state_dir" default:"state"`
	MetricsAddr    string   `yaml:"metrics_addr" default:":9100"`

	// SentimentScores points at the JSON file an external classifier keeps
	// refreshed with per-symbol scores. Empty disables the sentiment source.
	SentimentScores string `yaml:"sentiment_scores" default:"state/sentiment.json"`

	Paper struct {
		Enabled  bool    `yaml:"enabled" default:"true"`
		Cash     float64 `yaml:"cash" default:"1000000" validate:"gt=0"`
		Slippage float64 `yaml:"slippage" default:"0.0005" validate:"gte=0,lt=0.1"`
	} `yaml:"paper"`

	Exchange ExchangeConfig `yaml:"exchange"`

	Risk struct {
		Profile          risk.Profile `yaml:"profile"`
		DrawdownLimit    float64      `yaml:"drawdown_limit" default:"0.15" validate:"gte=0,lt=1"`
		AdjustMinTrades  int          `yaml:"adjust_min_trades" default:"10" validate:"gt=0"`
		AdjustPeriodDays int          `yaml:"adjust_period_days" default:"7" validate:"gt=0"`
	} `yaml:"risk"`

	Anomaly      anomaly.Config      `yaml:"anomaly"`
	Validation   validation.Config   `yaml:"validation"`
	Orchestrator orchestrator.Config `yaml:"orchestrator"`
	Logging      logging.Config      `yaml:"logging"`

	Ensemble struct {
		WindowSize int     `yaml:"window_size" default:"50" validate:"gt=0"`
		Alpha      float64 `yaml:"alpha" default:"0.3" validate:"gt=0,lte=1"`
	} `yaml:"ensemble"`
}

// ExchangeConfig selects and authenticates the live market data and order
// gateway. Credentials come only from the environment, never from YAML.
type ExchangeConfig struct {
	Name      string `yaml:"name" default:"bybit"`
	Category  string `yaml:"category" default:"spot"`
	Interval  string `yaml:"interval" default:"60"`
	Demo      bool   `yaml:"demo" default:"true"`
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// AdjustPeriod converts the configured days to a duration.
func (c *Config) AdjustPeriod() time.Duration {
	return time.Duration(c.Risk.AdjustPeriodDays) * 24 * time.Hour
}

// Load reads the YAML file, layers defaults underneath, pulls credentials
// from the environment (a .env file is honored when present) and validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	cfg.Risk.Profile = risk.DefaultProfile()
	cfg.Anomaly = anomaly.DefaultConfig()
	cfg.Validation = validation.DefaultConfig()
	cfg.Orchestrator = orchestrator.DefaultConfig()
	cfg.Logging = logging.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.Exchange.APIKey = os.Getenv("BYBIT_API_KEY")
	cfg.Exchange.APISecret = os.Getenv("BYBIT_API_SECRET")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	if !cfg.Paper.Enabled && (cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "") {
		return nil, fmt.Errorf("config: live trading requires BYBIT_API_KEY and BYBIT_API_SECRET")
	}
	if len(cfg.Validation.Symbols) == 0 {
		// The validator's allow-list follows the traded universe unless
		// configured explicitly.
		cfg.Validation.Symbols = cfg.Symbols
	}
	return cfg, nil
}
