// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Signals  SignalsConfig  `mapstructure:"signals"`
	Store    StoreConfig    `mapstructure:"store"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the metrics/health HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScannerConfig governs the channel scan pass.
type ScannerConfig struct {
	MaxSources int      `mapstructure:"max_sources"`
	MaxItems   int      `mapstructure:"max_items"`
	LinkBase   string   `mapstructure:"link_base"`
	Topics     []string `mapstructure:"topics"`
	Hints      []string `mapstructure:"hints"`
	HintGates  bool     `mapstructure:"hint_gates"`
}

// FeedConfig configures the rate-limited feed fetcher.
type FeedConfig struct {
	MaxWaitSeconds int     `mapstructure:"max_wait_seconds"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
}

// SignalsConfig governs signal generation.
type SignalsConfig struct {
	Leagues []string  `mapstructure:"leagues"`
	NHL     NHLConfig `mapstructure:"nhl"`
}

// NHLConfig points the NHL feed client at its API.
type NHLConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StoreConfig selects and configures persistence.
type StoreConfig struct {
	// Provider is "postgres" or "memory".
	Provider     string `mapstructure:"provider"`
	DSN          string `mapstructure:"dsn"`
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// ScheduleConfig controls the recurring activity loop and delivery policy.
type ScheduleConfig struct {
	DailyTime                 string   `mapstructure:"daily_time"`
	Timezone                  string   `mapstructure:"timezone"`
	SettleIntervalMinutes     int      `mapstructure:"settle_interval_minutes"`
	SettleInitialDelaySeconds int      `mapstructure:"settle_initial_delay_seconds"`
	MinConfidence             int      `mapstructure:"min_confidence"`
	MaxPerDelivery            int      `mapstructure:"max_per_delivery"`
	Leagues                   []string `mapstructure:"leagues"`
}

// PubSubConfig holds the delivery topic metadata. Empty project falls back to
// the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ODDSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scanner.max_sources", 200)
	v.SetDefault("scanner.max_items", 40)
	v.SetDefault("scanner.link_base", "https://t.me")
	v.SetDefault("scanner.topics", []string{"прогноз", "ставк", "коэфф", "экспресс", "бесплатн"})
	v.SetDefault("scanner.hints", []string{"nhl", "кхл", "хокке"})
	v.SetDefault("scanner.hint_gates", false)
	v.SetDefault("feed.max_wait_seconds", 120)
	v.SetDefault("feed.rps", 1.0)
	v.SetDefault("feed.burst", 1)
	v.SetDefault("signals.leagues", []string{"NHL"})
	v.SetDefault("signals.nhl.base_url", "https://api-web.nhle.com")
	v.SetDefault("signals.nhl.timeout_seconds", 20)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.snapshot_path", "matches.json")
	v.SetDefault("schedule.daily_time", "10:30")
	v.SetDefault("schedule.timezone", "Europe/Amsterdam")
	v.SetDefault("schedule.settle_interval_minutes", 30)
	v.SetDefault("schedule.settle_initial_delay_seconds", 60)
	v.SetDefault("schedule.min_confidence", 65)
	v.SetDefault("schedule.max_per_delivery", 5)
	v.SetDefault("schedule.leagues", []string{"NHL"})
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scanner.MaxSources <= 0 {
		return fmt.Errorf("scanner.max_sources must be > 0")
	}
	if c.Scanner.MaxItems <= 0 {
		return fmt.Errorf("scanner.max_items must be > 0")
	}
	if len(c.Scanner.Topics) == 0 {
		return fmt.Errorf("scanner.topics must not be empty")
	}
	if c.Feed.MaxWaitSeconds <= 0 {
		return fmt.Errorf("feed.max_wait_seconds must be > 0")
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set when store.provider is postgres")
		}
	default:
		return fmt.Errorf("store.provider must be memory or postgres, got %q", c.Store.Provider)
	}
	if c.Store.SnapshotPath == "" {
		return fmt.Errorf("store.snapshot_path must be set")
	}
	if c.Schedule.SettleIntervalMinutes <= 0 {
		return fmt.Errorf("schedule.settle_interval_minutes must be > 0")
	}
	if c.Schedule.MinConfidence < 0 || c.Schedule.MinConfidence > 100 {
		return fmt.Errorf("schedule.min_confidence must be within [0, 100]")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// FeedMaxWait converts the flood-wait ceiling to a duration.
func (c Config) FeedMaxWait() time.Duration {
	return time.Duration(c.Feed.MaxWaitSeconds) * time.Second
}

// NHLTimeout converts the NHL client timeout to a duration.
func (c Config) NHLTimeout() time.Duration {
	return time.Duration(c.Signals.NHL.TimeoutSeconds) * time.Second
}

// SettleInterval converts the settlement cadence to a duration.
func (c Config) SettleInterval() time.Duration {
	return time.Duration(c.Schedule.SettleIntervalMinutes) * time.Minute
}

// SettleInitialDelay converts the settlement warm-up to a duration.
func (c Config) SettleInitialDelay() time.Duration {
	return time.Duration(c.Schedule.SettleInitialDelaySeconds) * time.Second
}
