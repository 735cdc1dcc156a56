package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers           []string `yaml:"brokers"`
		ObservationsTopic string   `yaml:"observations_topic"`
		AlertsTopic       string   `yaml:"alerts_topic"`
		RequiredAcks      int      `yaml:"required_acks"`
		Compression       string   `yaml:"compression"`
		Producer          struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		ScoresTable      string        `yaml:"scores_table"`
		AlertsTable      string        `yaml:"alerts_table"`
	} `yaml:"clickhouse"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		Token          string        `yaml:"token"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Alerts struct {
		Sinks      []string      `yaml:"sinks"` // kafka, webhook, history
		WebhookURL string        `yaml:"webhook_url"`
		WarnAt     float64       `yaml:"warn_at"`
		CriticalAt float64       `yaml:"critical_at"`
		EscalateAt float64       `yaml:"escalate_at"`
		CoolDown   time.Duration `yaml:"cool_down"`
		Retention  time.Duration `yaml:"retention"`
	} `yaml:"alerts"`
	Engine struct {
		Shards              int           `yaml:"shards"`
		QueueSize           int           `yaml:"queue_size"`
		Backpressure        string        `yaml:"backpressure"` // drop-oldest or reject-new
		TickInterval        time.Duration `yaml:"tick_interval"`
		CorrelationInterval time.Duration `yaml:"correlation_interval"`
		CorrelationTimeout  time.Duration `yaml:"correlation_timeout"`
		SeriesCapacity      int           `yaml:"series_capacity"`

		Detector struct {
			WindowCapacity int     `yaml:"window_capacity"`
			WarmupSize     int     `yaml:"warmup_size"`
			ZCutoff        float64 `yaml:"z_cutoff"`
		} `yaml:"detector"`
		Tick struct {
			SentimentShiftRate  float64     `yaml:"sentiment_shift_rate"`
			DivergenceMagnitude float64     `yaml:"divergence_magnitude"`
			DivergencePairs     [][2]string `yaml:"divergence_pairs"`
		} `yaml:"tick"`
		Correlation struct {
			MaxLag            int         `yaml:"max_lag"`
			MinSamples        int         `yaml:"min_samples"`
			SignificanceLevel float64     `yaml:"significance_level"`
			Pairs             [][2]string `yaml:"pairs"`
		} `yaml:"correlation"`
		Ensemble struct {
			DefaultWeight float64            `yaml:"default_weight"`
			GroupWeights  map[string]float64 `yaml:"group_weights"`
		} `yaml:"ensemble"`
		Risk struct {
			Simulations int   `yaml:"simulations"`
			Seed        int64 `yaml:"seed"`
		} `yaml:"risk"`
	} `yaml:"engine"`
	Signals []SignalConfig `yaml:"signals"`
}

// SignalConfig declares one registered signal and its calibration preset.
type SignalConfig struct {
	Key         string  `yaml:"key"`
	Source      string  `yaml:"source"`
	Instrument  string  `yaml:"instrument"`
	Role        string  `yaml:"role"`
	Unit        string  `yaml:"unit"`
	Group       string  `yaml:"group"`
	Weight      float64 `yaml:"weight"`
	Calibration struct {
		Preset string  `yaml:"preset"` // named preset; overrides the fields below
		Kind   string  `yaml:"kind"`   // linear, zscore, categorical
		Min    float64 `yaml:"min"`
		Max    float64 `yaml:"max"`
		Mean   float64 `yaml:"mean"`
		Std    float64 `yaml:"std"`
		Table  []struct {
			Upper float64 `yaml:"upper"`
			Score float64 `yaml:"score"`
		} `yaml:"table"`
	} `yaml:"calibration"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("FEED_TOKEN"); v != "" {
		c.Feed.Token = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_OBSERVATIONS_TOPIC"); v != "" {
		c.Kafka.ObservationsTopic = v
	}
	if v := os.Getenv("KAFKA_ALERTS_TOPIC"); v != "" {
		c.Kafka.AlertsTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alerts.WebhookURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Signals) == 0 {
		return fmt.Errorf("signals cannot be empty")
	}
	keys := make(map[string]struct{}, len(c.Signals))
	for _, s := range c.Signals {
		if s.Key == "" {
			return fmt.Errorf("signal key is required")
		}
		if _, dup := keys[s.Key]; dup {
			return fmt.Errorf("duplicate signal key '%s'", s.Key)
		}
		keys[s.Key] = struct{}{}
	}
	if c.Engine.Backpressure != "" && c.Engine.Backpressure != "drop-oldest" && c.Engine.Backpressure != "reject-new" {
		return fmt.Errorf("engine.backpressure must be 'drop-oldest' or 'reject-new', got '%s'", c.Engine.Backpressure)
	}
	for _, sink := range c.Alerts.Sinks {
		switch sink {
		case "kafka", "webhook", "history":
		default:
			return fmt.Errorf("alerts.sinks entry must be 'kafka', 'webhook' or 'history', got '%s'", sink)
		}
	}
	if c.Feed.Enabled && c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required when feed is enabled")
	}
	return nil
}
