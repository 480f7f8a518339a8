package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"production"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	MarketData struct {
		BaseURL      string        `yaml:"base_url" validate:"required,url"`
		APIKey       string        `yaml:"api_key" validate:"required"`
		LookbackDays int           `yaml:"lookback_days" default:"5" validate:"gt=0"`
		IntervalMin  int           `yaml:"bar_interval_min" default:"5" validate:"gt=0"`
		MinSamples   int           `yaml:"min_samples" default:"150" validate:"gt=0"`
		Fanout       int           `yaml:"fanout" default:"10" validate:"gt=0"`
		RateLimitRPS float64       `yaml:"rate_limit_rps" default:"10"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"market_data"`
	Broker struct {
		URL          string        `yaml:"url" validate:"required"`
		ClientIDBase int           `yaml:"client_id_base" default:"3" validate:"gte=0"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"10s"`
	} `yaml:"broker"`
	Strategy struct {
		PairFile        string        `yaml:"pair_file" validate:"required"`
		CapitalPerTrade float64       `yaml:"capital_per_trade" default:"500" validate:"gt=0"`
		EnterShort      float64       `yaml:"enter_short" default:"1.8" validate:"gt=0"`
		EnterLong       float64       `yaml:"enter_long" default:"-1.8" validate:"lt=0"`
		ExitLow         float64       `yaml:"exit_low" default:"-0.35"`
		ExitHigh        float64       `yaml:"exit_high" default:"0.35"`
		ZScoreWindow    int           `yaml:"zscore_window" default:"40" validate:"gte=2"`
		PollSleep       time.Duration `yaml:"poll_sleep" default:"100s"`
		Cooldown        time.Duration `yaml:"cooldown" default:"1000s"`
	} `yaml:"strategy"`
	Execution struct {
		TickSize          float64       `yaml:"tick_size" default:"0.01" validate:"gt=0"`
		OrderPollInterval time.Duration `yaml:"order_poll_interval" default:"1s"`
		Entry             Escalation    `yaml:"entry"`
		Exit              Escalation    `yaml:"exit"`
		MarketEntryWait   time.Duration `yaml:"market_entry_wait" default:"20s"`
	} `yaml:"execution"`
	Scheduler struct {
		BatchSize   int           `yaml:"batch_size" default:"100" validate:"gt=0"`
		MaxParallel int           `yaml:"max_parallel" default:"8" validate:"gt=0"`
		Stagger     time.Duration `yaml:"stagger" default:"1s"`
	} `yaml:"scheduler"`
	Cooldowns struct {
		Backend string `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cooldowns"`
	Sinks struct {
		ClickHouse struct {
			Enabled     bool          `yaml:"enabled"`
			Host        string        `yaml:"host"`
			Port        int           `yaml:"port" default:"9000"`
			Database    string        `yaml:"database" default:"pairtrader"`
			User        string        `yaml:"user" default:"default"`
			Password    string        `yaml:"password"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		} `yaml:"clickhouse"`
		Kafka struct {
			Enabled bool     `yaml:"enabled"`
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic" default:"pairtrader.trades"`
		} `yaml:"kafka"`
	} `yaml:"sinks"`
	Store struct {
		TradesFile  string `yaml:"trades_file" default:"trades.json"`
		ProfitsFile string `yaml:"profits_file" default:"profits.json"`
	} `yaml:"store"`
}

// Escalation configures one tier of the limit-order retry ladder.
type Escalation struct {
	InitialTimeout    time.Duration `yaml:"initial_timeout" validate:"gt=0"`
	EscalationTimeout time.Duration `yaml:"escalation_timeout" validate:"gt=0"`
	MaxEscalations    int           `yaml:"max_escalations" validate:"gte=0"`

	maxSet bool
}

// UnmarshalYAML records whether max_escalations was present in the file,
// so an explicit zero (a single-shot ladder) survives default application.
func (e *Escalation) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		InitialTimeout    time.Duration `yaml:"initial_timeout"`
		EscalationTimeout time.Duration `yaml:"escalation_timeout"`
		MaxEscalations    *int          `yaml:"max_escalations"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	e.InitialTimeout = raw.InitialTimeout
	e.EscalationTimeout = raw.EscalationTimeout
	if raw.MaxEscalations != nil {
		e.MaxEscalations = *raw.MaxEscalations
		e.maxSet = true
	}
	return nil
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyEscalationDefaults()

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

	if v := os.Getenv("MARKET_DATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("PAIR_FILE"); v != "" {
		c.Strategy.PairFile = v
	}
	if v := os.Getenv("BROKER_URL"); v != "" {
		c.Broker.URL = v
	}
	if v := os.Getenv("BROKER_CLIENT_ID_BASE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Broker.ClientIDBase = n
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Sinks.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Strategy.ExitLow > c.Strategy.ExitHigh {
		return fmt.Errorf("strategy.exit_low %v must not exceed strategy.exit_high %v", c.Strategy.ExitLow, c.Strategy.ExitHigh)
	}
	if c.Cooldowns.Backend == "redis" && c.Cooldowns.Redis.Addr == "" {
		return fmt.Errorf("cooldowns.redis.addr is required for the redis backend")
	}
	if c.Sinks.Kafka.Enabled && len(c.Sinks.Kafka.Brokers) == 0 {
		return fmt.Errorf("sinks.kafka.brokers cannot be empty when the kafka sink is enabled")
	}
	if c.Sinks.ClickHouse.Enabled && c.Sinks.ClickHouse.Host == "" {
		return fmt.Errorf("sinks.clickhouse.host is required when the clickhouse sink is enabled")
	}
	return nil
}

// applyEscalationDefaults fills the entry/exit ladders when the file
// leaves them out. Exits get a longer initial window than entries.
func (c *Config) applyEscalationDefaults() {
	if c.Execution.Entry.InitialTimeout == 0 {
		c.Execution.Entry.InitialTimeout = 3 * time.Second
	}
	if c.Execution.Entry.EscalationTimeout == 0 {
		c.Execution.Entry.EscalationTimeout = 2 * time.Second
	}
	if !c.Execution.Entry.maxSet {
		c.Execution.Entry.MaxEscalations = 3
	}
	if c.Execution.Exit.InitialTimeout == 0 {
		c.Execution.Exit.InitialTimeout = 5 * time.Second
	}
	if c.Execution.Exit.EscalationTimeout == 0 {
		c.Execution.Exit.EscalationTimeout = 3 * time.Second
	}
	if !c.Execution.Exit.maxSet {
		c.Execution.Exit.MaxEscalations = 2
	}
}
