package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/gate"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Tavily    TavilyConfig    `yaml:"tavily" mapstructure:"tavily"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Budget    BudgetConfig    `yaml:"budget" mapstructure:"budget"`
	Gate      gate.Config     `yaml:"gate" mapstructure:"gate"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// TavilyConfig holds Tavily search API settings.
type TavilyConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxResults  int     `yaml:"max_results" mapstructure:"max_results"`
	SearchDepth string  `yaml:"search_depth" mapstructure:"search_depth"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// NotionConfig holds Notion API credentials and the IDs of the
// trusted-source database and the optional events board.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	SourceDB string `yaml:"source_db" mapstructure:"source_db"`
	EventsDB string `yaml:"events_db" mapstructure:"events_db"`
}

// RegistryConfig points at local registry files.
type RegistryConfig struct {
	ProfilesPath string `yaml:"profiles_path" mapstructure:"profiles_path"`
}

// CacheConfig configures the stage-output cache. TTL overrides are keyed
// by namespace; namespaces absent from the map use DefaultTTL.
type CacheConfig struct {
	Path       string                   `yaml:"path" mapstructure:"path"`
	DefaultTTL time.Duration            `yaml:"default_ttl" mapstructure:"default_ttl"`
	TTL        map[string]time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// BudgetConfig sets the per-run spend ceiling and provider rates.
type BudgetConfig struct {
	CeilingUSD float64      `yaml:"ceiling_usd" mapstructure:"ceiling_usd"`
	Rates      budget.Rates `yaml:"rates" mapstructure:"rates"`
}

// PipelineConfig configures discovery behavior.
type PipelineConfig struct {
	MaxCycles       int     `yaml:"max_cycles" mapstructure:"max_cycles"`
	MaxLeads        int     `yaml:"max_leads" mapstructure:"max_leads"`
	MaxCurated      int     `yaml:"max_curated" mapstructure:"max_curated"`
	DedupeThreshold float64 `yaml:"dedupe_threshold" mapstructure:"dedupe_threshold"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "scout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_runs", 2)
	v.SetDefault("pipeline.max_cycles", 3)
	v.SetDefault("pipeline.max_leads", 25)
	v.SetDefault("pipeline.max_curated", 10)
	v.SetDefault("pipeline.dedupe_threshold", 0.6)
	v.SetDefault("gate.viable_threshold", 70)
	v.SetDefault("gate.min_viable_count", 5)
	v.SetDefault("gate.high_confidence_threshold", 80)
	v.SetDefault("budget.ceiling_usd", 0.50)
	v.SetDefault("cache.path", "scout-cache.db")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.ttl.evidence", "24h")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.search_depth", "advanced")
	v.SetDefault("tavily.max_results", 10)
	v.SetDefault("tavily.rate_per_sec", 1.0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("registry.profiles_path", "profiles.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Rates are a nested map, so file values replace rather than merge.
	// Absent sections fall back to the published defaults.
	if cfg.Budget.Rates.Anthropic == nil {
		cfg.Budget.Rates.Anthropic = budget.DefaultRates().Anthropic
	}
	if cfg.Budget.Rates.Tavily.PerSearch == 0 {
		cfg.Budget.Rates.Tavily = budget.DefaultRates().Tavily
	}

	if cfg.Pipeline.MaxCycles < 1 {
		cfg.Pipeline.MaxCycles = 1
	}

	return &cfg, nil
}

// Validate checks that the fields a command depends on are set. Mode is
// one of "discover", "batch", "serve", or "store". All problems are
// reported in a single error.
func (c *Config) Validate(mode string) error {
	var problems []string

	storeProblems := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	discoverProblems := func() {
		storeProblems()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Tavily.Key == "" {
			problems = append(problems, "tavily.key is required")
		}
		if c.Budget.CeilingUSD <= 0 {
			problems = append(problems, "budget.ceiling_usd must be > 0")
		}
		if c.Pipeline.DedupeThreshold < 0 || c.Pipeline.DedupeThreshold > 1 {
			problems = append(problems, "pipeline.dedupe_threshold must be between 0 and 1")
		}
		if c.Pipeline.MaxCurated < 1 {
			problems = append(problems, "pipeline.max_curated must be >= 1")
		}
	}

	switch mode {
	case "discover":
		discoverProblems()
	case "batch":
		discoverProblems()
		if c.Batch.MaxConcurrentRuns < 1 || c.Batch.MaxConcurrentRuns > 16 {
			problems = append(problems, "batch.max_concurrent_runs must be between 1 and 16")
		}
	case "serve":
		discoverProblems()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
		storeProblems()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
