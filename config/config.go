package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research platform
type Config struct {
	General   GeneralConfig    `mapstructure:"general"`
	Server    ServerConfig     `mapstructure:"server"`
	LLM       LLMConfig        `mapstructure:"llm"`
	Research  ResearchConfig   `mapstructure:"research"`
	Retry     RetryConfig      `mapstructure:"retry"`
	Tools     ToolsConfig      `mapstructure:"tools"`
	Sources   SourcesConfig    `mapstructure:"sources"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Telemetry TelemetryConfig  `mapstructure:"telemetry"`
	Schedules []ScheduleConfig `mapstructure:"schedules"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains the completion-service client settings.
// All engines talk to an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	ReportModel string        `mapstructure:"report_model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ResearchConfig contains the pipeline knobs consumed by the controller.
type ResearchConfig struct {
	// MaxReflections is the fixed number of reflection cycles per section.
	MaxReflections int `mapstructure:"max_reflections"`
	// MaxContentLength caps per-result body text passed to the LLM; 0 = unlimited.
	MaxContentLength int `mapstructure:"max_content_length"`
	// MaxSearchResults caps how many items of a tool response reach the LLM; 0 = unlimited.
	MaxSearchResults  int  `mapstructure:"max_search_results"`
	// SaveIntermediate also snapshots after every reflection iteration.
	SaveIntermediate  bool `mapstructure:"save_intermediate"`
	PersistOnBoundary bool `mapstructure:"persist_on_boundary"`
}

func (r ResearchConfig) Validate() error {
	if r.MaxReflections < 0 {
		return fmt.Errorf("research.max_reflections must be >= 0")
	}
	if r.MaxContentLength < 0 {
		return fmt.Errorf("research.max_content_length must be >= 0")
	}
	return nil
}

// RetryConfig describes the shared retry policy for completion and tool calls.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Jitter         bool          `mapstructure:"jitter"`
}

// ToolsConfig configures the dispatcher's fallback behaviour.
type ToolsConfig struct {
	DefaultTool  string `mapstructure:"default_tool"`
	DefaultDays  int    `mapstructure:"default_days"`
	DefaultLimit int    `mapstructure:"default_limit"`
}

// SourcesConfig contains external search backends
type SourcesConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	BraveAPIKey string        `mapstructure:"brave_api_key"`
	Endpoint    string        `mapstructure:"endpoint"`
	MaxResults  int           `mapstructure:"max_results"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	File     FileConfig     `mapstructure:"file"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// Addr returns the host:port pair for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// FileConfig contains file storage settings
type FileConfig struct {
	ReportDir string `mapstructure:"report_dir"`
	StateDir  string `mapstructure:"state_dir"`
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// ScheduleConfig describes a recurring research run driven by the server.
type ScheduleConfig struct {
	Name     string `mapstructure:"name"`
	Query    string `mapstructure:"query"`
	Engine   string `mapstructure:"engine"`
	CronSpec string `mapstructure:"cron_spec"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.default_timeout", "120s")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.timeout", "90s")
	viper.SetDefault("research.max_reflections", 2)
	viper.SetDefault("research.max_content_length", 2000)
	viper.SetDefault("research.max_search_results", 20)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_backoff", "500ms")
	viper.SetDefault("retry.max_backoff", "8s")
	viper.SetDefault("retry.jitter", true)
	viper.SetDefault("tools.default_tool", "search_recent_trainings")
	viper.SetDefault("tools.default_days", 30)
	viper.SetDefault("tools.default_limit", 50)
	viper.SetDefault("storage.file.report_dir", "reports")
	viper.SetDefault("storage.file.state_dir", "states")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("INSIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Research.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
