package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Logging    Logging    `mapstructure:"logging"`
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Content    Content    `mapstructure:"content"`
	AI         AI         `mapstructure:"ai"`
	Newsletter Newsletter `mapstructure:"newsletter"`
	PDF        PDF        `mapstructure:"pdf"`
	Email      Email      `mapstructure:"email"`
	PostHog    PostHog    `mapstructure:"posthog"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	OrgName    string `mapstructure:"org_name"`
	OutputDir  string `mapstructure:"output_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Logging holds logger configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AdminAPIKey     string        `mapstructure:"admin_api_key"`
	CORS            CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin settings
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Database holds the Postgres connection used by content and donor sources
type Database struct {
	ConnectionString string `mapstructure:"connection_string"`
}

// Content selects where monthly content items come from
type Content struct {
	Source   string `mapstructure:"source"`
	FilePath string `mapstructure:"file_path"`
}

// AI holds language model configuration
type AI struct {
	Provider       string        `mapstructure:"provider"`
	Gemini         GeminiConfig  `mapstructure:"gemini"`
	OpenAI         OpenAIConfig  `mapstructure:"openai"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	InterCallDelay time.Duration `mapstructure:"inter_call_delay"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Newsletter holds orchestrator settings
type Newsletter struct {
	TemplatePath string        `mapstructure:"template_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// PDF holds headless browser settings
type PDF struct {
	ExecPath       string        `mapstructure:"exec_path"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	ViewportWidth  int64         `mapstructure:"viewport_width"`
	ViewportHeight int64         `mapstructure:"viewport_height"`
}

// Email holds outbound email configuration
type Email struct {
	SMTP        SMTPConfig `mapstructure:"smtp"`
	FromAddress string     `mapstructure:"from_address"`
	FromName    string     `mapstructure:"from_name"`
	BatchSize   int        `mapstructure:"batch_size"`
	Recipients  []string   `mapstructure:"recipients"`
}

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// PostHog holds analytics configuration
type PostHog struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

var globalConfig *Config

// Load reads configuration from file, environment and defaults.
// The result is cached; later calls return the same instance.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".reach")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.App.ConfigFile = v.ConfigFileUsed()

	globalConfig = cfg
	return cfg, nil
}

// Get returns the loaded configuration, loading defaults on first use.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return cfg
	}
	return globalConfig
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(cfg); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("app.org_name", "Project REACH")
	v.SetDefault("app.output_dir", "newsletters")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "150s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.enabled", false)

	v.SetDefault("content.source", "postgres")
	v.SetDefault("content.file_path", "content.yaml")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 600)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.inter_call_delay", "1500ms")
	v.SetDefault("ai.backoff_base", "1s")
	v.SetDefault("ai.max_attempts", 3)

	v.SetDefault("newsletter.timeout", "2m")

	v.SetDefault("pdf.settle_delay", "800ms")
	v.SetDefault("pdf.viewport_width", 1240)
	v.SetDefault("pdf.viewport_height", 1754)

	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.tls_enabled", true)
	v.SetDefault("email.from_name", "Project REACH")
	v.SetDefault("email.batch_size", 50)

	v.SetDefault("posthog.enabled", false)
	v.SetDefault("posthog.host", "https://app.posthog.com")
}

func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys(v, "ai.openai.api_key", []string{
		"OPENAI_API_KEY",
	})

	bindEnvKeys(v, "database.connection_string", []string{
		"DATABASE_URL",
	})

	bindEnvKeys(v, "server.admin_api_key", []string{
		"ADMIN_API_KEY",
	})

	bindEnvKeys(v, "email.smtp.host", []string{
		"SMTP_HOST",
		"EMAIL_SMTP_HOST",
	})

	bindEnvKeys(v, "email.smtp.username", []string{
		"SMTP_USERNAME",
		"EMAIL_USERNAME",
	})

	bindEnvKeys(v, "email.smtp.password", []string{
		"SMTP_PASSWORD",
		"EMAIL_PASSWORD",
	})

	bindEnvKeys(v, "posthog.api_key", []string{
		"POSTHOG_API_KEY",
	})

	bindEnvKeys(v, "pdf.exec_path", []string{
		"CHROME_PATH",
		"PUPPETEER_EXECUTABLE_PATH",
	})
}

// bindEnvKeys sets the viper key from the first non-empty environment variable
func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(cfg *Config) error {
	if cfg.App.OutputDir != "" {
		cfg.App.OutputDir = expandPath(cfg.App.OutputDir)
	}
	if cfg.Content.FilePath != "" {
		cfg.Content.FilePath = expandPath(cfg.Content.FilePath)
	}
	if cfg.Newsletter.TemplatePath != "" {
		cfg.Newsletter.TemplatePath = expandPath(cfg.Newsletter.TemplatePath)
	}

	durations := map[string]time.Duration{
		"server.read_timeout":     cfg.Server.ReadTimeout,
		"server.write_timeout":    cfg.Server.WriteTimeout,
		"server.shutdown_timeout": cfg.Server.ShutdownTimeout,
		"ai.inter_call_delay":     cfg.AI.InterCallDelay,
		"ai.backoff_base":         cfg.AI.BackoffBase,
		"newsletter.timeout":      cfg.Newsletter.Timeout,
		"pdf.settle_delay":        cfg.PDF.SettleDelay,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("invalid duration for %s: %s", key, d)
		}
	}

	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func validateConfig(cfg *Config) error {
	var errors []string

	switch cfg.AI.Provider {
	case "gemini", "openai", "none":
	default:
		errors = append(errors, fmt.Sprintf("Unknown AI provider: %s. Supported: gemini, openai, none", cfg.AI.Provider))
	}

	switch cfg.Content.Source {
	case "postgres", "file":
	default:
		errors = append(errors, fmt.Sprintf("Unknown content source: %s. Supported: postgres, file", cfg.Content.Source))
	}

	if cfg.AI.MaxAttempts < 1 {
		errors = append(errors, "ai.max_attempts must be at least 1")
	}

	if cfg.Email.SMTP.Host != "" || cfg.Email.SMTP.Username != "" {
		if cfg.Email.SMTP.Host == "" {
			errors = append(errors, "SMTP host is required when email is configured")
		}
		if cfg.Email.FromAddress == "" {
			errors = append(errors, "email.from_address is required when email is configured")
		}
	}

	if cfg.PostHog.Enabled && cfg.PostHog.APIKey == "" {
		errors = append(errors, "PostHog enabled but missing API key. Set POSTHOG_API_KEY")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

// Reset clears the cached configuration. Used by tests.
func Reset() {
	globalConfig = nil
}
