// Package config provides application configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by CONFIG_FILE, and environment variables, which win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/gateway"
	"github.com/hupe1980/archmesh/internal/util"
)

// Config holds all application configuration.
type Config struct {
	Port       string `yaml:"port"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`  // json or text
	LogBackend string `yaml:"log_backend"` // slog or zap

	HistoryTurns      int           `yaml:"history_turns"`
	MinInterval       time.Duration `yaml:"min_interval"`
	MaxImageDimension int           `yaml:"max_image_dimension"`
	AnalysisCacheSize int           `yaml:"analysis_cache_size"`
	MaxConversations  int           `yaml:"max_conversations"`
	// MaxUploadBytes bounds encoded image uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`

	Redis RedisConfig                   `yaml:"redis"`
	Roles map[core.AgentRole]RoleConfig `yaml:"roles"`

	// envErrs collects malformed environment values for Validate.
	envErrs []error
}

// RedisConfig enables snapshot mirroring when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// RoleConfig overrides the defaults of one role.
type RoleConfig struct {
	SystemPrompt string   `yaml:"system_prompt"`
	Chain        []string `yaml:"chain"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:              "8080",
		LogLevel:          "info",
		LogFormat:         "json",
		LogBackend:        "slog",
		HistoryTurns:      10,
		MinInterval:       gateway.DefaultMinInterval,
		MaxImageDimension: 1024,
		AnalysisCacheSize: 64,
		MaxConversations:  1000,
		MaxUploadBytes:    10 << 20,
		Roles:             map[core.AgentRole]RoleConfig{},
	}
}

// Load reads configuration from CONFIG_FILE (if set) and environment
// variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.mergeYAML(data)
}

func (c *Config) mergeYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if c.Roles == nil {
		c.Roles = map[core.AgentRole]RoleConfig{}
	}
	return nil
}

func (c *Config) applyEnv() {
	errs := &c.envErrs
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogBackend = getEnv("LOG_BACKEND", c.LogBackend)
	c.HistoryTurns = getEnvInt("HISTORY_TURNS", c.HistoryTurns, errs)
	c.MinInterval = getEnvDuration("MIN_INTERVAL", c.MinInterval, errs)
	c.MaxImageDimension = getEnvInt("MAX_IMAGE_DIMENSION", c.MaxImageDimension, errs)
	c.AnalysisCacheSize = getEnvInt("ANALYSIS_CACHE_SIZE", c.AnalysisCacheSize, errs)
	c.MaxConversations = getEnvInt("MAX_CONVERSATIONS", c.MaxConversations, errs)
	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes), errs))

	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB, errs)
	c.Redis.TTL = getEnvDuration("REDIS_TTL", c.Redis.TTL, errs)
}

var knownProviders = map[string]bool{
	gateway.ProviderAnthropic: true,
	gateway.ProviderOpenAI:    true,
	gateway.ProviderGemini:    true,
}

// Validate checks that all configuration fields are usable.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.envErrs...)
	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	if c.LogBackend != "slog" && c.LogBackend != "zap" {
		errs = append(errs, fmt.Errorf("LOG_BACKEND must be slog or zap, got %q", c.LogBackend))
	}
	if c.HistoryTurns <= 0 {
		errs = append(errs, errors.New("HISTORY_TURNS must be > 0"))
	}
	if c.MinInterval < 0 {
		errs = append(errs, errors.New("MIN_INTERVAL must be >= 0"))
	}
	if c.MaxImageDimension < 64 {
		errs = append(errs, errors.New("MAX_IMAGE_DIMENSION must be >= 64"))
	}
	if c.AnalysisCacheSize <= 0 {
		errs = append(errs, errors.New("ANALYSIS_CACHE_SIZE must be > 0"))
	}
	if c.MaxConversations <= 0 {
		errs = append(errs, errors.New("MAX_CONVERSATIONS must be > 0"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be > 0"))
	}
	for role, rc := range c.Roles {
		if !role.Valid() {
			errs = append(errs, fmt.Errorf("roles: unknown role %q", role))
			continue
		}
		for _, p := range rc.Chain {
			if !knownProviders[p] {
				errs = append(errs, fmt.Errorf("roles.%s.chain: unknown provider %q", role, p))
			}
		}
		if _, err := renderPrompt(role, rc.SystemPrompt); err != nil {
			errs = append(errs, fmt.Errorf("roles.%s.system_prompt: %w", role, err))
		}
	}
	return errors.Join(errs...)
}

// promptData is available to system prompt templates, e.g.
// "You are the {{.DisplayName}}.".
type promptData struct {
	Role        string
	DisplayName string
}

func renderPrompt(role core.AgentRole, text string) (string, error) {
	return util.RenderTemplate(text, promptData{Role: role.String(), DisplayName: role.DisplayName()})
}

// SystemPrompts returns the configured system prompt overrides, rendered as
// templates. Prompts that fail to render are used verbatim; Validate reports
// them.
func (c *Config) SystemPrompts() map[core.AgentRole]string {
	out := make(map[core.AgentRole]string)
	for role, rc := range c.Roles {
		if rc.SystemPrompt == "" {
			continue
		}
		text, err := renderPrompt(role, rc.SystemPrompt)
		if err != nil {
			text = rc.SystemPrompt
		}
		out[role] = strings.TrimSpace(text)
	}
	return out
}

// Chains returns the configured fallback chain overrides.
func (c *Config) Chains() map[core.AgentRole][]string {
	out := make(map[core.AgentRole][]string)
	for role, rc := range c.Roles {
		if len(rc.Chain) > 0 {
			out[role] = append([]string(nil), rc.Chain...)
		}
	}
	return out
}

// HasProvider reports whether credentials for any provider are configured.
func (c *Config) HasProvider() bool {
	return c.AnthropicAPIKey != "" || c.OpenAIAPIKey != "" || c.GeminiAPIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, value))
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration like 2s, got %q", key, value))
		return fallback
	}
	return d
}
