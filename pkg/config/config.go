// Package config loads mythforge settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"mythforge/pkg/inference"
)

const (
	DefaultAddr         = ":8080"
	DefaultDatabasePath = "data/mythforge.db"
	DefaultJWTSecret    = "mythforge_secret_123"
	DefaultTimeout      = 60 * time.Second
	DefaultMaxTokens    = 1024

	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

type Server struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Generation struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	// nil means the oracle default
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server     Server     `yaml:"server"`
	Database   Database   `yaml:"database"`
	Auth       Auth       `yaml:"auth"`
	Generation Generation `yaml:"generation"`
	Log        Log        `yaml:"log"`
}

// Load reads path (skipped when empty), applies environment overrides, then defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if origins := os.Getenv("ALLOW_ORIGINS"); origins != "" {
		c.Server.AllowOrigins = splitList(origins)
	}
	setString(&c.Database.Path, "DATABASE_PATH")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")

	g := &c.Generation
	setString(&g.Provider, "GENERATION_PROVIDER")
	setString(&g.BaseURL, "GENERATION_BASE_URL")
	if g.Provider == "" {
		g.Provider = providerFromKeys()
	}
	if g.APIKey == "" {
		g.APIKey = os.Getenv(keyEnv(g.Provider))
	}
	if g.Model == "" {
		g.Model = os.Getenv(modelEnv(g.Provider))
	}
	setString(&g.Model, "GENERATION_MODEL")

	if v := os.Getenv("GENERATION_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GENERATION_TEMPERATURE: %w", err)
		}
		g.Temperature = &t
	}
	if v := os.Getenv("GENERATION_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GENERATION_MAX_TOKENS: %w", err)
		}
		g.MaxTokens = n
	}
	if v := os.Getenv("GENERATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GENERATION_TIMEOUT: %w", err)
		}
		g.Timeout = d
	}
	return nil
}

// providerFromKeys picks a provider from whichever API key is set. Grok wins over OpenAI, as it
// always has; without any key a local OpenAI-compatible server is assumed.
func providerFromKeys() string {
	for _, p := range []string{"grok", ProviderGemini, "moonshot", "kimi", "openai"} {
		if os.Getenv(keyEnv(p)) != "" {
			return p
		}
	}
	return ProviderLocal
}

func keyEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

func modelEnv(provider string) string {
	return strings.ToUpper(provider) + "_MODEL"
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"*"}
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = DefaultJWTSecret
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	g := &c.Generation
	if g.Provider == "" {
		g.Provider = ProviderLocal
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = DefaultMaxTokens
	}
	if g.Timeout == 0 {
		g.Timeout = DefaultTimeout
	}
}

var ErrUnknownProvider = errors.New("unknown generation provider")

func (c *Config) Validate() error {
	g := c.Generation
	if _, ok := inference.Presets[g.Provider]; !ok && g.Provider != ProviderGemini {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, g.Provider)
	}
	if g.Provider == ProviderGemini && g.APIKey == "" {
		return errors.New("gemini provider needs GEMINI_API_KEY or generation.api_key")
	}
	if g.MaxTokens < 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", g.MaxTokens)
	}
	if g.Timeout < 0 {
		return fmt.Errorf("generation.timeout must be positive, got %s", g.Timeout)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogLevel() (log.Level, error) {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
