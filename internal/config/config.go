// Package config loads the application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf holds the configuration loaded by Init.
var Conf Config

// apiKeyKey is the viper key of the provider credential. It is bound to the
// environment and deliberately left out of config.yaml.
const apiKeyKey = "llm.api_key"

// Config mirrors configs/config.yaml.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Grading GradingConfig `mapstructure:"grading"`
	Session SessionConfig `mapstructure:"session"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// ProxyURL is where browser sessions send their grading calls.
	ProxyURL string `mapstructure:"proxy_url"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig describes the chat-completion provider.
type LLMConfig struct {
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Referer    string              `mapstructure:"referer"`
	Title      string              `mapstructure:"title"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig holds the sampling parameters. Zero values are not sent.
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// GradingConfig holds the user-visible strings of the grading proxy and the
// conversation controller.
type GradingConfig struct {
	ErrorPrefix       string `mapstructure:"error_prefix"`
	FallbackText      string `mapstructure:"fallback_text"`
	FailureText       string `mapstructure:"failure_text"`
	InvalidPrefix     string `mapstructure:"invalid_prefix"`
	ClientFailureText string `mapstructure:"client_failure_text"`
	UnreachableText   string `mapstructure:"unreachable_text"`
	TooLargeText      string `mapstructure:"too_large_text"`
}

// SessionConfig configures browser sessions.
type SessionConfig struct {
	RevealInterval time.Duration `mapstructure:"reveal_interval"`
}

func setDefaults() {
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.proxy_url", "http://localhost:3000")
	viper.SetDefault("server.max_body_bytes", 1<<20)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output_path", "")

	viper.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("llm.model", "gpt-3.5-turbo")
	viper.SetDefault("llm.referer", "http://localhost:3000")
	viper.SetDefault("llm.title", "AIGrader")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.generation.temperature", 0.3)

	viper.SetDefault("grading.error_prefix", "Fel från OpenRouter: ")
	viper.SetDefault("grading.fallback_text", "Inget svar från AI.")
	viper.SetDefault("grading.failure_text", "Något gick fel vid AI-bedömning.")
	viper.SetDefault("grading.invalid_prefix", "Ogiltig begäran: ")
	viper.SetDefault("grading.client_failure_text", "Något gick fel.")
	viper.SetDefault("grading.unreachable_text", "Kunde inte kontakta AI-servern.")
	viper.SetDefault("grading.too_large_text", "Begäran är för stor.")

	viper.SetDefault("session.reveal_interval", "15ms")
}

// Load reads .env (if present), then configPath (if present), then the
// environment, and returns the merged configuration. Environment keys use the
// AIGRADER_ prefix, e.g. AIGRADER_SERVER_PORT.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	setDefaults()
	viper.SetEnvPrefix("AIGRADER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv(apiKeyKey, "OPENROUTER_API_KEY", "AIGRADER_LLM_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind api key env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			viper.SetConfigFile(configPath)
			viper.SetConfigType("yaml")
			if err := viper.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("stat config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Init loads the configuration into Conf and panics on failure.
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}
	Conf = cfg
}

// APIKey returns the provider credential. It is looked up in the environment
// on every call so a rotated key takes effect without a restart.
func APIKey() string {
	return viper.GetString(apiKeyKey)
}
