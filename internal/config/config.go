package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for medbrief
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Assistant AssistantConfig `mapstructure:"assistant"`
}

// ServerConfig holds the session API server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port" validate:"min=1,max=65535"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds the optional shared API key for the session API
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// RemoteConfig points at the summarization service
type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// StoreConfig selects the persistent mirror backend
type StoreConfig struct {
	Driver     string `mapstructure:"driver" validate:"oneof=sqlite badger memory"`
	Path       string `mapstructure:"path" validate:"required_unless=Driver memory"`
	MirrorChat bool   `mapstructure:"mirror_chat"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

// AssistantConfig holds configuration for the remote assistant service
type AssistantConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port" validate:"min=1,max=65535"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model" validate:"required"`
	MaxTokens int           `mapstructure:"max_tokens" validate:"gt=0"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Load loads configuration from .env, config file and environment
func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MEDBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The Anthropic SDK convention wins when no explicit key is configured
	if cfg.Assistant.APIKey == "" {
		cfg.Assistant.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("remote.base_url", "http://localhost:5000/api")
	v.SetDefault("remote.timeout", 60*time.Second)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "./data/medbrief.db")
	v.SetDefault("store.mirror_chat", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.development", false)

	v.SetDefault("assistant.host", "0.0.0.0")
	v.SetDefault("assistant.port", 5000)
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("assistant.max_tokens", 4096)
	v.SetDefault("assistant.timeout", 120*time.Second)
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Address returns the session API address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AssistantAddress returns the assistant service address
func (c *Config) AssistantAddress() string {
	return fmt.Sprintf("%s:%d", c.Assistant.Host, c.Assistant.Port)
}
