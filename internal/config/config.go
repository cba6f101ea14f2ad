// Package config loads and persists the application settings file.
//
// Values come from ~/.config/mango/config.yaml, overridden by MANGO_* environment
// variables (MANGO_TURN_TIMEOUT, MANGO_BRIDGE_MODE, MANGO_NATS_URL, ...).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Bridge modes.
const (
	BridgeLocal = "local"
	BridgeNATS  = "nats"
)

// Config holds all application configuration
type Config struct {
	// API keys by vendor: openai, gemini, groq, claude
	APIKeys map[string]string `mapstructure:"api_keys" yaml:"api_keys,omitempty"`

	DataDir   string `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level,omitempty"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format,omitempty"`

	TurnTimeout  time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout,omitempty"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit,omitempty"`

	SystemPrompt  string `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
	SummaryPrompt string `mapstructure:"summary_prompt" yaml:"summary_prompt,omitempty"`

	OllamaURL string `mapstructure:"ollama_url" yaml:"ollama_url,omitempty"`
	Theme     string `mapstructure:"theme" yaml:"theme,omitempty"`

	Bridge BridgeConfig `mapstructure:"bridge" yaml:"bridge,omitempty"`
	NATS   NATSConfig   `mapstructure:"nats" yaml:"nats,omitempty"`
}

// BridgeConfig selects how the panel reaches the background host.
type BridgeConfig struct {
	Mode string `mapstructure:"mode" yaml:"mode,omitempty"` // local or nats
	Port string `mapstructure:"port" yaml:"port,omitempty"`
}

// NATSConfig holds the broker connection used by the nats bridge.
type NATSConfig struct {
	URL       string `mapstructure:"url" yaml:"url,omitempty"`
	Token     string `mapstructure:"token" yaml:"token,omitempty"`
	CredsFile string `mapstructure:"creds_file" yaml:"creds_file,omitempty"`
}

var (
	configDir  string
	configFile string

	mu      sync.RWMutex
	current *Config
)

func init() {
	dir := os.Getenv("MANGO_CONFIG_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, ".config", "mango")
	}
	configDir = dir
	configFile = filepath.Join(configDir, "config.yaml")
}

func defaults() map[string]any {
	return map[string]any{
		"data_dir":        configDir,
		"log_level":       "info",
		"log_format":      "text",
		"turn_timeout":    5 * time.Minute,
		"history_limit":   0,
		"system_prompt":   "",
		"summary_prompt":  "",
		"ollama_url":      "http://localhost:11434",
		"theme":           "mango",
		"bridge.mode":     BridgeLocal,
		"bridge.port":     "assistant",
		"nats.url":        "nats://127.0.0.1:4222",
		"nats.token":      "",
		"nats.creds_file": "",
	}
}

func newViper(opts ...viper.Option) *viper.Viper {
	v := viper.NewWithOptions(opts...)
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("MANGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = map[string]string{}
	}
	return cfg, nil
}

// Load reads the config from disk
func Load() (*Config, error) {
	mu.RLock()
	cached := current
	mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	cfg, err := read(newViper())
	if err != nil {
		return nil, err
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// Save writes the config to disk
func Save(cfg *Config) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return nil
}

// Get returns the current config, loading if necessary. A broken file yields
// the defaults.
func Get() *Config {
	cfg, err := Load()
	if err == nil {
		return cfg
	}

	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	cfg = &Config{APIKeys: map[string]string{}}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Reset drops the cached config so the next Load rereads the file.
func Reset() {
	mu.Lock()
	current = nil
	mu.Unlock()
}

// vendorKey maps a provider kind or alias to its api_keys entry.
func vendorKey(name string) string {
	switch strings.ToLower(name) {
	case "openai", "local-compatible", "openai_api_key":
		return "openai"
	case "gemini", "gemini_api_key":
		return "gemini"
	case "groq", "groq_api_key":
		return "groq"
	case "claude", "anthropic", "anthropic_api_key":
		return "claude"
	}
	return ""
}

var envKeys = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"groq":   "GROQ_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// APIKey returns the stored key for a provider kind, falling back to the
// vendor's environment variable.
func APIKey(kind string) string {
	vendor := vendorKey(kind)
	if vendor == "" {
		return ""
	}
	if key := Get().APIKeys[vendor]; key != "" {
		return key
	}
	return os.Getenv(envKeys[vendor])
}

// Set updates a config value by key
func Set(key, value string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	next := *cfg
	next.APIKeys = make(map[string]string, len(cfg.APIKeys))
	for k, v := range cfg.APIKeys {
		next.APIKeys[k] = v
	}

	if vendor := vendorKey(key); vendor != "" {
		next.APIKeys[vendor] = value
		return Save(&next)
	}

	switch key {
	case "data_dir":
		next.DataDir = value
	case "log_level":
		next.LogLevel = value
	case "log_format":
		next.LogFormat = value
	case "turn_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid turn_timeout: %w", err)
		}
		next.TurnTimeout = d
	case "history_limit":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid history_limit: %q", value)
		}
		next.HistoryLimit = n
	case "system_prompt":
		next.SystemPrompt = value
	case "summary_prompt":
		next.SummaryPrompt = value
	case "ollama_url":
		next.OllamaURL = value
	case "theme":
		next.Theme = value
	case "bridge.mode":
		if value != BridgeLocal && value != BridgeNATS {
			return fmt.Errorf("invalid bridge.mode: %q (want %s or %s)", value, BridgeLocal, BridgeNATS)
		}
		next.Bridge.Mode = value
	case "bridge.port":
		next.Bridge.Port = value
	case "nats.url":
		next.NATS.URL = value
	case "nats.token":
		next.NATS.Token = value
	case "nats.creds_file":
		next.NATS.CredsFile = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(&next)
}

// Delete removes a config value, restoring its default
func Delete(key string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	if vendor := vendorKey(key); vendor != "" {
		next := *cfg
		next.APIKeys = make(map[string]string, len(cfg.APIKeys))
		for k, v := range cfg.APIKeys {
			if k != vendor {
				next.APIKeys[k] = v
			}
		}
		return Save(&next)
	}

	def, ok := defaults()[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	return Set(key, fmt.Sprint(def))
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return configFile
}

// Dir returns the config directory
func Dir() string {
	return configDir
}

// SetDir moves the config directory and drops the cached config.
func SetDir(dir string) {
	mu.Lock()
	configDir = dir
	configFile = filepath.Join(dir, "config.yaml")
	current = nil
	mu.Unlock()
}

// ListKeys returns configured values, with API keys masked for display
func ListKeys() map[string]string {
	cfg := Get()
	result := make(map[string]string)

	vendors := make([]string, 0, len(envKeys))
	for v := range envKeys {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)
	for _, v := range vendors {
		name := v + "_api_key"
		if key := cfg.APIKeys[v]; key != "" {
			result[name] = MaskKey(key)
		} else if env := os.Getenv(envKeys[v]); env != "" {
			result[name] = MaskKey(env) + " (env)"
		}
	}

	result["data_dir"] = cfg.DataDir
	result["log_level"] = cfg.LogLevel
	result["turn_timeout"] = cfg.TurnTimeout.String()
	result["history_limit"] = strconv.Itoa(cfg.HistoryLimit)
	result["ollama_url"] = cfg.OllamaURL
	result["theme"] = cfg.Theme
	result["bridge.mode"] = cfg.Bridge.Mode
	result["bridge.port"] = cfg.Bridge.Port
	result["nats.url"] = cfg.NATS.URL
	if cfg.NATS.Token != "" {
		result["nats.token"] = MaskKey(cfg.NATS.Token)
	}
	if cfg.SystemPrompt != "" {
		result["system_prompt"] = cfg.SystemPrompt
	}
	if cfg.SummaryPrompt != "" {
		result["summary_prompt"] = cfg.SummaryPrompt
	}
	return result
}

// MaskKey shows only first 4 and last 4 characters
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
