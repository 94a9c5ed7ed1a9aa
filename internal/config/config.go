package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// MCP client transport types.
const (
	ClientTypeSSE            = "sse"
	ClientTypeStreamableHTTP = "streamable_http"
	ClientTypeStdio          = "stdio"
)

// Config holds the application configuration.
type Config struct {
	LLM        LLMConfig         `mapstructure:"llm"`
	Server     ServerConfig      `mapstructure:"server"`
	Assistant  AssistantConfig   `mapstructure:"assistant"`
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
	LogLevel   string            `mapstructure:"log_level"`
}

// LLMConfig holds the LLM configuration.
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// AssistantConfig holds the assistant pipeline knobs: where the generation
// cache and message history live, how long cached generations stay valid,
// and the default table applied when a trip request leaves fields empty.
type AssistantConfig struct {
	CachePath          string        `mapstructure:"cache_path"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	HistoryDBPath      string        `mapstructure:"history_db_path"`
	WeatherTool        string        `mapstructure:"weather_tool"`
	DefaultTravelStyle string        `mapstructure:"default_travel_style"`
	DefaultBudget      string        `mapstructure:"default_budget"`
}

// MCPServerConfig describes one MCP server the generation service may call
// tools on. Shape follows the transport type: url for sse/streamable_http,
// command/args/env for stdio.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    string            `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// Load reads config.yaml from the working directory, or from the file named
// by the CONFIG_PATH environment variable when set.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("assistant.cache_path", filepath.Join("data", "generations.bolt"))
	v.SetDefault("assistant.cache_ttl", 24*time.Hour)
	v.SetDefault("assistant.history_db_path", "history.db")
	v.SetDefault("assistant.weather_tool", "get_weather")
	v.SetDefault("assistant.default_travel_style", "road-trip")
	v.SetDefault("assistant.default_budget", "1000")
}
