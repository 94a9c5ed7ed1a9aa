package config

import (
	"os"
	"testing"
	"time"
)

const sampleConfig = `
llm:
  provider: openai
  base_url: https://api.example.com
  api_key: dummy
  model: gpt-4o
server:
  host: 0.0.0.0
  port: "8080"
assistant:
  cache_ttl: 1h
  history_db_path: /tmp/history-test.db
mcp_servers:
  - name: weather
    type: stdio
    command: ./mock
    args: ["--flag"]
    env:
      FOO: bar
`

// TestLoad verifies yaml unmarshalling and that defaults fill omitted keys.
func TestLoad(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(sampleConfig); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Fatalf("unexpected model: %s", cfg.LLM.Model)
	}
	if cfg.Assistant.CacheTTL != time.Hour {
		t.Fatalf("unexpected cache ttl: %v", cfg.Assistant.CacheTTL)
	}
	if cfg.Assistant.HistoryDBPath != "/tmp/history-test.db" {
		t.Fatalf("unexpected history path: %s", cfg.Assistant.HistoryDBPath)
	}
	// Defaults for keys the file omits.
	if cfg.Assistant.WeatherTool != "get_weather" {
		t.Fatalf("weather tool default not applied: %s", cfg.Assistant.WeatherTool)
	}
	if cfg.Assistant.DefaultTravelStyle != "road-trip" {
		t.Fatalf("travel style default not applied: %s", cfg.Assistant.DefaultTravelStyle)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level default not applied: %s", cfg.LogLevel)
	}
	if len(cfg.MCPServers) != 1 {
		t.Fatalf("expected 1 mcp server, got %d", len(cfg.MCPServers))
	}
	s := cfg.MCPServers[0]
	if s.Type != ClientTypeStdio {
		t.Fatalf("expected type stdio, got %s", s.Type)
	}
	if s.Command != "./mock" {
		t.Fatalf("unexpected command: %s", s.Command)
	}
	if len(s.Args) != 1 || s.Args[0] != "--flag" {
		t.Fatalf("unexpected args: %v", s.Args)
	}
	if v := s.Env["foo"]; v != "bar" {
		t.Fatalf("env not parsed: %v", s.Env)
	}
}
