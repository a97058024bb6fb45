package config

import (
	"fmt"
)

type Config struct {
	Server    ServerConfig
	Agent     AgentConfig
	Lifecycle LifecycleConfig
	Storage   StorageConfig
	API       APIConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// AgentConfig selects and tunes the processing backend. Mode is "mock"
// (deterministic local reply) or "http" (real agent tier at BaseURL).
type AgentConfig struct {
	Mode      string
	BaseURL   string
	Timeout   string
	MockDelay string
}

type LifecycleConfig struct {
	Retention     string
	MaxConcurrent int
	ReapInterval  string
}

type StorageConfig struct {
	DataDir string
}

type APIConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Agent: AgentConfig{
			Mode:      "mock",
			BaseURL:   "http://localhost:8001",
			Timeout:   "120s",
			MockDelay: "5s",
		},
		Lifecycle: LifecycleConfig{
			Retention:     "15m",
			MaxConcurrent: 8,
			ReapInterval:  "1m",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/thinkd/config.json, then applies THINK_* environment
// overrides. The API token is secret and comes from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	switch cfg.Agent.Mode {
	case "mock", "http":
	default:
		return Config{}, fmt.Errorf("invalid agent.mode %q: must be \"mock\" or \"http\"", cfg.Agent.Mode)
	}

	if cfg.Agent.Mode == "http" && cfg.Agent.BaseURL == "" {
		return Config{}, fmt.Errorf("agent.base_url is required when agent.mode is \"http\"")
	}

	return cfg, nil
}
