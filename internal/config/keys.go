package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "THINK_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "THINK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "agent.mode", typ: kString, env: "THINK_AGENT_MODE",
		apply:   func(cfg *Config, v any) { cfg.Agent.Mode = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.Mode },
	},
	{
		key: "agent.base_url", typ: kString, env: "THINK_AGENT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Agent.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.BaseURL },
	},
	{
		key: "agent.timeout", typ: kString, env: "THINK_AGENT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Agent.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.Timeout },
	},
	{
		key: "agent.mock_delay", typ: kString, env: "THINK_AGENT_MOCK_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Agent.MockDelay = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.MockDelay },
	},
	{
		key: "lifecycle.retention", typ: kString, env: "THINK_LIFECYCLE_RETENTION",
		apply:   func(cfg *Config, v any) { cfg.Lifecycle.Retention = v.(string) },
		extract: func(cfg Config) any { return cfg.Lifecycle.Retention },
	},
	{
		key: "lifecycle.max_concurrent", typ: kInt, env: "THINK_LIFECYCLE_MAX_CONCURRENT",
		apply:   func(cfg *Config, v any) { cfg.Lifecycle.MaxConcurrent = v.(int) },
		extract: func(cfg Config) any { return cfg.Lifecycle.MaxConcurrent },
	},
	{
		key: "lifecycle.reap_interval", typ: kString, env: "THINK_LIFECYCLE_REAP_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Lifecycle.ReapInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Lifecycle.ReapInterval },
	},
	{
		key: "storage.data_dir", typ: kString, env: "THINK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "api.token", typ: kString, env: "THINK_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "log.level", typ: kString, env: "THINK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
