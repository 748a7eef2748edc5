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
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "THINKSTUDIO_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "THINKSTUDIO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "catalog.path", typ: kString, env: "THINKSTUDIO_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Path },
	},
	{
		key: "catalog.content_pack", typ: kString, env: "THINKSTUDIO_CATALOG_CONTENT_PACK",
		apply:   func(cfg *Config, v any) { cfg.Catalog.ContentPack = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.ContentPack },
	},
	{
		key: "semantic.base_url", typ: kString, env: "THINKSTUDIO_SEMANTIC_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Semantic.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Semantic.BaseURL },
	},
	{
		key: "semantic.timeout", typ: kString, env: "THINKSTUDIO_SEMANTIC_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Semantic.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Semantic.Timeout },
	},
	{
		key: "semantic.top_k", typ: kInt, env: "THINKSTUDIO_SEMANTIC_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Semantic.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Semantic.TopK },
	},
	{
		key: "tension.top_shifts", typ: kInt, env: "THINKSTUDIO_TENSION_TOP_SHIFTS",
		apply:   func(cfg *Config, v any) { cfg.Tension.TopShifts = v.(int) },
		extract: func(cfg Config) any { return cfg.Tension.TopShifts },
	},
	{
		key: "log.level", typ: kString, env: "THINKSTUDIO_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
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
