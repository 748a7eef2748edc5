package config

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Catalog  CatalogConfig
	Semantic SemanticConfig
	Tension  TensionConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type CatalogConfig struct {
	// Path to the strategies CSV. Empty means the embedded sample set.
	Path string
	// ContentPack optionally replaces the built-in themes and lenses
	// with a curated YAML file.
	ContentPack string
}

type SemanticConfig struct {
	// BaseURL of the optional embedding backend. Empty disables
	// semantic search; keyword matching still works.
	BaseURL string
	// Timeout per backend call, as a duration string ("3s").
	Timeout string
	TopK    int
}

type TensionConfig struct {
	TopShifts int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Semantic: SemanticConfig{
			Timeout: "3s",
			TopK:    20,
		},
		Tension: TensionConfig{
			TopShifts: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/thinkstudio/config.json, then applies environment
// variable overrides (THINKSTUDIO_*). Everything has a default; Load
// never fails on a missing file.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
