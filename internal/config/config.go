// Package config manages application configuration from files and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DRSPLIT_OUTPUT_MODE.
const EnvPrefix = "DRSPLIT"

// Config holds the application configuration.
type Config struct {
	Output struct {
		Prefix string `mapstructure:"prefix"`
		Mode   string `mapstructure:"mode"`
		Dir    string `mapstructure:"dir"`
	} `mapstructure:"output"`
	Normalize struct {
		Enabled     bool `mapstructure:"enabled"`
		FoldAccents bool `mapstructure:"fold_accents"`
	} `mapstructure:"normalize"`
	Naming struct {
		Missing string `mapstructure:"missing"`
		Empty   string `mapstructure:"empty"`
	} `mapstructure:"naming"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Server struct {
		Addr        string `mapstructure:"addr"`
		MaxUploadMB int    `mapstructure:"max_upload_mb"`
	} `mapstructure:"server"`
	Watch struct {
		DebounceMS int `mapstructure:"debounce_ms"`
	} `mapstructure:"watch"`
	Audit struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"audit"`
}

// defaults lists every known key. Order is the display order of ShowConfig.
var defaults = []struct {
	key   string
	value any
}{
	{"output.prefix", "SPLIT_"},
	{"output.mode", "workbook"},
	{"output.dir", "."},
	{"normalize.enabled", false},
	{"normalize.fold_accents", false},
	{"naming.missing", "inconnu"},
	{"naming.empty", "zone_vide"},
	{"log.level", "info"},
	{"log.format", "console"},
	{"server.addr", ":8080"},
	{"server.max_upload_mb", 50},
	{"watch.debounce_ms", 500},
	{"audit.enabled", false},
	{"audit.path", "~/.drsplit/runs.jsonl"},
}

var explicitFile string

// SetFile makes Load read path instead of ~/.drsplit/config.yaml.
func SetFile(path string) { explicitFile = path }

// Load reads the configuration from ~/.drsplit/config.yaml, a .env file in
// the working directory, and DRSPLIT_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not read .env: %w", err)
	}

	if explicitFile != "" {
		viper.SetConfigFile(explicitFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
	}

	for _, d := range defaults {
		viper.SetDefault(d.key, d.value)
	}

	// Environment variable overrides
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("could not read config %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	cfg.Audit.Path = ExpandHome(cfg.Audit.Path)
	cfg.Output.Dir = ExpandHome(cfg.Output.Dir)

	return &cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".drsplit"
	}
	return filepath.Join(home, ".drsplit")
}
