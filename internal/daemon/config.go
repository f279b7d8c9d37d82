// Package daemon holds the server's on-disk configuration. Config lives at
// ~/.tapcore/config.toml and is created with defaults on first run.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Economy EconomyConfig `toml:"economy"`
	Chat    ChatConfig    `toml:"chat"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host           string  `toml:"host"`
	Port           int     `toml:"port"`
	Metrics        bool    `toml:"metrics"`
	ClickRateLimit float64 `toml:"click_rate_limit"` // clicks/sec per user
	ClickBurst     int     `toml:"click_burst"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// EconomyConfig tunes the economy's base rates.
type EconomyConfig struct {
	ClickValue  int64 `toml:"click_value"`  // base crystals per click
	EnergyRegen int   `toml:"energy_regen"` // energy per second
}

// ChatConfig caps the global chat history.
type ChatConfig struct {
	KeepMessages int `toml:"keep_messages"`
}

// DefaultConfig returns the configuration a fresh install runs with.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			Metrics:        false,
			ClickRateLimit: 25,
			ClickBurst:     50,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Economy: EconomyConfig{
			ClickValue:  1,
			EnergyRegen: 1,
		},
		Chat: ChatConfig{
			KeepMessages: 200,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tapcore"
	}
	return filepath.Join(home, ".tapcore")
}

// ConfigPath returns the config file location inside the data dir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// LoadConfig reads the config file, creating it with defaults when absent.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveConfig(path, cfg); err != nil {
			return cfg, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config to disk, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
