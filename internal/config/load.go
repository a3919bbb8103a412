package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	dir := filepath.Join(configDir, "dictascribe")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: run dictascribe configure", ErrConfigNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	return LoadFile(configPath)
}

// LoadFile reads a TOML config, applies defaults for unset fields, and
// overlays environment overrides (a .env beside the working directory is
// honored so credentials can stay out of the config file).
func LoadFile(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	_ = godotenv.Load()
	config.applyEnv()

	return config, nil
}

// applyEnv overlays the environment variables recognized by the original
// deployment scripts onto the loaded configuration.
func (c *Config) applyEnv() {
	if v := os.Getenv("ORACLE_PASSWORD"); v != "" {
		c.Oracle.Password = v
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		c.Mongo.Database = v
	}
	if v := os.Getenv("SHARE_USERNAME"); v != "" {
		c.Share.Username = v
	}
	if v := os.Getenv("SHARE_PASSWORD"); v != "" {
		c.Share.Password = v
	}
	if v := os.Getenv("SR_OUTPUT_FOLDER"); v != "" {
		c.Report.SROutputFolder = v
	}
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Monitor.PollInterval = time.Duration(secs) * time.Second
		}
	}
	if v, ok := toggleFromEnv("ENCAPSULATE_TEXT_AS_ENHANCED_SR"); ok {
		c.Report.EncapsulateEnhancedSR = v
	}
	if v, ok := toggleFromEnv("STORE_TRANSCRIBED_REPORT"); ok {
		c.Report.StoreTranscribedReport = v
	}
	if v, ok := toggleFromEnv("PRINT_GEMINI_OUTPUT"); ok {
		c.Transcription.PrintOutput = v
	}
}

// toggleFromEnv parses the ON/OFF convention the original config used.
func toggleFromEnv(name string) (value, ok bool) {
	switch os.Getenv(name) {
	case "ON", "on":
		return true, true
	case "OFF", "off":
		return false, true
	}
	return false, false
}
