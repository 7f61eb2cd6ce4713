// Package core contains the recorder's configuration handling.
package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/recli/pkg/models"
)

// ConfigurationManager defines the interface for loading the recorder
// configuration from .recli.yaml with RECLI_* environment overrides.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
}

// viperConfigManager implements ConfigurationManager using Viper.
type viperConfigManager struct {
	// basePath is the directory where .recli.yaml resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// configuration relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultBasePath resolves the recorder's data root: $RECLI_HOME when set,
// otherwise ~/.recli.
func DefaultBasePath() string {
	if root := os.Getenv("RECLI_HOME"); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".recli")
	}
	return filepath.Join(home, ".recli")
}

// defaultGlobalConfig returns a GlobalConfig populated with defaults. The
// core only requires a resolved host string and a writable directory path;
// everything else has a working fallback.
func defaultGlobalConfig(basePath string) *models.GlobalConfig {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	return &models.GlobalConfig{
		Host:   host,
		LogDir: filepath.Join(basePath, "logs"),
		Shell:  shell,
		Hotkey: 0x18, // Ctrl-X
		Detector: models.DetectorConfig{
			Marker: 133,
		},
	}
}

// LoadGlobalConfig reads .recli.yaml from the base path. A missing file
// yields defaults, never an error.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := defaultGlobalConfig(cm.basePath)

	v := viper.New()
	v.SetConfigName(".recli")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("RECLI")
	v.AutomaticEnv()

	v.SetDefault("host", cfg.Host)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("shell", cfg.Shell)
	v.SetDefault("hotkey", int(cfg.Hotkey))
	v.SetDefault("detector.marker", cfg.Detector.Marker)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading .recli.yaml: %w", err)
		}
	}

	cfg.Host = v.GetString("host")
	cfg.LogDir = v.GetString("log_dir")
	cfg.Shell = v.GetString("shell")
	if hk := v.GetInt("hotkey"); hk > 0 && hk < 0x20 {
		cfg.Hotkey = byte(hk)
	}
	if marker := v.GetInt("detector.marker"); marker > 0 {
		cfg.Detector.Marker = marker
	}
	cfg.Detector.Prompts = v.GetStringSlice("detector.prompts")

	return cfg, nil
}
