package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/CTAG07/roster/pkg/templating"
	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP server and its collaborators.
type ServerConfig struct {
	ServerAddr    string `json:"server_addr"`
	LogLevel      string `json:"log_level"`
	DataDir       string `json:"data_dir"`
	TemplateDir   string `json:"template_dir"`
	DatabasePath  string `json:"database_path"`
	IndexTemplate string `json:"index_template"`
	RowTemplate   string `json:"row_template"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig              `json:"server_config"`
	Templates *templating.TemplateConfig `json:"template_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:    ":3000",
		LogLevel:      "info",
		DataDir:       "./data",
		TemplateDir:   "./templates",
		DatabasePath:  "./data/roster.sqlite3",
		IndexTemplate: "index.html",
		RowTemplate:   "students/row.html",
	}
}

// DefaultConfig returns a Config populated with every default.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Templates: templating.DefaultConfig(),
	}
}

// validate rejects configurations the server cannot start with.
func (c *Config) validate() error {
	switch {
	case c.Server == nil:
		return errors.New("server_config is required")
	case c.Templates == nil:
		return errors.New("template_config is required")
	case c.Server.TemplateDir == "":
		return errors.New("server_config.template_dir is required")
	case c.Server.IndexTemplate == "":
		return errors.New("server_config.index_template is required")
	case c.Server.RowTemplate == "":
		return errors.New("server_config.row_template is required")
	}
	return nil
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err = writeConfig(path, config); err != nil {
				// The server can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err = config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return config, nil
}

func writeConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ConfigManager handles thread-safe access to configuration and pushes template
// settings to the template manager when they change.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
	tm         *templating.TemplateManager
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetTemplateManager registers the template manager to receive config updates.
func (cm *ConfigManager) SetTemplateManager(tm *templating.TemplateManager) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.tm = tm
	if tm != nil {
		tm.SetConfig(cm.config.Templates)
	}
}

// SetLogger sets the logger.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// Get returns a copy of the current configuration. The nested structs are copied
// too, so callers may not mutate the live settings through it.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	server := *cm.config.Server
	templates := *cm.config.Templates
	return Config{Server: &server, Templates: &templates}
}

// Update validates the new configuration, applies its template settings, and
// saves it to disk. Server settings take effect on the next restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	if err := newConfig.validate(); err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := writeConfig(cm.configPath, &newConfig); err != nil {
		return err
	}
	*cm.config = newConfig

	if cm.tm != nil {
		cm.tm.SetConfig(newConfig.Templates)
	}
	cm.logger.Info("Configuration updated", "path", cm.configPath)
	return nil
}
