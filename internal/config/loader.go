package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name of the configuration file (without extension).
	ConfigFileName = "codereader"
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CODEREADER"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader backed by the global viper
// instance, so flags bound by cobra commands are visible to it.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader over an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from all sources with proper precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority).
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation loads configuration without validating it.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.setDefaults()
	l.setupEnvironmentVariables()

	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file
// without validating it.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	l.setDefaults()
	l.setupEnvironmentVariables()

	l.v.SetConfigFile(configFile)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path of the config file that was used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// GetConfigSearchPaths returns the directories searched for codereader.yaml,
// in order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		paths = append(paths, filepath.Join(xdg, "codereader"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "codereader"))
	}
	return append(paths, "/etc/codereader")
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// scan.timeout_ms -> CODEREADER_SCAN_TIMEOUT_MS
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("scan.timeout_ms", defaults.Scan.TimeoutMs)
	l.v.SetDefault("scan.max_size", defaults.Scan.MaxSize)
	l.v.SetDefault("scan.marker_color", defaults.Scan.MarkerColor)
	l.v.SetDefault("scan.rotation", defaults.Scan.Rotation)
	l.v.SetDefault("scan.viewfinder", defaults.Scan.ViewFinder)
	l.v.SetDefault("scan.formats", defaults.Scan.Formats)
	l.v.SetDefault("scan.try_harder", defaults.Scan.TryHarder)
	l.v.SetDefault("scan.debug_dir", defaults.Scan.DebugDir)

	l.v.SetDefault("history.dir", defaults.History.Dir)
	l.v.SetDefault("history.max_count", defaults.History.MaxCount)
	l.v.SetDefault("history.save_images", defaults.History.SaveImages)
	l.v.SetDefault("history.purge_schedule", defaults.History.PurgeSchedule)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.metrics_enabled", defaults.Server.MetricsEnabled)
	l.v.SetDefault("server.scans_per_minute", defaults.Server.ScansPerMinute)
	l.v.SetDefault("server.scans_per_hour", defaults.Server.ScansPerHour)

	l.v.SetDefault("output.format", defaults.Output.Format)
}

// WriteConfigToFile writes cfg as YAML to filename, creating parent
// directories.
func WriteConfigToFile(cfg *Config, filename string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefaultConfigFile writes the default configuration to filename.
func GenerateDefaultConfigFile(filename string) error {
	cfg := DefaultConfig()
	return WriteConfigToFile(&cfg, filename)
}

// PrintConfigInfo prints information about configuration sources.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	if used := l.GetConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(w, "Using config file: %s\n", used)
	} else {
		_, _ = fmt.Fprintln(w, "No config file found, using defaults and environment variables")
	}
	_, _ = fmt.Fprintf(w, "Environment variable prefix: %s_\n", EnvPrefix)
	_, _ = fmt.Fprintln(w, "Config search paths:")
	for _, p := range GetConfigSearchPaths() {
		_, _ = fmt.Fprintf(w, "  %s\n", p)
	}
}
