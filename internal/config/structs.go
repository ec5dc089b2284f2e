//nolint:lll
package config

// Config represents the complete configuration for codereader.
// It includes settings for all commands (scan, history, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Scan session configuration
	Scan ScanConfig `mapstructure:"scan" yaml:"scan" json:"scan"`

	// History store configuration
	History HistoryConfig `mapstructure:"history" yaml:"history" json:"history"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
}

// ScanConfig contains scan session settings.
type ScanConfig struct {
	TimeoutMs   int      `mapstructure:"timeout_ms" yaml:"timeout_ms" json:"timeout_ms"`
	MaxSize     int      `mapstructure:"max_size" yaml:"max_size" json:"max_size"`
	MarkerColor string   `mapstructure:"marker_color" yaml:"marker_color" json:"marker_color"`
	Rotation    int      `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
	ViewFinder  string   `mapstructure:"viewfinder" yaml:"viewfinder" json:"viewfinder"`
	Formats     []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder   bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	DebugDir    string   `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// HistoryConfig contains history store settings.
type HistoryConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir" json:"dir"`
	MaxCount      int    `mapstructure:"max_count" yaml:"max_count" json:"max_count"`
	SaveImages    bool   `mapstructure:"save_images" yaml:"save_images" json:"save_images"`
	PurgeSchedule string `mapstructure:"purge_schedule" yaml:"purge_schedule" json:"purge_schedule"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MetricsEnabled  bool   `mapstructure:"metrics_enabled" yaml:"metrics_enabled" json:"metrics_enabled"`
	ScansPerMinute  int    `mapstructure:"scans_per_minute" yaml:"scans_per_minute" json:"scans_per_minute"`
	ScansPerHour    int    `mapstructure:"scans_per_hour" yaml:"scans_per_hour" json:"scans_per_hour"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}
