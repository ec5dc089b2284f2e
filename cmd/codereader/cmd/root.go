package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/codereader/internal/config"
	"github.com/MeKo-Tech/codereader/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Flags that override configuration keys, registered by each command.
	flagBindings = map[string]*pflag.Flag{}
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "codereader",
	Short: "Barcode and QR code scanner",
	Long: `codereader finds and decodes barcodes (QR, Data Matrix, Aztec, EAN,
UPC, Code 39/93/128, ITF, Codabar) in still images and live frame streams.

This tool provides:
- Scanning of image files with an optional viewfinder and device rotation
- Annotated result images with corner markers
- A scan history with saved images
- An HTTP and WebSocket server for uploads and live scanning

Examples:
  codereader scan photo.jpg
  codereader scan --viewfinder 100,200,400,300 --rotation 90 frame.png
  codereader history list
  codereader serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "codereader version "+version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is codereader.yaml in ., $HOME, $XDG_CONFIG_HOME/codereader, /etc/codereader)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("history-dir", "", "directory of the scan history")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	bindFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	bindFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("history.dir", rootCmd.PersistentFlags().Lookup("history-dir"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfigE(); err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		cfg := globalConfig

		var logLevel slog.Level
		if cfg.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch cfg.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			default:
				logLevel = slog.LevelInfo
			}
		}

		// Logs go to stderr so that scan results on stdout stay parseable.
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
		return nil
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := initConfigE(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// bindFlag makes flag override the configuration key.
func bindFlag(key string, flag *pflag.Flag) {
	flagBindings[key] = flag
}

// initConfigE loads the configuration into a fresh viper instance with all
// command flags bound to it.
func initConfigE() error {
	v := viper.New()
	for key, flag := range flagBindings {
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	configLoader = config.NewLoaderWithViper(v)

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	return err
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		initConfig()
	}
	return configLoader
}
