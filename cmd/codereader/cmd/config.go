package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/codereader/internal/config"
)

// configCmd groups the configuration subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and generate configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a configuration file with default values",
	Long: `Write a configuration file with default values. Without an argument the
file is written to ./codereader.yaml.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			target = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if !force && fileExists(target) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", target)
		}
		if err := config.GenerateDefaultConfigFile(target); err != nil {
			return err
		}
		abs, _ := filepath.Abs(target)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", abs)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Print the resolved configuration",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format, _ := cmd.Flags().GetString("format")
		if format == formatText {
			format = formatYAML
		}
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# config file: %s\n", used)
		}
		return writeStructured(cmd.OutOrStdout(), format, cfg)
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show where configuration is read from",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		GetConfigLoader().PrintConfigInfo(cmd.OutOrStdout())
	},
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathsCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configShowCmd.Flags().StringP("format", "f", formatYAML, "output format: yaml or json")
}
