package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/codereader/internal/config"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeStructured writes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// outputFormat returns the --format flag when set, else output.format.
func outputFormat(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("format") {
		format, _ := cmd.Flags().GetString("format")
		return format
	}
	if cfg.Output.Format == "" {
		return formatText
	}
	return cfg.Output.Format
}
