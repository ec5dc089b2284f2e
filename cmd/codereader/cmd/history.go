package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/history"
	"github.com/MeKo-Tech/codereader/internal/utils"
)

// historyCmd groups the history subcommands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage the scan history",
	Long: `The scan history keeps the most recent results, newest first, together
with the annotated image of each scan.

Examples:
  codereader history list
  codereader history show 2f1c...
  codereader history image 2f1c... out.png
  codereader history rm 2f1c...
  codereader history clear`,
}

func openHistory() (*history.Store, error) {
	cfg := GetConfig()
	return history.Open(cfg.ToHistoryOptions(slog.Default()))
}

var historyListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List history entries, newest first",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		entries := store.List()

		format := outputFormat(cmd, GetConfig())
		if format != formatText {
			if entries == nil {
				entries = []history.Entry{}
			}
			return writeStructured(cmd.OutOrStdout(), format, entries)
		}

		if len(entries) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "history is empty")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tTIME\tFORMAT\tVALUE")
		for _, e := range entries {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				e.ID, e.FormatTimestamp(), barcode.DisplayFormat(e.Format), barcode.DisplayText(e.Value))
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:          "show <id>",
	Short:        "Show one history entry",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		entry, err := store.Get(args[0])
		if err != nil {
			return err
		}

		format := outputFormat(cmd, GetConfig())
		if format != formatText {
			return writeStructured(cmd.OutOrStdout(), format, entry)
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "ID:     %s\n", entry.ID)
		_, _ = fmt.Fprintf(out, "Time:   %s\n", entry.FormatTimestamp())
		_, _ = fmt.Fprintf(out, "Format: %s\n", barcode.DisplayFormat(entry.Format))
		_, _ = fmt.Fprintf(out, "Link:   %t\n", barcode.IsLink(entry.Value))
		_, _ = fmt.Fprintf(out, "Value:  %s\n", entry.Value)
		return nil
	},
}

var historyImageCmd = &cobra.Command{
	Use:          "image <id> <output file>",
	Short:        "Write the annotated image of an entry to a file",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		img, err := store.Image(args[0])
		if err != nil {
			return err
		}
		return utils.SaveImage(args[1], img)
	},
}

var historyRemoveCmd = &cobra.Command{
	Use:          "rm <id>...",
	Aliases:      []string{"remove"},
	Short:        "Remove history entries",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := store.Remove(id); err != nil {
				return fmt.Errorf("remove %s: %w", id, err)
			}
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove all history entries",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		return store.RemoveAll()
	},
}

var historyPurgeCmd = &cobra.Command{
	Use:          "purge",
	Short:        "Delete saved images that no entry refers to",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		n, err := store.Purge()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned image(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyImageCmd,
		historyRemoveCmd, historyClearCmd, historyPurgeCmd)

	historyCmd.PersistentFlags().StringP("format", "f", formatText, "output format: text, json or yaml (default from output.format)")
}
