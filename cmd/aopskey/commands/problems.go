package commands

import (
	"log/slog"
	"os"
	"strconv"

	"aopskey/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(problemsCmd)
}

var problemsCmd = &cobra.Command{
	Use:   "problems <year> <competition>",
	Short: "Lists the problems of a competition without fetching their pages.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		year, err := strconv.Atoi(args[0])
		if err != nil {
			serviceutil.Fatal("invalid year", err)
		}

		extractor, cleanup := createExtractor(readConfig())
		defer cleanup()

		refs, warnings, err := extractor.Problems(cmd.Context(), year, args[1])
		if err != nil {
			serviceutil.Fatal("failed to list problems", err)
		}
		for _, warning := range warnings {
			slog.Warn("problem index", "warning", string(warning))
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Competition", "Problem"})
		for _, ref := range refs {
			t.AppendRow(table.Row{ref.Competition.Code, ref.Number})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
