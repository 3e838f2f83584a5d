package commands

import (
	"os"
	"strconv"

	"aopskey/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(competitionsCmd)
}

var competitionsCmd = &cobra.Command{
	Use:   "competitions <year>",
	Short: "Lists the competitions held in a year.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		year, err := strconv.Atoi(args[0])
		if err != nil {
			serviceutil.Fatal("invalid year", err)
		}

		extractor, cleanup := createExtractor(readConfig())
		defer cleanup()

		comps, err := extractor.Competitions(cmd.Context(), year)
		if err != nil {
			serviceutil.Fatal("failed to list competitions", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Year", "Code", "Name"})
		for _, comp := range comps {
			t.AppendRow(table.Row{comp.Year, comp.Code, comp.Name})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
