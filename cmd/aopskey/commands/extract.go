package commands

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"aopskey/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var extractOut *string

func init() {
	extractOut = extractCmd.Flags().String("out", "", "Write the full report as JSON to this file.")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <year> <competition> [--out <path/to/report.json>]",
	Short: "Extracts every problem, answer and solution of a competition.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		year, err := strconv.Atoi(args[0])
		if err != nil {
			serviceutil.Fatal("invalid year", err)
		}

		extractor, cleanup := createExtractor(readConfig())
		defer cleanup()

		t1 := time.Now()
		report, err := extractor.Extract(cmd.Context(), year, args[1])
		if err != nil {
			serviceutil.Fatal("extraction failed", err)
		}
		slog.Info("extraction time", "seconds", time.Since(t1).Seconds())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Problem", "Status", "Answer", "Solutions", "Warnings"})
		answers := map[int]string{}
		solutions := map[int]int{}
		for _, problem := range report.Problems {
			answers[problem.Ref.Number] = problem.Answer
			solutions[problem.Ref.Number] = len(problem.Solutions)
		}
		for _, outcome := range report.Outcomes {
			warnings := make([]string, len(outcome.Warnings))
			for i, warning := range outcome.Warnings {
				warnings[i] = string(warning)
			}
			t.AppendRow(table.Row{
				outcome.Ref.Number,
				outcome.Status.String(),
				answers[outcome.Ref.Number],
				solutions[outcome.Ref.Number],
				strings.Join(warnings, ", "),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		if *extractOut == "" {
			return
		}
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			serviceutil.Fatal("failed to encode report", err)
		}
		err = os.WriteFile(*extractOut, encoded, 0644)
		if err != nil {
			serviceutil.Fatal("failed to write report", err)
		}
		slog.Info("wrote report", "path", *extractOut)
	},
}
