package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rdcatalog/lib/parfilter"
	"rdcatalog/lib/scrapers/dataportal/core"
	"rdcatalog/lib/scrapers/dataportal/entry"
)

var (
	exportOffline bool
	exportFilter  string
	exportWorkers int
)

func init() {
	exportCmd.Flags().BoolVar(&exportOffline, "offline", false, "parse the latest cached export instead of fetching")
	exportCmd.Flags().StringVar(&exportFilter, "filter", "", "only list datasets whose id or status contains this text")
	exportCmd.Flags().IntVar(&exportWorkers, "workers", 0, "filter worker count (0 picks a host-derived default)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Downloads the theme-list CSV and prints per-dataset listing labels.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if exportOffline {
			cached, ok := entry.FindLatestExport(config.ExportDir, core.Environment(environment))
			if !ok {
				return fmt.Errorf("no cached export for %s under %s", environment, config.ExportDir)
			}
			path = cached
		} else {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.Login(cmd.Context()); err != nil {
				return err
			}
			path, err = entry.ExportThemeCSV(cmd.Context(), client, config.ExportDir)
			if err != nil {
				return err
			}
		}

		payload, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rows := entry.ParseThemeCSV(entry.DecodeCSVPayload(payload))
		if exportFilter != "" {
			ctx := cmd.Context()
			rows = parfilter.Filter(rows, func(row entry.ThemeRow) bool {
				return strings.Contains(row.DatasetID, exportFilter) ||
					strings.Contains(row.RawStatus, exportFilter)
			}, parfilter.Options{
				Workers:     parfilter.ResolveWorkers(exportWorkers),
				CancelCheck: func() bool { return ctx.Err() != nil },
			})
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Dataset", "Portal Status", "Label"})
		for _, row := range rows {
			t.AppendRow(table.Row{row.DatasetID, row.RawStatus, row.ListingLabel()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		fmt.Println("export written to", path)
		return nil
	},
}
