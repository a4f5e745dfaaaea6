package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <dataset-id>",
	Short: "Shows what the portal currently knows about a dataset.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, resolver, err := newResolver(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.Login(cmd.Context()); err != nil {
			return err
		}

		status, err := resolver.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		hasContents, err := resolver.HasContents(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRow(table.Row{"dataset id", status.DatasetID})
		t.AppendRow(table.Row{"registered", status.DatasetIDFound})
		t.AppendRow(table.Row{"editable", status.CanEdit})
		t.AppendRow(table.Row{"status", status.Status})
		t.AppendRow(table.Row{"listing label", status.ListingLabel()})
		t.AppendRow(table.Row{"t_code", status.TCode})
		t.AppendRow(table.Row{"contents archive", hasContents})
		if status.PublicURL != "" {
			t.AppendRow(table.Row{"public url", status.PublicURL})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
