package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"rdcatalog/lib/scrapers/dataportal/upload"
)

var (
	dryRun      bool
	exactMatch  bool
	caption     string
	onDuplicate string
)

func init() {
	uploadJSONCmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop after the confirm step, never commit")
	uploadContentsCmd.Flags().BoolVar(&exactMatch, "exact-match", false, "require result phrases to be whole lines")
	uploadImageCmd.Flags().StringVar(&caption, "caption", "", "caption to register (defaults to the file name)")
	uploadImageCmd.Flags().StringVar(&onDuplicate, "on-duplicate", "abort", "what to do when the caption already exists: abort, skip or force")

	uploadCmd.AddCommand(uploadJSONCmd)
	uploadCmd.AddCommand(uploadContentsCmd)
	uploadCmd.AddCommand(uploadImageCmd)
	rootCmd.AddCommand(uploadCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Runs the portal's multi-step upload workflows.",
}

func newOrchestrator(cmd *cobra.Command) (*upload.Orchestrator, error) {
	client, resolver, err := newResolver(cmd.Context())
	if err != nil {
		return nil, err
	}
	return upload.NewOrchestrator(client, resolver), nil
}

var uploadJSONCmd = &cobra.Command{
	Use:   "json <file>",
	Short: "Uploads dataset metadata JSON via the confirm/commit workflow.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		result, err := o.UploadJSON(cmd.Context(), args[0], upload.JSONUploadOptions{DryRun: dryRun})
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", result.Outcome, result.Reason)
		return nil
	},
}

var uploadContentsCmd = &cobra.Command{
	Use:   "contents <dataset-id> <archive.zip>",
	Short: "Uploads a content archive for a dataset.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}
		if exactMatch {
			o.ContentsMatchMode = upload.MatchExact
		}
		result, err := o.UploadContents(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", result.Outcome, result.Reason)
		return nil
	},
}

var uploadImageCmd = &cobra.Command{
	Use:   "image <dataset-id> <file>",
	Short: "Registers a single image against a dataset's portal entry.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var policy upload.DuplicatePolicy
		switch onDuplicate {
		case "abort":
			policy = upload.DuplicateAbort
		case "skip":
			policy = upload.DuplicateSkip
		case "force":
			policy = upload.DuplicateForce
		default:
			return fmt.Errorf("unknown --on-duplicate value %q", onDuplicate)
		}

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}

		name := filepath.Base(args[1])
		if caption == "" {
			caption = name
		}
		results, err := o.RegisterImages(cmd.Context(), args[0], []upload.Image{{
			Path:         args[1],
			OriginalName: name,
			Caption:      caption,
		}}, policy)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Skipped {
				fmt.Printf("skipped %s: caption already registered (closest: %s)\n", r.Image.Caption, r.NearestExisting)
				continue
			}
			fmt.Printf("%s: %s\n", r.Result.Outcome, r.Image.Caption)
		}
		return nil
	},
}
