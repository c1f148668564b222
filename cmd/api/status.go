package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"video-chapters-go/internal/config"
	"video-chapters-go/internal/jobstatus"
	"video-chapters-go/internal/types"
)

func newStatusCmd() *cobra.Command {
	var (
		videoID string
		state   string
	)

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show pipeline job status",
		Long:  "Prints one job by tracking id, or lists jobs for a video (--video) or in a state (--state).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args, videoID, state)
		},
	}

	cmd.Flags().StringVar(&videoID, "video", "", "list runs for a video id")
	cmd.Flags().StringVar(&state, "state", "", "list jobs in a state (queued, processing, failed, ...)")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string, videoID, state string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var rows []jobstatus.JobStatus
	switch {
	case len(args) == 1:
		row, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		rows = []jobstatus.JobStatus{*row}
	case videoID != "":
		if rows, err = store.ForVideo(ctx, videoID); err != nil {
			return err
		}
	case state != "":
		s := types.JobState(state)
		if !s.Valid() {
			return fmt.Errorf("unknown state %q", state)
		}
		if rows, err = store.ByStatus(ctx, s); err != nil {
			return err
		}
	default:
		return fmt.Errorf("job id, --video or --state is required")
	}

	views := make([]types.JobStatusView, 0, len(rows))
	for i := range rows {
		views = append(views, rows[i].View())
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if len(args) == 1 {
		return enc.Encode(views[0])
	}
	return enc.Encode(views)
}
