package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ks2178o2/callharbor/constants"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show an import job's progress and per-file state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	jobID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("job id must be a valid uuid: %w", err)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.Orchestrator.JobStatus(ctx, jobID, true)
	if err != nil {
		return err
	}

	job := status.Job
	fmt.Printf("job:      %s\n", job.ID)
	fmt.Printf("status:   %s\n", job.Status)
	fmt.Printf("progress: %.1f%% (%d/%d, %d failed)\n",
		status.ProgressPercent, job.ProcessedFiles, job.TotalFiles, job.FailedFiles)
	if job.ErrorMessage != nil {
		color.Red("error:    %s", *job.ErrorMessage)
	}

	for _, detail := range status.Files {
		f := detail.File
		line := fmt.Sprintf("  %-40s %s", f.FileName, f.Status)
		switch {
		case f.Status == constants.FileStatusFailed:
			color.Red("%s", line)
			if f.ErrorMessage != nil {
				color.Red("    %s", *f.ErrorMessage)
			}
		case f.Status.Terminal():
			color.Green("%s", line)
		default:
			fmt.Println(line)
		}
		if detail.CallRecord != nil && detail.CallRecord.CallCategory != nil {
			fmt.Printf("    category=%s objections=%d\n", *detail.CallRecord.CallCategory, len(detail.Objections))
		}
	}
	return nil
}
