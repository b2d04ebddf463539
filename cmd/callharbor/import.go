package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importCmd = &cobra.Command{
	Use:   "import <source-url>",
	Short: "Run a bulk import job to completion",
	Long: `Create an import job for the given source URL and drive it end to end:
discovery, download, upload, transcription hand-off and polling. The command
blocks until the job reaches a terminal status.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("user", "", "owning user id (uuid, required)")
	importCmd.Flags().String("customer", "", "customer name")
	importCmd.Flags().String("call-log", "", "optional call log mapping file url")
	_ = viper.BindPFlag("user", importCmd.Flags().Lookup("user"))
	_ = viper.BindPFlag("customer", importCmd.Flags().Lookup("customer"))
	_ = viper.BindPFlag("call_log", importCmd.Flags().Lookup("call-log"))
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	userID, err := uuid.Parse(viper.GetString("user"))
	if err != nil {
		return fmt.Errorf("--user must be a valid uuid: %w", err)
	}
	sourceURL := args[0]

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := loadConfig()
	job, err := a.Jobs.Create(ctx, userID, viper.GetString("customer"), sourceURL, cfg.Storage.DefaultBucket)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	color.Cyan("job %s created, starting import", job.ID)

	if err := a.Orchestrator.Run(ctx, job.ID, viper.GetString("call_log")); err != nil {
		color.Red("job failed: %v", err)
		return err
	}

	final, err := a.Orchestrator.JobStatus(ctx, job.ID, false)
	if err != nil {
		return err
	}
	if final.Job.FailedFiles > 0 {
		color.Yellow("job %s completed with %d/%d failed files", job.ID, final.Job.FailedFiles, final.Job.TotalFiles)
	} else {
		color.Green("job %s completed, %d files processed", job.ID, final.Job.TotalFiles)
	}
	return nil
}
