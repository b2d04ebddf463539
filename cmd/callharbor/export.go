package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Write an XLSX analysis report for an import job",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "output file (default import-<job-id>.xlsx)")
	_ = viper.BindPFlag("out", exportCmd.Flags().Lookup("out"))
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	data, err := a.Export.ExportJobXLSX(ctx, jobID)
	if err != nil {
		return err
	}

	out := viper.GetString("out")
	if out == "" {
		out = fmt.Sprintf("import-%s.xlsx", jobID)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	color.Green("wrote %s (%d bytes)", out, len(data))
	return nil
}
