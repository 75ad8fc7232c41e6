package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/service"
)

var (
	processSource string
	processTitle  string
)

var processCmd = &cobra.Command{
	Use:   "process [job-id]",
	Short: "Process a single job and exit",
	Long: `Run the full processing pipeline for one job synchronously.

With a job ID argument, the existing job is processed. With --source,
a new job is created for the given file and processed immediately.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processSource, "source", "", "source video file to register and process")
	processCmd.Flags().StringVar(&processTitle, "title", "", "title for the new job (with --source)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, logger)
	if err != nil {
		return err
	}
	defer application.close()

	var jobID models.ULID
	switch {
	case len(args) == 1:
		jobID, err = models.ParseULID(args[0])
		if err != nil {
			return fmt.Errorf("invalid job id %q: %w", args[0], err)
		}
	case processSource != "":
		title := processTitle
		if title == "" {
			title = processSource
		}
		job, err := application.videoSvc.CreateJob(ctx, service.CreateJobRequest{
			Title:      title,
			SourcePath: processSource,
		})
		if err != nil {
			return err
		}
		jobID = job.ID
		logger.Info("job created", slog.String("job_id", jobID.String()))
	default:
		return fmt.Errorf("either a job ID argument or --source is required")
	}

	result, err := application.orchestrator.Process(ctx, jobID)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("processing failed at %s: %s", result.FailedStage, result.Error)
	}

	fmt.Printf("job %s completed: %d renditions, %d failed, %.1fs encode time\n",
		jobID, result.Stats.Succeeded, result.Stats.Failed, result.Stats.TotalSeconds)
	for _, out := range result.Outputs {
		fmt.Println("  " + out)
	}
	return nil
}
