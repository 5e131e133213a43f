package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	app "github.com/mohammadpnp/school-import/internal/application/importer"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Create an import job for a CSV or XLSX file and process it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			created, err := a.Controller.CreateJob(ctx, app.CreateJobInput{
				FileName: filepath.Base(args[0]),
				Body:     f,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "job %s created, %d rows\n", created.JobID, created.TotalRows)

			return drive(ctx, out, a.Controller, created.JobID)
		},
	}
}

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <job-id>",
		Short: "Resume an existing job until it completes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return drive(ctx, cmd.OutOrStdout(), a.Controller, args[0])
		},
	}
}

// drive processes jobID batch by batch, printing progress after each one.
func drive(ctx context.Context, out io.Writer, controller app.JobController, jobID string) error {
	last, err := app.Drive(ctx, controller, jobID, func(res app.BatchResult) {
		var eta *float64
		if status, err := controller.GetStatus(ctx, jobID); err == nil {
			eta = status.ETASeconds
		}
		fmt.Fprintln(out, formatProgress(res, eta))
	})
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "interrupted at row %d, resume with: importctl process %s\n", last.CursorLine, jobID)
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(out, "job %s %s: %d inserted, %d skipped, %d failed\n",
		jobID, last.Status, last.InsertedRecords, last.SkippedRecords, last.FailedRecords)
	return nil
}

func formatProgress(res app.BatchResult, etaSeconds *float64) string {
	pct := 100.0
	if res.TotalRecords > 0 {
		pct = float64(res.CursorLine) / float64(res.TotalRecords) * 100
	}
	line := fmt.Sprintf("batch %d: %d/%d rows (%.1f%%) inserted=%d skipped=%d failed=%d",
		res.CurrentBatch, res.CursorLine, res.TotalRecords, pct,
		res.InsertedRecords, res.SkippedRecords, res.FailedRecords)
	if etaSeconds != nil && !res.Done {
		line += " eta " + (time.Duration(math.Round(*etaSeconds)) * time.Second).String()
	}
	return line
}
