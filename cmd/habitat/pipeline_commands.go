package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/migrations"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/pipeline"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			return migrations.RunMigrations(cmd.Context(), a.db, ctx.logger)
		},
	}
}

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var (
		id     string
		status string
		reason string
	)
	cmd := &cobra.Command{
		Use:   "capture <source> <file>",
		Short: "Record a raw capture produced by the browser collaborator",
		Long:  "Record a raw capture. The item id defaults to the file name without its extension; use - to read stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := models.ParseSource(args[0])
			if err != nil {
				return err
			}
			body, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			if id == "" {
				if args[1] == "-" {
					return errors.New("--id is required when reading stdin")
				}
				id = strings.TrimSuffix(filepath.Base(args[1]), filepath.Ext(args[1]))
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			res, err := a.recorder.Record(cmd.Context(), capture.Request{
				Source:       source,
				SourceItemID: id,
				Body:         body,
				Status:       models.CaptureStatus(status),
				Error:        reason,
			})
			if errors.Is(err, capture.ErrAlreadyCaptured) {
				printf(cmd, "%s/%s already captured at %s\n", source, id, res.StoragePath)
				return nil
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Source item id")
	cmd.Flags().StringVar(&status, "status", string(models.CaptureSuccess), "Capture status (success, partial, failed)")
	cmd.Flags().StringVar(&reason, "error", "", "Capture error message")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return data, nil
}

func newTransformCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "transform <source> <id>",
		Short: "Run the staged transformation of one captured item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := models.ParseSource(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			res, err := a.pipeline.Run(cmd.Context(), models.ItemKey{Source: source, SourceItemID: args[1]}, force)
			if err != nil {
				var pe *pipeline.Error
				if errors.As(err, &pe) && len(pe.Issues) > 0 {
					_ = writeJSON(cmd, pe)
				}
				return err
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Re-run every stage even if the item is already transformed")
	return cmd
}

func newBackfillCommand(ctx *commandContext) *cobra.Command {
	var (
		source      string
		force       bool
		limit       int
		concurrency int
		delay       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Transform every pending or failed item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.BackfillOptions{Force: force, Limit: limit, Concurrency: concurrency, ItemDelay: delay}
			if source != "" {
				s, err := models.ParseSource(source)
				if err != nil {
					return err
				}
				opts.Source = s
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			lock := flock.New(ctx.config.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire backfill lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another backfill holds %s", ctx.config.LockPath())
			}
			defer lock.Unlock() //nolint:errcheck

			summary, err := a.pipeline.Backfill(cmd.Context(), opts)
			if summary != nil {
				fmt.Fprintln(cmd.OutOrStdout(), summaryTable(summary))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Only backfill this source")
	cmd.Flags().BoolVar(&force, "force", false, "Include items that are already transformed")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items (0 = all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Items processed in parallel (0 = configured default)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay between items (0 = configured default)")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		listen  string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if migrate {
				if err := migrations.RunMigrations(cmd.Context(), a.db, ctx.logger); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			if listen == "" {
				listen = ctx.config.Listen
			}
			return a.server.ListenAndServe(cmd.Context(), listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (defaults to the configured one)")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending migrations before serving")
	return cmd
}
