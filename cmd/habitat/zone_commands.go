package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/zones"
)

func newZoneCommand(ctx *commandContext) *cobra.Command {
	zoneCmd := &cobra.Command{
		Use:   "zone",
		Short: "Manage capture zones and their batch jobs",
	}
	zoneCmd.AddCommand(newZoneCreateCommand(ctx))
	zoneCmd.AddCommand(newZoneRefreshCommand(ctx))
	zoneCmd.AddCommand(newZoneJobCommand(ctx))
	zoneCmd.AddCommand(newZoneJobsCommand(ctx))
	return zoneCmd
}

func newZoneCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		name     string
		bounds   models.Bounds
		minUnits int
		maxUnits int
		useCode  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a zone from a bounding box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters models.ZoneFilters
			if cmd.Flags().Changed("min-units") {
				filters.MinUnits = &minUnits
			}
			if cmd.Flags().Changed("max-units") {
				filters.MaxUnits = &maxUnits
			}
			if useCode != "" {
				filters.UseCode = &useCode
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			zone, err := a.zones.CreateZone(cmd.Context(), name, bounds, filters)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), zoneTable(zone))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Zone name")
	cmd.Flags().Float64Var(&bounds.MinLat, "min-lat", 0, "Southern latitude")
	cmd.Flags().Float64Var(&bounds.MaxLat, "max-lat", 0, "Northern latitude")
	cmd.Flags().Float64Var(&bounds.MinLng, "min-lng", 0, "Western longitude")
	cmd.Flags().Float64Var(&bounds.MaxLng, "max-lng", 0, "Eastern longitude")
	cmd.Flags().IntVar(&minUnits, "min-units", 0, "Only count buildings with at least this many units")
	cmd.Flags().IntVar(&maxUnits, "max-units", 0, "Only count buildings with at most this many units")
	cmd.Flags().StringVar(&useCode, "use-code", "", "Only count this assessment use code")
	for _, flag := range []string{"name", "min-lat", "max-lat", "min-lng", "max-lng"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}

func newZoneRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <zone-id>",
		Short: "Recompute the coverage stats of a zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			zone, err := a.zones.RefreshStats(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), zoneTable(zone))
			return nil
		},
	}
}

func newZoneJobCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "job <zone-id>",
		Short: "Select the next batch of uncaptured properties of a zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			desc, err := a.zones.CreateJob(cmd.Context(), id, limit)
			if errors.Is(err, zones.ErrZoneComplete) {
				printf(cmd, "zone %d is complete\n", id)
				return nil
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd, desc)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of properties (0 = configured default)")
	return cmd
}

func newZoneJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs <zone-id>",
		Short: "List the jobs of a zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			jobs, err := a.zones.ListJobs(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				printf(cmd, "zone %d has no jobs\n", id)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), jobsTable(jobs))
			return nil
		},
	}
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Drive the lifecycle of a zone job",
	}
	jobCmd.AddCommand(&cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(ctx, cmd, args[0], func(a *app, id int64) (any, error) {
				return a.zones.GetJob(cmd.Context(), id)
			})
		},
	})
	jobCmd.AddCommand(&cobra.Command{
		Use:   "start <job-id>",
		Short: "Mark a pending job as running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(ctx, cmd, args[0], func(a *app, id int64) (any, error) {
				return a.zones.StartJob(cmd.Context(), id)
			})
		},
	})
	jobCmd.AddCommand(newJobItemCommand(ctx))
	jobCmd.AddCommand(newJobFinishCommand(ctx))
	return jobCmd
}

func newJobItemCommand(ctx *commandContext) *cobra.Command {
	var (
		failed bool
		reason string
	)
	cmd := &cobra.Command{
		Use:   "item <job-id> <matricule>",
		Short: "Record the capture outcome of one job item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(ctx, cmd, args[0], func(a *app, id int64) (any, error) {
				if err := a.zones.RecordJobItem(cmd.Context(), id, args[1], !failed, reason); err != nil {
					return nil, err
				}
				return a.zones.GetJob(cmd.Context(), id)
			})
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "The capture failed")
	cmd.Flags().StringVar(&reason, "error", "", "Failure message")
	return cmd
}

func newJobFinishCommand(ctx *commandContext) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "finish <job-id> <completed|failed|cancelled>",
		Short: "Move a job to a final status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := models.ParseJobStatus(args[1])
			if err != nil {
				return err
			}
			return withJob(ctx, cmd, args[0], func(a *app, id int64) (any, error) {
				return a.zones.FinishJob(cmd.Context(), id, status, reason)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "error", "", "Failure message")
	return cmd
}

func withJob(ctx *commandContext, cmd *cobra.Command, rawID string, fn func(a *app, id int64) (any, error)) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	a, err := ctx.ensureApp()
	if err != nil {
		return err
	}
	out, err := fn(a, id)
	if err != nil {
		return err
	}
	return writeJSON(cmd, out)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
