package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/storage"
	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect local jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsEventsCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var outputType string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				limit = 20
			}
			if status != "" && !domain.Status(status).IsValid() {
				return fmt.Errorf("unknown status %q", status)
			}

			return ctx.withApp(commandCtx(cmd), func(a *app) error {
				list, err := a.jobs.List(commandCtx(cmd), storage.JobFilter{
					Status:     status,
					OutputType: outputType,
					PageSize:   limit,
				})
				if err != nil {
					return err
				}
				if len(list) > limit {
					list = list[:limit]
				}

				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}

				rows := make([][]string, len(list))
				for i, job := range list {
					rows[i] = []string{
						job.ID,
						job.Filename,
						string(job.OutputType),
						string(job.Status),
						job.CreatedAt.Local().Format(time.DateTime),
						formatDuration(job.DurationSeconds),
					}
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "File", "Output", "Status", "Created", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only jobs with this status")
	cmd.Flags().StringVar(&outputType, "output", "", "Only jobs with this output type")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs")

	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show the status of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(commandCtx(cmd), func(a *app) error {
				view, err := a.jobs.Status(commandCtx(cmd), args[0])
				if err != nil {
					return err
				}

				rows := [][]string{
					{"ID", view.JobID},
					{"Status", string(view.Status)},
					{"Output", string(view.OutputType)},
				}
				if view.OutputPath != "" {
					rows = append(rows, []string{"Result", view.OutputPath})
				}
				if view.ResultText != "" {
					rows = append(rows, []string{"Text", view.ResultText})
				}
				if view.Error != "" {
					rows = append(rows, []string{"Error", view.Error})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func newJobsEventsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events ID",
		Short: "Show the event log of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(commandCtx(cmd), func(a *app) error {
				events, err := a.jobs.Events(commandCtx(cmd), args[0], limit)
				if err != nil {
					return err
				}

				rows := make([][]string, len(events))
				for i, e := range events {
					rows[i] = []string{
						strconv.Itoa(i + 1),
						e.Event,
						e.CreatedAt.Local().Format(time.RFC3339),
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "Event", "At"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events")

	return cmd
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return strconv.FormatFloat(*seconds, 'f', 1, 64) + "s"
}
