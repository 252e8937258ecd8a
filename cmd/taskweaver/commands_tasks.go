package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/therockpusher/taskweaver/internal/app"
	"github.com/therockpusher/taskweaver/internal/domain"
)

func taskCommands(opts *rootOptions) []*cobra.Command {
	return []*cobra.Command{
		newCreateCommand(opts),
		newListCommand(opts),
		newShowCommand(opts),
		newEditCommand(opts),
		newRemoveCommand(opts),
		newStatusCommand(opts, "start", "Mark a task in progress", domain.StatusInProgress),
		newStatusCommand(opts, "done", "Mark a task completed", domain.StatusCompleted),
		newStatusCommand(opts, "cancel", "Mark a task cancelled", domain.StatusCancelled),
	}
}

func newCreateCommand(opts *rootOptions) *cobra.Command {
	var in app.CreateTaskInput
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Example: `taskweaver create "Design schema" --duration 90 --value 60
taskweaver create "Write importer" -d 30 -v 40 --requirement "CSV only"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			return opts.withService("create", func(env *runtimeEnv) error {
				task, err := env.svc.CreateTask(cmd.Context(), in)
				if err != nil {
					return err
				}
				env.logger.Info("task created", "task_id", task.ID)
				_, err = fmt.Fprintln(opts.stdout, task.ID)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&in.DurationMin, "duration", "d", 0, "estimated duration in minutes (>= 1)")
	cmd.Flags().Float64VarP(&in.Value, "value", "v", 0, "value score between 0 and 100")
	cmd.Flags().StringVar(&in.Description, "description", "", "markdown description")
	cmd.Flags().StringVar(&in.Requirement, "requirement", "", "acceptance requirement")
	_ = cmd.MarkFlagRequired("duration")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks, optionally filtered by status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return opts.withService("ls", func(env *runtimeEnv) error {
				tasks, err := env.svc.ListTasks(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				return renderTable(opts.stdout, "No tasks.", taskHeaders, taskRows(tasks))
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "status filter (pending, in_progress, completed, cancelled)")
	return cmd
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its blockers and effective priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withService("show", func(env *runtimeEnv) error {
				task, err := env.svc.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				effective, err := env.svc.EffectivePriority(ctx, task.ID)
				if err != nil {
					return err
				}
				blockers, err := env.svc.ActiveBlockers(ctx, task.ID)
				if err != nil {
					return err
				}
				blocked, err := env.svc.Blocked(ctx, task.ID)
				if err != nil {
					return err
				}

				fields := [][2]string{
					{"id", task.ID},
					{"title", task.Title},
					{"status", string(task.Status)},
					{"duration", strconv.Itoa(task.DurationMin) + " min"},
					{"value", formatFloat(task.Value)},
					{"priority", formatFloat(task.IntrinsicPriority())},
					{"effective", formatFloat(effective)},
					{"blocked by", joinTaskRefs(blockers)},
					{"blocks", joinTaskRefs(blocked)},
				}
				if task.Requirement != "" {
					fields = append(fields, [2]string{"requirement", task.Requirement})
				}
				if err := writeFields(opts.stdout, fields); err != nil {
					return err
				}
				if desc := strings.TrimSpace(task.Description); desc != "" {
					_, err = fmt.Fprintf(opts.stdout, "\n%s\n", desc)
				}
				return err
			})
		},
	}
}

func newEditCommand(opts *rootOptions) *cobra.Command {
	var (
		title, description, requirement, status string
		duration                                int
		value                                   float64
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var up domain.TaskUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				up.Title = &title
			}
			if flags.Changed("description") {
				up.Description = &description
			}
			if flags.Changed("requirement") {
				up.Requirement = &requirement
			}
			if flags.Changed("duration") {
				up.DurationMin = &duration
			}
			if flags.Changed("value") {
				up.Value = &value
			}
			if flags.Changed("status") {
				parsed, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				up.Status = &parsed
			}
			if up == (domain.TaskUpdate{}) {
				return fmt.Errorf("nothing to change: pass at least one field flag")
			}
			return opts.withService("edit", func(env *runtimeEnv) error {
				task, err := env.svc.UpdateTask(cmd.Context(), args[0], up)
				if err != nil {
					return err
				}
				env.logger.Info("task updated", "task_id", task.ID)
				return renderTable(opts.stdout, "", taskHeaders, taskRows([]domain.Task{task}))
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new markdown description")
	cmd.Flags().StringVar(&requirement, "requirement", "", "new acceptance requirement")
	cmd.Flags().IntVarP(&duration, "duration", "d", 0, "new duration in minutes")
	cmd.Flags().Float64VarP(&value, "value", "v", 0, "new value score")
	cmd.Flags().StringVarP(&status, "status", "s", "", "new status")
	return cmd
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task and its dependency edges",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService("rm", func(env *runtimeEnv) error {
				if err := env.svc.DeleteTask(cmd.Context(), args[0]); err != nil {
					return err
				}
				env.logger.Info("task deleted", "task_id", args[0])
				return nil
			})
		},
	}
}

func newStatusCommand(opts *rootOptions, name, short string, status domain.Status) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(name, func(env *runtimeEnv) error {
				task, err := env.svc.SetTaskStatus(cmd.Context(), args[0], status)
				if err != nil {
					return err
				}
				env.logger.Info("task status changed", "task_id", task.ID, "status", task.Status)
				_, err = fmt.Fprintf(opts.stdout, "%s %s\n", task.ID, task.Status)
				return err
			})
		},
	}
}

// parseStatuses accepts repeated or comma-separated status names.
func parseStatuses(raw []string) ([]domain.Status, error) {
	out := make([]domain.Status, 0, len(raw))
	for _, value := range raw {
		status, err := domain.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

func joinTaskRefs(tasks []domain.Task) string {
	if len(tasks) == 0 {
		return "-"
	}
	refs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		refs = append(refs, fmt.Sprintf("%s (%s)", t.ID, t.Status))
	}
	return strings.Join(refs, ", ")
}
