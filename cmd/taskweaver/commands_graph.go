package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/therockpusher/taskweaver/internal/domain"
)

func graphCommands(opts *rootOptions) []*cobra.Command {
	return []*cobra.Command{
		newDepCommand(opts),
		newOpenCommand(opts),
		newPriorityCommand(opts),
		newRankCommand(opts),
		newCheckCommand(opts),
	}
}

func newDepCommand(opts *rootOptions) *cobra.Command {
	dep := &cobra.Command{
		Use:   "dep",
		Short: "Manage \"blocks\" edges between tasks",
	}

	add := &cobra.Command{
		Use:   "add <task> <blocker>",
		Short: "Record that <blocker> must finish before <task>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService("dep add", func(env *runtimeEnv) error {
				edge, err := env.svc.AddDependency(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				env.logger.Info("dependency added", "task_id", edge.TaskID, "blocker_id", edge.BlockerID)
				_, err = fmt.Fprintf(opts.stdout, "%s now blocked by %s\n", edge.TaskID, edge.BlockerID)
				return err
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <task> <blocker>",
		Short: "Remove an edge; removing a missing edge is not an error",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService("dep rm", func(env *runtimeEnv) error {
				if err := env.svc.RemoveDependency(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				env.logger.Info("dependency removed", "task_id", args[0], "blocker_id", args[1])
				return nil
			})
		},
	}

	var all bool
	blockers := &cobra.Command{
		Use:   "blockers <task>",
		Short: "List the active tasks blocking <task>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withService("dep blockers", func(env *runtimeEnv) error {
				var tasks []domain.Task
				if all {
					ids, err := env.svc.DirectBlockers(ctx, args[0])
					if err != nil {
						return err
					}
					for _, id := range ids {
						task, err := env.svc.GetTask(ctx, id)
						if err != nil {
							return err
						}
						tasks = append(tasks, task)
					}
				} else {
					var err error
					if tasks, err = env.svc.ActiveBlockers(ctx, args[0]); err != nil {
						return err
					}
				}
				return renderTable(opts.stdout, "No blockers.", taskHeaders, taskRows(tasks))
			})
		},
	}
	blockers.Flags().BoolVarP(&all, "all", "a", false, "include completed and cancelled blockers")

	blocked := &cobra.Command{
		Use:   "blocked <task>",
		Short: "List the tasks <task> blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService("dep blocked", func(env *runtimeEnv) error {
				tasks, err := env.svc.Blocked(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderTable(opts.stdout, "Blocks nothing.", taskHeaders, taskRows(tasks))
			})
		},
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List every edge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService("dep ls", func(env *runtimeEnv) error {
				edges, err := env.svc.ListDependencies(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(edges))
				for _, e := range edges {
					rows = append(rows, []string{e.TaskID, e.BlockerID, e.CreatedAt.Format("2006-01-02 15:04")})
				}
				return renderTable(opts.stdout, "No dependencies.", []string{"TASK", "BLOCKER", "CREATED"}, rows)
			})
		},
	}

	dep.AddCommand(add, rm, blockers, blocked, ls)
	return dep
}

func newOpenCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "List open tasks with active blocker and blocked counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService("open", func(env *runtimeEnv) error {
				tasks, err := env.svc.OpenTasksWithCounts(cmd.Context())
				if err != nil {
					return err
				}
				return renderTable(opts.stdout, "No open tasks.", countHeaders, countRows(tasks))
			})
		},
	}
}

func newPriorityCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "priority [id]",
		Short: "Show effective priority for one task or every task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withService("priority", func(env *runtimeEnv) error {
				if len(args) == 1 {
					if _, err := env.svc.GetTask(ctx, args[0]); err != nil {
						return err
					}
					p, err := env.svc.EffectivePriority(ctx, args[0])
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(opts.stdout, formatFloat(p))
					return err
				}

				priorities, err := env.svc.EffectivePriorities(ctx)
				if err != nil {
					return err
				}
				tasks, err := env.svc.ListTasks(ctx)
				if err != nil {
					return err
				}
				slices.SortStableFunc(tasks, func(a, b domain.Task) int {
					switch pa, pb := priorities[a.ID], priorities[b.ID]; {
					case pa > pb:
						return -1
					case pa < pb:
						return 1
					}
					return 0
				})
				rows := make([][]string, 0, len(tasks))
				for _, t := range tasks {
					rows = append(rows, []string{t.ID, t.Title, string(t.Status), formatFloat(t.IntrinsicPriority()), formatFloat(priorities[t.ID])})
				}
				return renderTable(opts.stdout, "No tasks.", []string{"ID", "TITLE", "STATUS", "OWN", "EFFECTIVE"}, rows)
			})
		},
	}
}

func newRankCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Rank open tasks: ready first, then by effective priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService("rank", func(env *runtimeEnv) error {
				tasks, err := env.svc.RankedOpenTasks(cmd.Context())
				if err != nil {
					return err
				}
				return renderTable(opts.stdout, "No open tasks.", rankedHeaders, rankedRows(tasks))
			})
		},
	}
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the stored graph is acyclic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return opts.withService("check", func(env *runtimeEnv) error {
				if err := env.svc.VerifyGraph(ctx); err != nil {
					return err
				}
				tasks, err := env.svc.ListTasks(ctx)
				if err != nil {
					return err
				}
				edges, err := env.svc.ListDependencies(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(opts.stdout, "graph ok: %d tasks, %d dependencies\n", len(tasks), len(edges))
				return err
			})
		},
	}
}
