package mcpapi

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/therockpusher/taskweaver/internal/adapters/server/common"
	"github.com/therockpusher/taskweaver/internal/domain"
)

// registerTaskTools registers task CRUD and status tools.
func registerTaskTools(srv *mcpserver.MCPServer, service common.DependencyService) {
	statusNames := make([]string, 0, 4)
	for _, s := range domain.Statuses() {
		statusNames = append(statusNames, string(s))
	}

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"create_task",
			mcp.WithDescription("Create one pending task with an estimated duration and value score."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short task title")),
			mcp.WithNumber("duration_min", mcp.Required(), mcp.Description("Estimated duration in minutes (>= 1)")),
			mcp.WithNumber("value", mcp.Required(), mcp.Description("Value score between 0 and 100")),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("requirement", mcp.Description("Optional originating requirement")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			duration, err := req.RequireInt("duration_min")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			value, err := req.RequireFloat("value")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := service.CreateTask(ctx, common.CreateTaskRequest{
				Title:       title,
				Description: req.GetString("description", ""),
				Requirement: req.GetString("requirement", ""),
				DurationMin: duration,
				Value:       value,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"list_tasks",
			mcp.WithDescription("List tasks, optionally filtered by status."),
			mcp.WithArray("statuses", mcp.Description("Optional status filter"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tasks, err := service.ListTasks(ctx, common.ListTasksRequest{
				Statuses: req.GetStringSlice("statuses", nil),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_tasks", map[string]any{
				"items": tasks,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"get_task",
			mcp.WithDescription("Return one task by id."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := service.GetTask(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"update_task",
			mcp.WithDescription("Edit task fields; omitted fields stay unchanged."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("requirement", mcp.Description("New requirement")),
			mcp.WithNumber("duration_min", mcp.Description("New duration in minutes")),
			mcp.WithNumber("value", mcp.Description("New value score")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args := req.GetArguments()
			update := common.UpdateTaskRequest{ID: taskID}
			if _, ok := args["title"]; ok {
				v := req.GetString("title", "")
				update.Title = &v
			}
			if _, ok := args["description"]; ok {
				v := req.GetString("description", "")
				update.Description = &v
			}
			if _, ok := args["requirement"]; ok {
				v := req.GetString("requirement", "")
				update.Requirement = &v
			}
			if _, ok := args["duration_min"]; ok {
				v, err := req.RequireInt("duration_min")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				update.DurationMin = &v
			}
			if _, ok := args["value"]; ok {
				v, err := req.RequireFloat("value")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				update.Value = &v
			}
			task, err := service.UpdateTask(ctx, update)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_task", task)
		},
	)

	for _, mark := range []struct {
		name   string
		status domain.Status
		desc   string
	}{
		{name: "mark_task_in_progress", status: domain.StatusInProgress, desc: "Mark one task in progress."},
		{name: "mark_task_completed", status: domain.StatusCompleted, desc: "Mark one task completed; tasks it blocked stop counting it."},
		{name: "mark_task_cancelled", status: domain.StatusCancelled, desc: "Mark one task cancelled; tasks it blocked stop counting it."},
	} {
		srv.AddTool(
			mcp.NewTool(
				toolPrefix+mark.name,
				mcp.WithDescription(mark.desc),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				taskID, err := req.RequireString("task_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				task, err := service.SetTaskStatus(ctx, common.SetTaskStatusRequest{
					ID:     taskID,
					Status: string(mark.status),
				})
				if err != nil {
					return toolResultFromError(err), nil
				}
				return jsonResult(mark.name, task)
			},
		)
	}

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"set_task_status",
			mcp.WithDescription("Move one task to any lifecycle status."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target status"), mcp.Enum(statusNames...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := service.SetTaskStatus(ctx, common.SetTaskStatusRequest{ID: taskID, Status: status})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_task_status", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"delete_task",
			mcp.WithDescription("Delete one task together with every dependency touching it."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := service.DeleteTask(ctx, taskID); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_task", map[string]any{
				"task_id": taskID,
				"deleted": true,
			})
		},
	)
}

// registerDependencyTools registers edge mutation tools.
func registerDependencyTools(srv *mcpserver.MCPServer, service common.DependencyService) {
	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"add_dependency",
			mcp.WithDescription("Record that task_id is blocked by blocker_id. Rejects cycles, duplicates and closed blockers."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Blocked task identifier")),
			mcp.WithString("blocker_id", mcp.Required(), mcp.Description("Blocking task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			in, errResult := dependencyArgs(req)
			if errResult != nil {
				return errResult, nil
			}
			dep, err := service.AddDependency(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_dependency", dep)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"remove_dependency",
			mcp.WithDescription("Remove the edge task_id blocked by blocker_id; removing a missing edge succeeds."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Blocked task identifier")),
			mcp.WithString("blocker_id", mcp.Required(), mcp.Description("Blocking task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			in, errResult := dependencyArgs(req)
			if errResult != nil {
				return errResult, nil
			}
			if err := service.RemoveDependency(ctx, in); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("remove_dependency", map[string]any{
				"task_id":    in.TaskID,
				"blocker_id": in.BlockerID,
				"removed":    true,
			})
		},
	)
}

// registerQueryTools registers read-only graph queries.
func registerQueryTools(srv *mcpserver.MCPServer, service common.DependencyService) {
	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"get_blockers",
			mcp.WithDescription("List the pending or in-progress tasks that block task_id. Empty means actionable."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tasks, err := service.ActiveBlockers(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_blockers", map[string]any{
				"task_id": taskID,
				"items":   tasks,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"get_blocked",
			mcp.WithDescription("List every task that task_id blocks, whatever its status."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tasks, err := service.Blocked(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_blocked", map[string]any{
				"task_id": taskID,
				"items":   tasks,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"list_open_tasks_dep_count",
			mcp.WithDescription("List open tasks with active blocker counts and the number of tasks each blocks."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tasks, err := service.OpenTasksWithCounts(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_open_tasks_dep_count", map[string]any{
				"items": tasks,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"effective_priority",
			mcp.WithDescription("Return intrinsic and effective priority for one task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			priority, err := service.EffectivePriority(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("effective_priority", priority)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"rank_open_tasks",
			mcp.WithDescription("List open tasks in work order: ready first, then by effective priority."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ranked, err := service.RankedOpenTasks(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("rank_open_tasks", map[string]any{
				"items": ranked,
			})
		},
	)
}

// dependencyArgs reads the task_id/blocker_id pair shared by edge tools.
func dependencyArgs(req mcp.CallToolRequest) (common.DependencyRequest, *mcp.CallToolResult) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return common.DependencyRequest{}, mcp.NewToolResultError(err.Error())
	}
	blockerID, err := req.RequireString("blocker_id")
	if err != nil {
		return common.DependencyRequest{}, mcp.NewToolResultError(err.Error())
	}
	return common.DependencyRequest{TaskID: taskID, BlockerID: blockerID}, nil
}
