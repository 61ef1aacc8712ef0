package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sbxhub/internal/app/task"
	"github.com/slok/sbxhub/internal/model"
)

var taskStatuses = []string{
	string(model.TaskStatusPending),
	string(model.TaskStatusRunning),
	string(model.TaskStatusSuccess),
	string(model.TaskStatusFailed),
}

// withTaskService opens the storage, builds the task service and runs f with it.
func (r *RootCommand) withTaskService(ctx context.Context, f func(ctx context.Context, svc *task.Service) error) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	svc, err := task.NewService(task.ServiceConfig{Repository: st.tasks, Logger: r.Logger})
	if err != nil {
		return fmt.Errorf("could not create task service: %w", err)
	}

	return f(ctx, svc)
}

func parseTaskData(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("task data must be a JSON object: %w", err)
	}
	return data, nil
}

type TaskListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	statuses  []string
	format    string
}

// NewTaskListCommand returns the task list command.
func NewTaskListCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskListCommand {
	c := &TaskListCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("list", "List the tasks of a session ordered by their order.")
	c.Cmd.Arg("session-id", "Session ID.").Required().StringVar(&c.sessionID)
	c.Cmd.Flag("status", "Filter by status, repeatable.").EnumsVar(&c.statuses, taskStatuses...)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TaskListCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskListCommand) Run(ctx context.Context) error {
	statuses := make([]model.TaskStatus, 0, len(c.statuses))
	for _, s := range c.statuses {
		statuses = append(statuses, model.TaskStatus(s))
	}

	return c.rootCmd.withTaskService(ctx, func(ctx context.Context, svc *task.Service) error {
		tasks, err := svc.List(ctx, task.ListRequest{SessionID: c.sessionID, Statuses: statuses})
		if err != nil {
			return fmt.Errorf("could not list tasks: %w", err)
		}

		if err := c.rootCmd.printer(c.format).PrintTasks(tasks); err != nil {
			return fmt.Errorf("could not print tasks: %w", err)
		}
		return nil
	})
}

type TaskAddCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	order     int
	data      string
	status    string
	format    string
}

// NewTaskAddCommand returns the task add command.
func NewTaskAddCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskAddCommand {
	c := &TaskAddCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("add", "Add a task to a session.")
	c.Cmd.Arg("session-id", "Session ID.").Required().StringVar(&c.sessionID)
	c.Cmd.Flag("order", "Task order, placed after the last task when missing.").Default("-1").IntVar(&c.order)
	c.Cmd.Flag("data", "Task data as a JSON object.").StringVar(&c.data)
	c.Cmd.Flag("status", "Task status.").Default(string(model.TaskStatusPending)).EnumVar(&c.status, taskStatuses...)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TaskAddCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskAddCommand) Run(ctx context.Context) error {
	data, err := parseTaskData(c.data)
	if err != nil {
		return err
	}

	req := task.AddRequest{SessionID: c.sessionID, Data: data, Status: model.TaskStatus(c.status)}
	if c.order >= 0 {
		order := c.order
		req.Order = &order
	}

	return c.rootCmd.withTaskService(ctx, func(ctx context.Context, svc *task.Service) error {
		t, err := svc.Add(ctx, req)
		if err != nil {
			return fmt.Errorf("could not add task: %w", err)
		}
		return c.rootCmd.printer(c.format).PrintTasks([]model.Task{*t})
	})
}

type TaskUpdateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id     string
	order  int
	data   string
	status string
	format string
}

// NewTaskUpdateCommand returns the task update command.
func NewTaskUpdateCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskUpdateCommand {
	c := &TaskUpdateCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("update", "Update a task, only the set flags are changed.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.id)
	c.Cmd.Flag("order", "New task order.").Default("-1").IntVar(&c.order)
	c.Cmd.Flag("data", "New task data as a JSON object.").StringVar(&c.data)
	c.Cmd.Flag("status", "New task status.").EnumVar(&c.status, taskStatuses...)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TaskUpdateCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskUpdateCommand) Run(ctx context.Context) error {
	data, err := parseTaskData(c.data)
	if err != nil {
		return err
	}

	update := model.TaskUpdate{Data: data}
	if c.order >= 0 {
		order := c.order
		update.Order = &order
	}
	if c.status != "" {
		status := model.TaskStatus(c.status)
		update.Status = &status
	}

	return c.rootCmd.withTaskService(ctx, func(ctx context.Context, svc *task.Service) error {
		t, err := svc.Update(ctx, c.id, update)
		if err != nil {
			return fmt.Errorf("could not update task: %w", err)
		}
		return c.rootCmd.printer(c.format).PrintTasks([]model.Task{*t})
	})
}

type TaskRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id string
}

// NewTaskRmCommand returns the task rm command.
func NewTaskRmCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskRmCommand {
	c := &TaskRmCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("rm", "Remove a task.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.id)

	return c
}

func (c TaskRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskRmCommand) Run(ctx context.Context) error {
	return c.rootCmd.withTaskService(ctx, func(ctx context.Context, svc *task.Service) error {
		if err := svc.Remove(ctx, c.id); err != nil {
			return fmt.Errorf("could not remove task: %w", err)
		}
		return c.rootCmd.printer(formatTable).PrintMessage(fmt.Sprintf("Task %s removed", c.id))
	})
}
