package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sbxhub/internal/app/lifecycle"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
	format   string
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Refresh a sandbox status from its backend and show it.")
	c.Cmd.Arg("name-or-id", "Sandbox name or ID.").Required().StringVar(&c.nameOrID)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	return c.rootCmd.withLifecycle(ctx, func(ctx context.Context, svc *lifecycle.Service) error {
		sandbox, err := svc.Status(ctx, c.nameOrID)
		if err != nil {
			return fmt.Errorf("could not get sandbox status: %w", err)
		}

		if err := c.rootCmd.printer(c.format).PrintStatus(*sandbox); err != nil {
			return fmt.Errorf("could not print status: %w", err)
		}
		return nil
	})
}

type GetCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
	format   string
}

// NewGetCommand returns the get command.
func NewGetCommand(rootCmd *RootCommand, app *kingpin.Application) *GetCommand {
	c := &GetCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("get", "Show the stored sandbox without asking its backend.")
	c.Cmd.Arg("name-or-id", "Sandbox name or ID.").Required().StringVar(&c.nameOrID)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c GetCommand) Name() string { return c.Cmd.FullCommand() }

func (c GetCommand) Run(ctx context.Context) error {
	return c.rootCmd.withLifecycle(ctx, func(ctx context.Context, svc *lifecycle.Service) error {
		sandbox, err := svc.Get(ctx, c.nameOrID)
		if err != nil {
			return fmt.Errorf("could not get sandbox: %w", err)
		}

		if err := c.rootCmd.printer(c.format).PrintStatus(*sandbox); err != nil {
			return fmt.Errorf("could not print sandbox: %w", err)
		}
		return nil
	})
}
