package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sbxhub/internal/app/lifecycle"
)

type TerminateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrIDs []string
}

// NewTerminateCommand returns the terminate command.
func NewTerminateCommand(rootCmd *RootCommand, app *kingpin.Application) *TerminateCommand {
	c := &TerminateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("terminate", "Terminate sandboxes, terminating a missing or stopped sandbox is not an error.")
	c.Cmd.Arg("name-or-id", "Sandbox names or IDs.").Required().StringsVar(&c.nameOrIDs)

	return c
}

func (c TerminateCommand) Name() string { return c.Cmd.FullCommand() }

func (c TerminateCommand) Run(ctx context.Context) error {
	return c.rootCmd.withLifecycle(ctx, func(ctx context.Context, svc *lifecycle.Service) error {
		p := c.rootCmd.printer(formatTable)
		for _, nameOrID := range c.nameOrIDs {
			if err := svc.Terminate(ctx, nameOrID); err != nil {
				return fmt.Errorf("could not terminate %s: %w", nameOrID, err)
			}
			_ = p.PrintMessage(fmt.Sprintf("Sandbox %s terminated", nameOrID))
		}
		return nil
	})
}

type PurgeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
}

// NewPurgeCommand returns the purge command.
func NewPurgeCommand(rootCmd *RootCommand, app *kingpin.Application) *PurgeCommand {
	c := &PurgeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("purge", "Delete the record of a stopped or failed sandbox.")
	c.Cmd.Arg("name-or-id", "Sandbox name or ID.").Required().StringVar(&c.nameOrID)

	return c
}

func (c PurgeCommand) Name() string { return c.Cmd.FullCommand() }

func (c PurgeCommand) Run(ctx context.Context) error {
	return c.rootCmd.withLifecycle(ctx, func(ctx context.Context, svc *lifecycle.Service) error {
		if err := svc.Purge(ctx, c.nameOrID); err != nil {
			return fmt.Errorf("could not purge sandbox: %w", err)
		}
		return c.rootCmd.printer(formatTable).PrintMessage(fmt.Sprintf("Sandbox %s purged", c.nameOrID))
	})
}
