package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type BackendsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewBackendsCommand returns the backends command.
func NewBackendsCommand(rootCmd *RootCommand, app *kingpin.Application) *BackendsCommand {
	c := &BackendsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("backends", "List the registered backends.")
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c BackendsCommand) Name() string { return c.Cmd.FullCommand() }

func (c BackendsCommand) Run(ctx context.Context) error {
	reg, err := c.rootCmd.newRegistry()
	if err != nil {
		return err
	}

	if err := c.rootCmd.printer(c.format).PrintBackends(reg.Backends()); err != nil {
		return fmt.Errorf("could not print backends: %w", err)
	}
	return nil
}
