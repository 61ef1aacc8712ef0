package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sbxhub/internal/app/lifecycle"
	"github.com/slok/sbxhub/internal/model"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	backend   string
	status    string
	pageSize  int
	pageToken string
	all       bool
	format    string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	statuses := make([]string, 0, len(model.SandboxStatuses))
	for _, s := range model.SandboxStatuses {
		statuses = append(statuses, string(s))
	}
	backends := make([]string, 0, len(model.Backends))
	for _, b := range model.Backends {
		backends = append(backends, string(b))
	}

	c.Cmd = app.Command("list", "List sandboxes ordered by creation time.")
	c.Cmd.Flag("backend", "Filter by backend.").EnumVar(&c.backend, backends...)
	c.Cmd.Flag("status", "Filter by status.").EnumVar(&c.status, statuses...)
	c.Cmd.Flag("page-size", "Max number of sandboxes per page.").Default(fmt.Sprint(model.DefaultPageSize)).IntVar(&c.pageSize)
	c.Cmd.Flag("page-token", "Token of the page to get, returned by a previous list.").StringVar(&c.pageToken)
	c.Cmd.Flag("all", "Get every page.").BoolVar(&c.all)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	var filter model.SandboxFilter
	if c.backend != "" {
		b := model.Backend(c.backend)
		filter.Backend = &b
	}
	if c.status != "" {
		s := model.SandboxStatus(c.status)
		filter.Status = &s
	}

	return c.rootCmd.withLifecycle(ctx, func(ctx context.Context, svc *lifecycle.Service) error {
		req := model.PageRequest{Size: c.pageSize, Token: c.pageToken}
		page, err := svc.List(ctx, filter, req)
		if err != nil {
			return fmt.Errorf("could not list sandboxes: %w", err)
		}

		for c.all && page.NextToken != "" {
			req.Token = page.NextToken
			next, err := svc.List(ctx, filter, req)
			if err != nil {
				return fmt.Errorf("could not list sandboxes: %w", err)
			}
			page.Items = append(page.Items, next.Items...)
			page.NextToken = next.NextToken
		}

		if err := c.rootCmd.printer(c.format).PrintList(*page); err != nil {
			return fmt.Errorf("could not print list: %w", err)
		}
		return nil
	})
}
