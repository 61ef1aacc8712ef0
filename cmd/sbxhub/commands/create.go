package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sbxhub/internal/app/lifecycle"
	"github.com/slok/sbxhub/internal/model"
	storageio "github.com/slok/sbxhub/internal/storage/io"
)

type CreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file    string
	name    string
	backend string
	image   string
	command []string
	env     []string
	ports   []int
	labels  []string
	cpu     float64
	mem     int
	format  string
}

// NewCreateCommand returns the create command.
func NewCreateCommand(rootCmd *RootCommand, app *kingpin.Application) *CreateCommand {
	c := &CreateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("create", "Create a new sandbox.")
	c.Cmd.Flag("file", "YAML sandbox spec file, flags override its values.").Short('f').StringVar(&c.file)
	c.Cmd.Flag("name", "Name for the sandbox, generated when missing.").Short('n').StringVar(&c.name)
	c.Cmd.Flag("backend", "Backend of the sandbox.").EnumVar(&c.backend, string(model.BackendLocal), string(model.BackendDocker), string(model.BackendProcess), string(model.BackendRemote))
	c.Cmd.Flag("image", "Container image (docker backend).").StringVar(&c.image)
	c.Cmd.Flag("env", "Env var as KEY=VALUE, or KEY to take it from the host. Repeatable.").Short('e').StringsVar(&c.env)
	c.Cmd.Flag("port", "Internal port to expose. Repeatable.").Short('p').IntsVar(&c.ports)
	c.Cmd.Flag("label", "Label as key=value. Repeatable.").Short('l').StringsVar(&c.labels)
	c.Cmd.Flag("cpu", "Number of VCPUs (can be fractional, e.g., 0.5, 1.5).").Float64Var(&c.cpu)
	c.Cmd.Flag("mem", "Memory in MB.").IntVar(&c.mem)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Arg("command", "Command to run (process backend) or container command override (docker backend).").StringsVar(&c.command)

	return c
}

func (c CreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c CreateCommand) Run(ctx context.Context) error {
	spec, err := c.spec(ctx)
	if err != nil {
		return err
	}

	return c.rootCmd.withLifecycle(ctx, func(ctx context.Context, svc *lifecycle.Service) error {
		sandbox, err := svc.Create(ctx, spec)
		if err != nil {
			return fmt.Errorf("could not create sandbox: %w", err)
		}

		return c.rootCmd.printer(c.format).PrintStatus(*sandbox)
	})
}

// spec builds the sandbox spec from the spec file and the flags.
func (c CreateCommand) spec(ctx context.Context) (model.SandboxSpec, error) {
	var spec model.SandboxSpec
	if c.file != "" {
		abs, err := filepath.Abs(c.file)
		if err != nil {
			return spec, fmt.Errorf("invalid spec file path: %w", err)
		}
		repo := storageio.NewSpecYAMLRepository(os.DirFS(filepath.Dir(abs)))
		spec, err = repo.GetSpec(ctx, filepath.Base(abs))
		if err != nil {
			return spec, fmt.Errorf("could not load spec file: %w", err)
		}
	}

	if c.name != "" {
		spec.Name = c.name
	}
	if c.backend != "" {
		spec.Backend = model.Backend(c.backend)
	}
	if c.image != "" {
		spec.Image = c.image
	}
	if len(c.command) > 0 {
		spec.Command = c.command
	}
	if len(c.ports) > 0 {
		spec.Ports = c.ports
	}
	if c.cpu > 0 {
		spec.Resources.VCPUs = c.cpu
	}
	if c.mem > 0 {
		spec.Resources.MemoryMB = c.mem
	}

	env, err := parseEnvSpecs(c.env)
	if err != nil {
		return spec, err
	}
	if len(env) > 0 && spec.Env == nil {
		spec.Env = map[string]string{}
	}
	for k, v := range env {
		spec.Env[k] = v
	}

	labels, err := parseLabels(c.labels)
	if err != nil {
		return spec, err
	}
	if len(labels) > 0 && spec.Labels == nil {
		spec.Labels = map[string]string{}
	}
	for k, v := range labels {
		spec.Labels[k] = v
	}

	if spec.Backend == "" {
		return spec, fmt.Errorf("a backend is required, use --backend or a spec file")
	}

	return spec, nil
}
