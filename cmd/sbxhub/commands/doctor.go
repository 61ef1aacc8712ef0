package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sbxhub/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the storage and the enabled backends.")
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	ctx, cancel := c.rootCmd.withTimeout(ctx)
	defer cancel()

	results := []model.CheckResult{c.checkStorage(ctx)}

	reg, err := c.rootCmd.newRegistry()
	if err != nil {
		return err
	}
	results = append(results, reg.Check(ctx)...)

	if err := c.rootCmd.printer(c.format).PrintChecks(results); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	if model.HasErrors(results) {
		_, _, errs := model.CountByStatus(results)
		return fmt.Errorf("preflight checks failed with %d error(s)", errs)
	}
	return nil
}

func (c DoctorCommand) checkStorage(ctx context.Context) model.CheckResult {
	res := model.CheckResult{ID: c.rootCmd.Storage + "_storage"}

	st, err := c.rootCmd.openStores(ctx)
	if err != nil {
		res.Status = model.CheckStatusError
		res.Message = err.Error()
		return res
	}
	defer st.close()

	if st.schemaVersion == nil {
		res.Status = model.CheckStatusOK
		res.Message = "ready"
		return res
	}

	version, dirty, err := st.schemaVersion(ctx)
	switch {
	case err != nil:
		res.Status = model.CheckStatusError
		res.Message = fmt.Sprintf("could not get schema version: %v", err)
	case dirty:
		res.Status = model.CheckStatusError
		res.Message = fmt.Sprintf("schema version %d is dirty", version)
	default:
		res.Status = model.CheckStatusOK
		res.Message = fmt.Sprintf("schema version %d", version)
	}
	return res
}
