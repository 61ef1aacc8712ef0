package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/sbxhub/internal/app/lifecycle"
	"github.com/slok/sbxhub/internal/metrics"
	"github.com/slok/sbxhub/internal/metrics/prometheus"
)

type ReconcileCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	watch       bool
	interval    time.Duration
	metricsAddr string
}

// NewReconcileCommand returns the reconcile command.
func NewReconcileCommand(rootCmd *RootCommand, app *kingpin.Application) *ReconcileCommand {
	c := &ReconcileCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("reconcile", "Refresh the sandboxes left in a non settled status from their backends.")
	c.Cmd.Flag("watch", "Keep reconciling every interval.").BoolVar(&c.watch)
	c.Cmd.Flag("interval", "Time between reconciliations in watch mode.").Default("30s").DurationVar(&c.interval)
	c.Cmd.Flag("metrics-addr", "Address to serve Prometheus metrics on (e.g. :8081), disabled when empty.").StringVar(&c.metricsAddr)

	return c
}

func (c ReconcileCommand) Name() string { return c.Cmd.FullCommand() }

func (c ReconcileCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	st, err := c.rootCmd.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	reg, err := c.rootCmd.newRegistry()
	if err != nil {
		return err
	}

	var (
		rec     metrics.Recorder = metrics.Noop
		promRec *prometheus.Recorder
	)
	if c.metricsAddr != "" {
		promRec, err = prometheus.NewRecorder(prometheus.RecorderConfig{})
		if err != nil {
			return fmt.Errorf("could not create metrics recorder: %w", err)
		}
		rec = promRec
	}

	svc, err := c.rootCmd.newLifecycle(st, reg, rec)
	if err != nil {
		return err
	}

	if !c.watch {
		return c.reconcile(ctx, svc)
	}

	if c.interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	var g run.Group

	// Reconcile loop.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				t := time.NewTicker(c.interval)
				defer t.Stop()
				for {
					if err := c.reconcile(ctx, svc); err != nil {
						logger.Errorf("Reconciliation failed: %v", err)
					}
					select {
					case <-ctx.Done():
						return nil
					case <-t.C:
					}
				}
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Metrics server.
	if promRec != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promRec.Handler())
		server := &http.Server{Addr: c.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Add(
			func() error {
				logger.Infof("Serving metrics on %s", c.metricsAddr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(ctx)
			},
		)
	}

	return g.Run()
}

func (c ReconcileCommand) reconcile(ctx context.Context, svc *lifecycle.Service) error {
	ctx, cancel := c.rootCmd.withTimeout(ctx)
	defer cancel()

	res, err := svc.Reconcile(ctx)
	if err != nil {
		return err
	}

	p := c.rootCmd.printer(formatTable)
	_ = p.PrintMessage(fmt.Sprintf("Checked %d sandboxes, %d changed, %d errors", res.Checked, len(res.Changed), len(res.Errors)))
	for _, sb := range res.Changed {
		_ = p.PrintMessage(fmt.Sprintf("  %s: %s", sb.Name, sb.Status))
	}

	ids := make([]string, 0, len(res.Errors))
	for id := range res.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		_ = p.PrintMessage(fmt.Sprintf("  %s: %v", id, res.Errors[id]))
	}

	return nil
}
