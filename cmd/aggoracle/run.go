package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cyw0ng95/aggoracle/internal/TS/Runner"
	"github.com/cyw0ng95/aggoracle/internal/config"
	"github.com/cyw0ng95/aggoracle/internal/log"
	"github.com/cyw0ng95/aggoracle/internal/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run many aggregate checks against the engine",
	Long: `Runs run.checks checks with run.workers workers. The tables are populated
from run.seed and check i uses seed run.seed+i. Bugs are written to
run.report_dir as YAML plus a SQL script. A reported bug replays with
"aggoracle check --seed <run_seed> --check-seed <seed>"; "aggoracle reports"
lists them with that command.`,
	RunE: runRun,
}

func init() {
	d := config.Default()
	f := runCmd.Flags()
	f.Int("checks", d.Run.Checks, "number of checks to run")
	f.Int("workers", d.Run.Workers, "number of concurrent workers")
	f.String("report-dir", d.Run.ReportDir, "directory for bug reports (empty disables)")
	f.Bool("stop-on-bug", d.Run.StopOnBug, "stop at the first bug")
	f.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address (e.g. :9090)")
	f.String("trace-exporter", d.TraceExporter, "trace exporter: none, stdout")
	f.Duration("query-timeout", d.Engine.QueryTimeout, "per-query deadline (0 disables)")

	mustBindPFlag("run.checks", f.Lookup("checks"))
	mustBindPFlag("run.workers", f.Lookup("workers"))
	mustBindPFlag("run.report_dir", f.Lookup("report-dir"))
	mustBindPFlag("run.stop_on_bug", f.Lookup("stop-on-bug"))
	mustBindPFlag("metrics_addr", f.Lookup("metrics-addr"))
	mustBindPFlag("trace_exporter", f.Lookup("trace-exporter"))
	mustBindPFlag("engine.query_timeout", f.Lookup("query-timeout"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, shutdown, err := tracing.Setup(tracing.Config{
		Exporter:       cfg.TraceExporter,
		ServiceVersion: Version,
	})
	if err != nil {
		return err
	}
	defer shutdown()

	if cfg.MetricsAddr != "" {
		srv, err := serveMetrics(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	var reporter *Runner.Reporter
	if cfg.Run.ReportDir != "" {
		reporter = Runner.NewReporter(cfg.Run.ReportDir)
	}
	r := Runner.New(sess.oracle, Runner.Options{
		Checks:    cfg.Run.Checks,
		Workers:   cfg.Run.Workers,
		Seed:      cfg.Run.Seed,
		StopOnBug: cfg.Run.StopOnBug,
	}, reporter, tp)

	sum, err := r.Run(ctx)
	printSummary(cmd.OutOrStdout(), sum, cfg.Run.ReportDir)
	if err != nil {
		return err
	}
	if sum.Bug > 0 {
		return fmt.Errorf("%d bug(s) found", sum.Bug)
	}
	return nil
}

func printSummary(w io.Writer, sum Runner.Summary, reportDir string) {
	fmt.Fprintf(w, "checks: %d  pass: %d  bug: %d  inconclusive: %d\n",
		sum.Checks, sum.Pass, sum.Bug, sum.Inconclusive)
	sigs := make([]string, 0, len(sum.Signatures))
	for sig := range sum.Signatures {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	for _, sig := range sigs {
		fmt.Fprintf(w, "  inconclusive %d: %s\n", sum.Signatures[sig], sig)
	}
	for _, rep := range sum.Reports {
		if rep.ID == "" {
			fmt.Fprintf(w, "  seed %d: %s\n", rep.Seed, rep.Reason)
			continue
		}
		fmt.Fprintf(w, "  seed %d: %s (%s/%s.sql)\n", rep.Seed, rep.Reason, reportDir, rep.ID)
	}
}

// serveMetrics exposes /metrics and /healthz on addr until shut down.
func serveMetrics(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return srv, nil
}
