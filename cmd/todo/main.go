package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/idilsaglam/todosync/internal/cli"
	"github.com/idilsaglam/todosync/internal/config"
	"github.com/idilsaglam/todosync/internal/logging"
	"github.com/idilsaglam/todosync/internal/metrics"
	"github.com/idilsaglam/todosync/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	// Root flags (apply to every subcommand)
	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.Usage = func() { cli.PrintHelp(os.Stderr) }
	cfg, err := config.Load(fs, argv)
	if errors.Is(err, flag.ErrHelp) {
		return cli.ExitOK
	}
	if err != nil {
		ui.Fail(os.Stderr, err.Error())
		return cli.ExitUsage
	}
	ui.SetTheme(cfg.Theme)

	// Hand the remaining args to the CLI runner.
	args := cfg.Args
	if len(args) == 0 {
		cli.PrintHelp(os.Stderr)
		return cli.ExitUsage
	}

	logger, closeLog, err := newLogger(cfg, args[0])
	if err != nil {
		ui.Fail(os.Stderr, err.Error())
		return cli.ExitError
	}
	defer closeLog()
	log.SetDefault(logger)

	reg := prometheus.NewRegistry()
	m, err := metrics.NewSync(reg)
	if err != nil {
		ui.Fail(os.Stderr, err.Error())
		return cli.ExitError
	}
	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer stopMetrics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := cli.Run(ctx, args, cli.Options{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	if code != cli.ExitOK {
		fmt.Fprintln(os.Stderr)
	}
	return code
}

// newLogger writes to stderr, except for the TUI (which owns the terminal)
// or when a log file is configured.
func newLogger(cfg *config.Config, cmd string) (*log.Logger, func(), error) {
	path := cfg.LogFile
	if path == "" && cmd == "tui" {
		path = config.DefaultLogFile
	}
	if path == "" {
		return logging.New(os.Stderr, cfg.LogOptions()), func() {}, nil
	}
	f, err := logging.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(f, cfg.LogOptions()), func() { _ = f.Close() }, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *log.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}),
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

