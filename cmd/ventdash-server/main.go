package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/covidanalytics/ventdash/internal/allocation"
	"github.com/covidanalytics/ventdash/internal/api"
	"github.com/covidanalytics/ventdash/internal/catalog"
	"github.com/covidanalytics/ventdash/internal/config"
	"github.com/covidanalytics/ventdash/internal/logging"
	"github.com/covidanalytics/ventdash/internal/query"
	"github.com/covidanalytics/ventdash/internal/scenario"
	"github.com/covidanalytics/ventdash/internal/source"
	"github.com/covidanalytics/ventdash/internal/source/file"
	"github.com/covidanalytics/ventdash/internal/source/remote"
	"github.com/covidanalytics/ventdash/internal/storage/sqlite"
	"github.com/covidanalytics/ventdash/internal/store"
)

func main() {
	// Parse flags
	cfg, err := parseFlags()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting ventdash server",
		zap.Int("port", cfg.Port),
		zap.String("source", cfg.SourceType),
		zap.Int("max_rows", cfg.MaxRows))

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.String("file", cfg.CatalogFile), zap.Error(err))
	}

	// Create table source
	var src source.Source
	switch cfg.SourceType {
	case "remote":
		src = remote.NewSource(remote.DefaultConfig(cfg.RemoteBaseURL))
	case "file":
		src = file.NewSource(cfg.DataDir)
	default:
		logger.Fatal("unknown source type", zap.String("source", cfg.SourceType))
	}
	logger.Info("using table source", zap.String("source", src.Describe()))

	tables := store.NewStore(src, cfg.DateLayout, logger.Named("store"))

	truncation := allocation.TruncateSilently
	if cfg.ReportTruncation {
		truncation = allocation.TruncateAndReport
	}
	svc := query.NewService(tables, cat, query.Options{
		Matcher:    scenario.ToleranceMatch(cfg.ParamTolerance),
		MaxRows:    cfg.MaxRows,
		Truncation: truncation,
	}, logger.Named("query"))

	// Audit storage is optional
	if cfg.AuditDB != "" {
		audit, err := sqlite.NewStore(cfg.AuditDB)
		if err != nil {
			logger.Fatal("failed to open audit database", zap.String("path", cfg.AuditDB), zap.Error(err))
		}
		defer audit.Close()
		svc.SetAuditStorage(audit)
		logger.Info("audit log enabled", zap.String("path", cfg.AuditDB))
	}

	if cfg.Preload {
		if err := svc.Warm(context.Background()); err != nil {
			logger.Fatal("failed to preload scenario tables", zap.Error(err))
		}
	}

	// Create and start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(svc, addr, logger.Named("api"))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	if err := serve(apiServer, shutdown, cfg.GracefulShutdownTimeout, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// httpServer is the part of api.Server that serve drives
type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until it fails or a signal arrives, then shuts it down
// within timeout. A server that stops on its own is an error.
func serve(srv httpServer, signals <-chan os.Signal, timeout time.Duration, logger *zap.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		if err == nil {
			err = errors.New("server stopped unexpectedly")
		}
		return err

	case sig := <-signals:
		logger.Info("received signal", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down server: %w", err)
		}
		return nil
	}
}

// parseFlags builds the configuration from defaults, an optional YAML
// file and command-line flags, in that order of precedence.
func parseFlags() (config.Config, error) {
	cfg := config.DefaultConfig()

	// The config file is applied first so flags override it
	configFile := configPath(os.Args[1:])
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return cfg, err
		}
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.String("config", configFile, "YAML configuration file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	fs.StringVar(&cfg.SourceType, "source", cfg.SourceType, "Table source type (file|remote)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory containing the scenario CSV tables")
	fs.StringVar(&cfg.RemoteBaseURL, "remote-url", cfg.RemoteBaseURL, "Base URL of the scenario CSV tables (required for remote source)")
	fs.StringVar(&cfg.CatalogFile, "catalog", cfg.CatalogFile, "Model catalog YAML file (built-in catalog when empty)")
	fs.StringVar(&cfg.AuditDB, "audit-db", cfg.AuditDB, "SQLite audit database path (disabled when empty)")
	fs.IntVar(&cfg.MaxRows, "max-rows", cfg.MaxRows, "Maximum rows in a transfer table")
	fs.Float64Var(&cfg.ParamTolerance, "param-tolerance", cfg.ParamTolerance, "Parameter match tolerance (0 for exact)")
	fs.BoolVar(&cfg.ReportTruncation, "report-truncation", cfg.ReportTruncation, "Report rows dropped from transfer tables")
	fs.BoolVar(&cfg.Preload, "preload", cfg.Preload, "Load all catalog models at start-up")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	fs.BoolVar(&cfg.LogDevelopment, "log-dev", cfg.LogDevelopment, "Human-readable development logging")
	fs.Parse(os.Args[1:])

	return cfg, nil
}

// configPath finds the value of -config in args without parsing the
// remaining flags
func configPath(args []string) string {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
	}
	return ""
}
