// Package main provides the entry point for the enforcement server
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/authz-engine/pep-core/internal/closure"
	"github.com/authz-engine/pep-core/internal/compiler"
	"github.com/authz-engine/pep-core/internal/config"
	"github.com/authz-engine/pep-core/internal/db"
	"github.com/authz-engine/pep-core/internal/enforce"
	"github.com/authz-engine/pep-core/internal/metrics"
	"github.com/authz-engine/pep-core/internal/pdp"
	"github.com/authz-engine/pep-core/internal/registry"
	"github.com/authz-engine/pep-core/internal/server"
	"github.com/authz-engine/pep-core/internal/store"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "pep.yaml", "Path to the configuration file")
		watchConfig = flag.Bool("watch-config", true, "Reload the configuration file on change")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pep-server %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel := zap.NewAtomicLevel()
	logger, err := initLogger(cfg.Logging, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting enforcement server",
		zap.String("version", Version),
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("pdp_transport", cfg.PDP.Transport),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database and closure projections.
	handle, err := db.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer handle.Close()

	if cfg.Database.RunMigrations {
		runner, err := db.NewMigrationRunner(handle)
		if err != nil {
			logger.Fatal("Failed to create migration runner", zap.Error(err))
		}
		if err := runner.Up(); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		version, dirty, _ := runner.Version()
		logger.Info("Database schema ready",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
	}

	closureEngine := closure.NewEngine(closure.NewPostgresRepository(handle))

	// PDP client.
	var client pdp.Client
	switch cfg.PDP.Transport {
	case "grpc":
		client, err = pdp.NewGRPCClient(cfg.PDP.Endpoint, logger)
		if err != nil {
			logger.Fatal("Failed to create PDP client", zap.Error(err))
		}
	default:
		client = pdp.NewHTTPClient(cfg.PDP.Endpoint, cfg.PDP.Timeout, logger)
	}
	defer client.Close()

	// Enforcement pipeline.
	m := metrics.NewPrometheusMetrics("pep")
	comp := compiler.New(registry.New(), logger)
	neg := enforce.NewNegotiator(cfg.Capabilities...)
	enforcer := enforce.NewPolicyEnforcer(client, comp, closureEngine, neg, enforce.EnforcerConfig{
		PDPTimeout: cfg.PDP.Timeout,
		Logger:     logger,
		Metrics:    m,
	})

	documents := store.NewDocumentStore(handle, logger, m)
	guard := enforce.NewMutationGuard(enforcer, documents.Prefetcher(), server.DocumentType, logger)
	api := server.NewDocumentAPI(enforcer, guard, documents, logger)

	srv := server.New(cfg.Auth, enforcer, api, logger)
	httpSrv := server.NewHTTPServer(cfg.Server, srv.Handler())
	opsSrv := server.NewOpsServer(cfg.Server, m, func() bool { return true })

	// Optional configuration hot reload. The log level and the declared
	// capability set are applied live; everything else needs a restart.
	if *watchConfig {
		watcher, err := config.NewWatcher(*configPath, logger)
		if err != nil {
			logger.Fatal("Failed to create config watcher", zap.Error(err))
		}
		if err := watcher.Watch(ctx); err != nil {
			logger.Fatal("Failed to start config watcher", zap.Error(err))
		}
		defer watcher.Stop()

		go func() {
			for ev := range watcher.EventChan() {
				if ev.Error != nil {
					continue
				}
				if lvl, err := zapcore.ParseLevel(ev.Config.Logging.Level); err == nil {
					logLevel.SetLevel(lvl)
					logger.Info("Applied reloaded log level", zap.String("level", lvl.String()))
				}
				neg.Replace(ev.Config.Capabilities...)
				logger.Info("Applied reloaded capabilities",
					zap.Any("capabilities", neg.Declare()),
				)
			}
		}()
	}

	errChan := make(chan error, 2)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Resource API listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("resource api: %w", err)
		}
	}()

	go func() {
		logger.Info("Ops listener started", zap.String("addr", cfg.Server.MetricsAddr))
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("ops listener: %w", err)
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("Server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Resource API shutdown failed", zap.Error(err))
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ops listener shutdown failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

func initLogger(cfg config.LoggingConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	level.SetLevel(lvl)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if cfg.File != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core, zap.AddCaller()), nil
}
