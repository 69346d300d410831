package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-registration-export/adapters/httpapi"
	"github.com/goliatone/go-registration-export/adapters/metrics/promhook"
	"github.com/goliatone/go-registration-export/export"
	"github.com/goliatone/go-registration-export/sources/bunsource"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("exportd: %v", err)
	}
}

func run() error {
	cfg := export.FromEnv()
	logger := stdLogger{}

	registry := export.NewRegistry(export.RegistryConfig{
		KeepRecent:          cfg.KeepRecent,
		StorageWarningBytes: cfg.StorageWarningBytes,
		StorageCleanupBytes: cfg.StorageCleanupBytes,
	}, logger)

	opts := []export.CoordinatorOption{
		export.WithLogger(logger),
	}

	var db *bun.DB
	if cfg.DBDSN != "" {
		var err error
		db, err = openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		opts = append(opts, export.WithAdapter(bunsource.New(db, logger)))
		logger.Infof("source adapter connected (driver=%s)", driverName(cfg))
	} else {
		logger.Infof("no DB_DSN configured, only inline exports are available")
	}

	hook, err := promhook.New(prometheus.DefaultRegisterer, registry.Stats)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	opts = append(opts, export.WithMetricsHook(hook))

	coordinator := export.NewCoordinator(cfg, registry, opts...)

	if cfg.CleanupOnStartup {
		stats := registry.Sweep()
		if stats.Total() > 0 {
			logger.Infof("startup sweep removed %d export(s)", stats.Total())
		}
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := &export.Sweeper{Registry: registry, Interval: cfg.SweepInterval, Logger: logger}
	go sweeper.Run(sweepCtx)

	app := fiber.New(fiber.Config{
		AppName:               "Registration Export Service",
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization,X-Request-ID",
	}))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handler := httpapi.NewHandler(coordinator, db != nil, logger)
	handler.Register(app)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on http://%s", addr)
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Infof("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openDatabase(cfg export.Config) (*bun.DB, error) {
	sqldb, err := sql.Open(driverName(cfg), cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func driverName(cfg export.Config) string {
	if cfg.DBDriver != "" {
		return cfg.DBDriver
	}
	return sqliteshim.ShimName
}

// stdLogger adapts the standard log package to export.Logger.
type stdLogger struct{}

func (stdLogger) Debugf(format string, args ...any) { log.Printf("DEBUG "+format, args...) }
func (stdLogger) Infof(format string, args ...any)  { log.Printf("INFO  "+format, args...) }
func (stdLogger) Errorf(format string, args ...any) { log.Printf("ERROR "+format, args...) }
