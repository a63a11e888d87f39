package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reclaimai/reclaim/internal/application"
	"github.com/reclaimai/reclaim/internal/application/analysis"
	appevidence "github.com/reclaimai/reclaim/internal/application/evidence"
	"github.com/reclaimai/reclaim/internal/application/report"
	"github.com/reclaimai/reclaim/internal/application/session"
	"github.com/reclaimai/reclaim/internal/application/workspace"
	"github.com/reclaimai/reclaim/internal/config"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/infra/backend"
	mysqlp "github.com/reclaimai/reclaim/internal/infra/db/mysql"
	"github.com/reclaimai/reclaim/internal/infra/db/postgres"
	"github.com/reclaimai/reclaim/internal/infra/httpserver"
	"github.com/reclaimai/reclaim/internal/infra/sessionstore"
	minioStore "github.com/reclaimai/reclaim/internal/infra/storage"
	"github.com/reclaimai/reclaim/internal/middleware"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkers := map[string]middleware.HealthChecker{}

	client := backend.New(cfg.Backend.URL, cfg.Backend.AnonKey, cfg.Backend.Timeout, lg)
	authAPI := backend.NewAuth(client)
	checkers["auth"] = authAPI

	table, files, closeStore, err := evidenceStore(ctx, cfg, client, checkers)
	if err != nil {
		lg.Fatal("evidence store init failed", "mode", cfg.Backend.Mode, "error", err)
	}
	defer closeStore()

	sessDeps := session.Deps{Provider: authAPI}
	if cfg.Session.Redis.Addr != "" {
		rs, err := sessionstore.NewRedis(ctx, sessionstore.RedisOptions{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
			Prefix:   cfg.Session.Redis.Prefix,
			TTL:      cfg.Session.TokenTTL,
		}, lg)
		if err != nil {
			lg.Fatal("redis init failed", "addr", cfg.Session.Redis.Addr, "error", err)
		}
		defer rs.Close()
		sessDeps.Persistence, sessDeps.Bus = rs, rs
		checkers["redis"] = rs
	} else {
		lg.Warn("no redis configured, sessions are kept in memory")
		mem := sessionstore.NewMemory()
		sessDeps.Persistence, sessDeps.Bus = mem, mem
	}

	functions := backend.NewFunctions(client, backend.BreakerSettings{
		MinRequests:  cfg.Backend.Breaker.MinRequests,
		FailureRatio: cfg.Backend.Breaker.FailureRatio,
		OpenTimeout:  cfg.Backend.Breaker.OpenTimeout,
	})
	clock := application.SystemClock{}

	registry := workspace.NewRegistry(workspace.Deps{
		Session: sessDeps,
		Repository: &appevidence.Service{
			Table: table,
			Files: files,
			Clock: clock,
			Log:   lg,
		},
		Analyzer:      &analysis.Invoker{Functions: functions, Name: cfg.Functions.AnalyzeName, Clock: clock},
		Reports:       &report.Invoker{Functions: functions, Name: cfg.Functions.ReportName, Clock: clock},
		Clock:         clock,
		Log:           lg,
		IdleTTL:       cfg.Session.IdleTTL,
		AnonymousTTL:  cfg.Session.AnonymousTTL,
		MaxWorkspaces: cfg.Session.MaxActive,
	})
	defer registry.Close()
	go registry.Run(ctx)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Run(ctx.Done())

	handler := httpserver.NewRouter(httpserver.Options{
		Registry:     registry,
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		RestoreWait:  cfg.Session.RestoreWait,
		Limiter:      limiter,
		Metrics:      middleware.NewMetrics("web"),
		Checkers:     checkers,
		Log:          lg,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// run server
	go func() {
		lg.Info("web server listening", "addr", addr, "backend", cfg.Backend.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", "error", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	lg.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		lg.Error("shutdown error", "error", err)
	}
}

// evidenceStore picks the table and bucket: the hosted REST backend, or a
// database plus MinIO reached directly.
func evidenceStore(ctx context.Context, cfg *config.Config, client *backend.Client, checkers map[string]middleware.HealthChecker) (evidence.Table, evidence.FileStore, func(), error) {
	if cfg.Backend.Mode != config.BackendModeDirect {
		return backend.NewTable(client, cfg.Backend.Table), backend.NewStorage(client, cfg.Backend.Bucket), func() {}, nil
	}

	db, table, err := openTable(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}

	store, err := minioStore.New(ctx, minioStore.Options{
		Endpoint:  cfg.Minio.Endpoint,
		Region:    cfg.Minio.Region,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	}, cfg.Minio.BucketName)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("minio init: %w", err)
	}
	checkers["storage"] = store
	return table, store, func() { _ = db.Close() }, nil
}

func openTable(ctx context.Context, cfg *config.Config) (*sql.DB, evidence.Table, error) {
	if cfg.Database.Driver == config.DriverMySQL {
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		return db, mysqlp.NewEvidenceRepository(db), nil
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("postgres connect: %w", err)
	}
	return db, postgres.NewEvidenceRepository(db), nil
}
