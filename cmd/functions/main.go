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
	"github.com/reclaimai/reclaim/internal/application/functions"
	"github.com/reclaimai/reclaim/internal/config"
	"github.com/reclaimai/reclaim/internal/domain/ai"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/infra/ai/openai"
	"github.com/reclaimai/reclaim/internal/infra/ai/simulated"
	mysqlp "github.com/reclaimai/reclaim/internal/infra/db/mysql"
	"github.com/reclaimai/reclaim/internal/infra/db/postgres"
	"github.com/reclaimai/reclaim/internal/infra/funcserver"
	minioStore "github.com/reclaimai/reclaim/internal/infra/storage"
	"github.com/reclaimai/reclaim/internal/middleware"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

// repository is the evidence table plus schema setup.
type repository interface {
	evidence.Repository
	EnsureSchema(ctx context.Context) error
}

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatalf("config error: auth.jwtSecret (AUTH_JWT_SECRET) is required for the functions host")
	}

	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repo, err := openRepository(ctx, cfg)
	if err != nil {
		lg.Fatal("database init failed", "driver", cfg.Database.Driver, "error", err)
	}
	defer db.Close()
	if err := repo.EnsureSchema(ctx); err != nil {
		lg.Fatal("schema init failed", "error", err)
	}

	files, err := minioStore.New(ctx, minioStore.Options{
		Endpoint:  cfg.Minio.Endpoint,
		Region:    cfg.Minio.Region,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	}, cfg.Minio.BucketName)
	if err != nil {
		lg.Fatal("minio init failed", "bucket", cfg.Minio.BucketName, "error", err)
	}
	reports, err := files.Bucket(ctx, cfg.Minio.ReportBucket)
	if err != nil {
		lg.Fatal("minio init failed", "bucket", cfg.Minio.ReportBucket, "error", err)
	}

	var analyzer ai.Client = simulated.New()
	if cfg.AI.Provider == config.AIProviderOpenAI {
		analyzer = openai.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	}
	lg.Info("analyzer selected", "provider", cfg.AI.Provider, "model", cfg.AI.Model)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Run(ctx.Done())

	handler := funcserver.NewRouter(
		&functions.AnalyzeService{
			Records:      repo,
			Objects:      files,
			Analyzer:     analyzer,
			MaxTextBytes: cfg.Functions.MaxTextBytes,
			Log:          lg,
		},
		&functions.ReportService{
			Records:   repo,
			Artifacts: reports,
			Expiry:    cfg.Functions.ReportExpiry,
			Clock:     application.SystemClock{},
			Log:       lg,
		},
		funcserver.Options{
			AnalyzeName:    cfg.Functions.AnalyzeName,
			ReportName:     cfg.Functions.ReportName,
			AllowedOrigins: cfg.Functions.AllowedOrigin,
			JWTSecret:      []byte(cfg.Auth.JWTSecret),
			Limiter:        limiter,
			Metrics:        middleware.NewMetrics("functions"),
			Checkers: map[string]middleware.HealthChecker{
				"database": &middleware.DatabaseHealthChecker{DB: db},
				"storage":  files,
				"reports":  reports,
			},
			Log: lg,
		},
	)

	addr := fmt.Sprintf(":%d", cfg.Functions.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		lg.Info("functions listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down functions...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		lg.Error("shutdown error", "error", err)
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (*sql.DB, repository, error) {
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
