package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/newslens/internal/application"
	appanalysis "github.com/bryanwahyu/newslens/internal/application/analysis"
	appauth "github.com/bryanwahyu/newslens/internal/application/auth"
	appnews "github.com/bryanwahyu/newslens/internal/application/news"
	"github.com/bryanwahyu/newslens/internal/config"
	"github.com/bryanwahyu/newslens/internal/domain/analysis"
	"github.com/bryanwahyu/newslens/internal/domain/audit"
	"github.com/bryanwahyu/newslens/internal/domain/auth"
	"github.com/bryanwahyu/newslens/internal/domain/news"
	openaicli "github.com/bryanwahyu/newslens/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/newslens/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/newslens/internal/infra/db/postgres"
	"github.com/bryanwahyu/newslens/internal/infra/extract"
	"github.com/bryanwahyu/newslens/internal/infra/httpserver"
	"github.com/bryanwahyu/newslens/internal/infra/newsapi"
	minioStore "github.com/bryanwahyu/newslens/internal/infra/storage"
	"github.com/bryanwahyu/newslens/pkg/logger"
)

type repositories struct {
	articles news.Repository
	analyses analysis.Repository
	users    auth.Repository
	errors   audit.Repository
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	db, repos, err := openDatabase(ctx, cfg)
	if err != nil {
		zlog.Fatal("database init failed", zap.Error(err))
	}
	defer db.Close()

	// init minio (optional; raw payload archive)
	var archive news.ArchiveStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			zlog.Fatal("minio init failed", zap.Error(err))
		}
		archive = store
	}

	clock := application.SystemClock{}

	newsSvc := &appnews.Service{
		Repo:      repos.articles,
		Provider:  newsapi.NewClient(cfg.NewsAPI.BaseURL, cfg.NewsAPI.APIKey),
		Extractor: extract.New(),
		Archive:   archive,
		Errors:    repos.errors,
		Clock:     clock,
		Log:       zlog.Named("news"),
		Country:   cfg.NewsAPI.Country,
		PageSize:  cfg.NewsAPI.PageSize,
	}
	analysisSvc := &appanalysis.Service{
		Repo:     repos.analyses,
		Articles: repos.articles,
		Users:    repos.users,
		Client:   openaicli.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
		Archive:  archive,
		Errors:   repos.errors,
		Clock:    clock,
		Log:      zlog.Named("analysis"),
	}
	authSvc := &appauth.Service{
		Repo:       repos.users,
		Articles:   repos.articles,
		Clock:      clock,
		Log:        zlog.Named("auth"),
		SessionTTL: cfg.SessionTTL(),
	}

	if err := newsSvc.EnsureDefaultCategories(ctx); err != nil {
		zlog.Fatal("category seeding failed", zap.Error(err))
	}
	if cfg.Demo.Enabled {
		if err := authSvc.EnsureDemoUser(ctx); err != nil {
			zlog.Fatal("demo user seeding failed", zap.Error(err))
		}
	}

	handler := httpserver.NewRouter(newsSvc, analysisSvc, authSvc, zlog.Named("http"), httpserver.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SecureCookie:   cfg.Session.SecureCookie,
		DB:             db,
		Errors:         repos.errors,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		zlog.Info("server listening", zap.String("addr", addr), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	zlog.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		zlog.Warn("shutdown error", zap.Error(err))
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, repositories, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, repositories{}, fmt.Errorf("mysql connect: %w", err)
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, repositories{}, fmt.Errorf("mysql migrate: %w", err)
		}
		return db, repositories{
			articles: mysqlp.NewArticleRepository(db),
			analyses: mysqlp.NewAnalysisRepository(db),
			users:    mysqlp.NewUserRepository(db),
			errors:   mysqlp.NewExternalErrorRepository(db),
		}, nil
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, repositories{}, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgresp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, repositories{}, fmt.Errorf("postgres migrate: %w", err)
		}
		return db, repositories{
			articles: postgresp.NewArticleRepository(db),
			analyses: postgresp.NewAnalysisRepository(db),
			users:    postgresp.NewUserRepository(db),
			errors:   postgresp.NewExternalErrorRepository(db),
		}, nil
	default:
		return nil, repositories{}, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}
