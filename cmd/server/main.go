package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/user-account-service/internal/account"
	"github.com/iliyamo/user-account-service/internal/auth"
	"github.com/iliyamo/user-account-service/internal/config"
	"github.com/iliyamo/user-account-service/internal/database"
	"github.com/iliyamo/user-account-service/internal/handler"
	"github.com/iliyamo/user-account-service/internal/logger"
	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/objectstore"
	"github.com/iliyamo/user-account-service/internal/queue"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/router"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err) // missing JWT_SECRET and friends end here
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if cfg.MigrateOnStart {
		if err := database.Migrate(dsn, zl); err != nil {
			return err
		}
	}
	db, err := database.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return err
	}
	hasher := auth.NewHasher(cfg.BcryptCost)
	users := repository.NewUserRepo(db)
	sessions := repository.NewTokenRepo(db)

	var events auth.EventPublisher
	if cfg.EventsEnabled {
		events = queue.NewAMQPPublisher(cfg.RabbitMQURL, zl)
	}
	if cfg.AuditConsumer {
		audit, err := logger.NewRotatingFile(cfg.AuditLogPath, cfg.AuditLogAge)
		if err != nil {
			return err
		}
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitMQURL, audit, zl); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	var objects account.ObjectStore
	if cfg.GCSBucket != "" {
		gcs, err := objectstore.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			return err
		}
		defer gcs.Close()
		objects = gcs
	} else {
		zl.Warn("GCS_BUCKET_NAME not set; profile photo upload disabled")
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		zl.Warn("redis unavailable; response cache disabled")
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(cfg.Cache, rdb, zl)

	authSvc := auth.NewService(users, sessions, hasher, tokens, events, zl, cfg.StoreTimeout)
	accounts := account.NewService(users, hasher, objects, events, zl, account.Options{
		StoreTimeout:  cfg.StoreTimeout,
		MaxPhotoBytes: cfg.MaxUploadBytes,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(zl))
	// multipart overhead on top of the largest accepted photo
	e.Use(echomw.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes+1<<20, 10)))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, accounts, zl), tokens, cache)
	router.RegisterUsers(e, handler.NewUserHandler(authSvc, accounts, zl), tokens, cache)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
