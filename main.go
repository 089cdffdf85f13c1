package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pictionary/internal/api"
	"pictionary/internal/repository"
	"pictionary/internal/service"
	"pictionary/internal/storage"
	"pictionary/pkg/config"
	"pictionary/pkg/logger"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "pictionary")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 依照 store.driver 建立連線
	backends := repository.Backends{RedisPrefix: cfg.Redis.KeyPrefix}
	switch cfg.Store.Driver {
	case repository.DriverPostgres:
		db, err := storage.NewPostgresDB(storage.PostgresConfig{
			Host:     cfg.DB.Host,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			Name:     cfg.DB.Name,
			Port:     cfg.DB.Port,
			SSLMode:  cfg.DB.SSLMode,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		// 自動遷移資料庫結構
		if err := db.AutoMigrate(); err != nil {
			return err
		}
		backends.Postgres = db
	case repository.DriverRedis:
		client, err := storage.NewRedisClient(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		backends.Redis = client
	}

	repos, err := repository.NewRepositories(cfg.Store.Driver, backends)
	if err != nil {
		return err
	}

	// 未設定管理員時不建立 AdminGate，管理端點與重置都停用
	var admin *service.AdminGate
	if cfg.AdminEnabled() {
		admin = service.NewAdminGate(cfg.Admin.RoomID, cfg.Admin.UsernameHash)
		zl.Info("operator reset enabled")
	}

	services := service.NewServices(repos, service.Options{
		TurnDuration:   cfg.Game.TurnDuration,
		TurnPause:      cfg.Game.TurnPause,
		ScoreIncrement: cfg.Game.ScoreIncrement,
		Admin:          admin,
	}, zl)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	api.SetupRoutes(r, services, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      []byte(cfg.Admin.JWTSecret),
		TokenTTL:       cfg.Admin.TokenTTL,
	}, zl)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("server listening", zap.String("address", cfg.Server.Address), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// WebSocket 連線已被劫持，Shutdown 不會等待它們
		services.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
