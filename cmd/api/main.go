package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	_ "go.uber.org/automaxprocs"

	"go-task-mirror/internal/core/auth"
	"go-task-mirror/internal/core/bus"
	"go-task-mirror/internal/core/cache"
	"go-task-mirror/internal/core/config"
	"go-task-mirror/internal/core/database"
	"go-task-mirror/internal/core/logger"
	"go-task-mirror/internal/core/server"
	"go-task-mirror/internal/domain"
	"go-task-mirror/internal/pref"
	"go-task-mirror/internal/provider"
	"go-task-mirror/internal/repo"
	"go-task-mirror/internal/store"
	"go-task-mirror/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))

	l, sync := logger.Build(logger.Options{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		AddCaller:  true,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer sync()

	l.Info("booting",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("dsn", database.MaskDSN(cfg.DB.DSN)),
	)

	db, err := database.New(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		l.Fatal("open database failed", zap.Error(err))
	}
	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(&domain.User{}, &domain.Task{}); err != nil {
			l.Fatal("auto migrate failed", zap.Error(err))
		}
	}

	c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer c.Close()

	b := bus.New(c.RDB, l)
	tasks := store.New(db, b, l, cfg.Stream.WatchRetries,
		time.Duration(cfg.Stream.WatchBackoffMs)*time.Millisecond)

	users := repo.NewUserRepo(db)
	jwter := auth.New(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTLMin)
	local := provider.NewLocal(users, jwter, b, c, cfg.Auth, l)
	prefs := pref.NewStore(c, l)

	engine := router.NewAPIEngine(router.Deps{
		Log:      l,
		DB:       db,
		Store:    tasks,
		Provider: local,
		Prefs:    prefs,
		Users:    users,
		Cache:    c,
		JWTer:    jwter,
		Stream:   cfg.Stream,
	})

	// WriteTimeout 必须为 0：/tasks/stream 是长连接
	srv := server.BuildServer(
		server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port),
		engine,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	go func() {
		if err := server.StartHTTP(srv, l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.Warn("shutdown not clean", zap.Error(err))
	}
	l.Info("bye")
}
