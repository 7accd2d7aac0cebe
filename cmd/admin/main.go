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
	"go-task-mirror/internal/repo"
	"go-task-mirror/internal/store"
	"go-task-mirror/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))

	l, sync := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer sync()

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

	c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer c.Close()

	b := bus.New(c.RDB, l)
	tasks := store.New(db, b, l, cfg.Stream.WatchRetries,
		time.Duration(cfg.Stream.WatchBackoffMs)*time.Millisecond)

	engine := router.NewAdminEngine(router.AdminDeps{
		Log:   l,
		DB:    db,
		Users: repo.NewUserRepo(db),
		Store: tasks,
		JWTer: auth.New(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTLMin),
	})

	srv := server.BuildServer(
		server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port),
		engine,
		15*time.Second, 15*time.Second, 60*time.Second,
	)

	go func() {
		if err := server.StartHTTP(srv, l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("admin server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
