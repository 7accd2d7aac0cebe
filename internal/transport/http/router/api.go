package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-task-mirror/internal/core/auth"
	"go-task-mirror/internal/core/cache"
	"go-task-mirror/internal/core/config"
	"go-task-mirror/internal/pref"
	"go-task-mirror/internal/provider"
	"go-task-mirror/internal/repo"
	"go-task-mirror/internal/store"
	mdw "go-task-mirror/internal/transport/http/middleware"
)

// Deps 显式注入，不走包级单例
type Deps struct {
	Log      *zap.Logger
	DB       *gorm.DB
	Store    *store.Store
	Provider *provider.Local
	Prefs    *pref.Store
	Users    *repo.UserRepo
	Cache    *cache.Cache
	JWTer    *auth.JWTer
	Stream   config.Stream
}

func NewAPIEngine(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.SimpleRecovery(),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
		cors.Default(),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	// 写路径加超时；SSE 流不能挂在这层（长连接）
	timed := api.Group("")
	timed.Use(mdw.Timeout(10 * time.Second))

	authed := timed.Group("")
	authed.Use(mdw.AuthJWT(d.JWTer, ""))

	mountAuthActions(timed, authed, d)
	mountTaskActions(authed, d)
	mountPrefActions(authed, d)

	stream := api.Group("")
	stream.Use(mdw.AuthJWT(d.JWTer, ""))
	stream.GET("/tasks/stream", streamHandler(d))

	return r
}
