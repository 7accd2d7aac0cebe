package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-task-mirror/internal/core/auth"
	"go-task-mirror/internal/domain"
	"go-task-mirror/internal/repo"
	"go-task-mirror/internal/store"
	"go-task-mirror/internal/transport/http/ez"
	mdw "go-task-mirror/internal/transport/http/middleware"
)

type AdminDeps struct {
	Log   *zap.Logger
	DB    *gorm.DB
	Users *repo.UserRepo
	Store *store.Store
	JWTer *auth.JWTer
}

func NewAdminEngine(d AdminDeps) *gin.Engine {
	r := gin.New()

	r.Use(
		ginzap.Ginzap(d.Log, time.RFC3339, true),
		ginzap.RecoveryWithZap(d.Log, true),
		cors.Default(),
		mdw.RequestID(),
		mdw.RateLimit(50, 100),
		mdw.Metrics(),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.JWTer, "admin"))
	mountAdminActions(admin, d)

	return r
}

func mountAdminActions(admin *gin.RouterGroup, d AdminDeps) {
	e := ez.New(admin)

	type listQ struct {
		Offset      int    `form:"offset,default=0"`
		Limit       int    `form:"limit,default=20"`
		Q           string `form:"q"`
		WithDeleted bool   `form:"with_deleted"`
	}
	type row struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		Method    string `json:"method"`
		Role      string `json:"role"`
		TaskCount int64  `json:"taskCount"`
	}
	type listOut struct {
		Total int64 `json:"total"`
		Items []row `json:"items"`
	}

	ez.Register[listQ, listOut](e, d.DB, ez.Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, in *listQ) (listOut, error) {
			if in.Limit <= 0 || in.Limit > 100 {
				in.Limit = 20
			}
			users, total, err := d.Users.List(c, in.Q, in.Offset, in.Limit, in.WithDeleted)
			if err != nil {
				return listOut{}, ez.Internal("list users failed", err)
			}
			out := listOut{Total: total, Items: make([]row, 0, len(users))}
			for _, u := range users {
				n, err := d.Store.CountByUser(c, u.ID)
				if err != nil {
					return listOut{}, ez.Internal("count tasks failed", err)
				}
				out.Items = append(out.Items, row{
					ID: u.ID, Email: u.Email, Name: u.Name,
					Method: u.Method, Role: u.Role, TaskCount: n,
				})
			}
			return out, nil
		},
	})

	ez.Register[struct{}, gin.H](e, d.DB, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/:id/ban",
		Binder: ez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if id == "" {
				return nil, ez.BadRequest("missing id")
			}
			ok, err := d.Users.SoftDelete(c, id)
			if err != nil {
				return nil, ez.Internal("ban user failed", err)
			}
			if !ok {
				return nil, ez.NotFound("user not found")
			}
			return gin.H{"id": id}, nil
		},
	})

	// 封禁后任务还在；需要彻底清掉时走这里
	ez.Register[struct{}, gin.H](e, d.DB, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/users/:id/tasks",
		Binder: ez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		UseTx:  true,
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			res := tx.Where("uid = ?", id).Delete(&domain.Task{})
			if res.Error != nil {
				return nil, ez.Internal("purge tasks failed", res.Error)
			}
			return gin.H{"id": id, "purged": res.RowsAffected}, nil
		},
	})
}
