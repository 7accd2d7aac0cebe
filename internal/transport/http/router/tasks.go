package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go-task-mirror/internal/domain"
	"go-task-mirror/internal/sync/dispatch"
	"go-task-mirror/internal/sync/project"
	"go-task-mirror/internal/transport/http/ez"
	mdw "go-task-mirror/internal/transport/http/middleware"
)

// dispatcherFor 写路径走调度器：校验 → 存储端写入 → 订阅回声更新镜像，
// 这里绝不直接改任何本地快照
func dispatcherFor(c *gin.Context, d Deps) *dispatch.Dispatcher {
	uid := c.GetString(mdw.KeyUserID)
	return dispatch.New(d.Store, func() *domain.Identity {
		if uid == "" {
			return nil
		}
		return &domain.Identity{UID: uid}
	}, d.Log)
}

func taskActionErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrNoIdentity):
		return ez.Unauthorized(err.Error())
	case errors.Is(err, domain.ErrEmptyText),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrBadDate),
		errors.Is(err, domain.ErrMissingID):
		return ez.BadRequest(err.Error())
	case errors.Is(err, domain.ErrTaskNotFound):
		return ez.NotFound(err.Error())
	default:
		return ez.Internal("task operation failed", err)
	}
}

func mountTaskActions(authed *gin.RouterGroup, d Deps) {
	e := ez.New(authed)

	type listOut struct {
		Tasks []domain.Task `json:"tasks"`
	}
	snapshot := func(c *gin.Context) ([]domain.Task, error) {
		return d.Store.List(c, c.GetString(mdw.KeyUserID))
	}

	ez.Register[struct{}, listOut](e, d.DB, ez.Action[struct{}, listOut]{
		Method: http.MethodGet,
		Path:   "/tasks",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (listOut, error) {
			snap, err := snapshot(c)
			if err != nil {
				return listOut{}, ez.Internal("list tasks failed", err)
			}
			return listOut{Tasks: snap}, nil
		},
	})

	ez.Register[struct{}, listOut](e, d.DB, ez.Action[struct{}, listOut]{
		Method: http.MethodGet,
		Path:   "/tasks/today",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (listOut, error) {
			snap, err := snapshot(c)
			if err != nil {
				return listOut{}, ez.Internal("list tasks failed", err)
			}
			return listOut{Tasks: project.DueToday(snap, domain.Today())}, nil
		},
	})

	ez.Register[struct{}, listOut](e, d.DB, ez.Action[struct{}, listOut]{
		Method: http.MethodGet,
		Path:   "/tasks/category/:name",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (listOut, error) {
			cat := domain.Category(c.Param("name"))
			if !cat.Valid() {
				return listOut{}, ez.BadRequest("unknown task category")
			}
			snap, err := snapshot(c)
			if err != nil {
				return listOut{}, ez.Internal("list tasks failed", err)
			}
			return listOut{Tasks: project.ByCategory(snap, cat)}, nil
		},
	})

	ez.Register[struct{}, domain.Task](e, d.DB, ez.Action[struct{}, domain.Task]{
		Method: http.MethodGet,
		Path:   "/tasks/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (domain.Task, error) {
			snap, err := snapshot(c)
			if err != nil {
				return domain.Task{}, ez.Internal("list tasks failed", err)
			}
			t, found := project.ByID(snap, c.Param("id"))
			if !found {
				return domain.Task{}, ez.NotFound("task not found")
			}
			return t, nil
		},
	})

	type createOut struct {
		ID string `json:"id"`
	}
	ez.Register[domain.Draft, createOut](e, d.DB, ez.Action[domain.Draft, createOut]{
		Method: http.MethodPost,
		Path:   "/tasks",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *domain.Draft) (createOut, error) {
			id, err := dispatcherFor(c, d).Create(c, *in)
			if err != nil {
				return createOut{}, taskActionErr(err)
			}
			return createOut{ID: id}, nil
		},
	})

	ez.Register[domain.Task, gin.H](e, d.DB, ez.Action[domain.Task, gin.H]{
		Method: http.MethodPut,
		Path:   "/tasks/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *domain.Task) (gin.H, error) {
			in.ID = c.Param("id")
			if err := dispatcherFor(c, d).Update(c, *in); err != nil {
				return nil, taskActionErr(err)
			}
			return gin.H{"id": in.ID}, nil
		},
	})

	ez.Register[struct{}, gin.H](e, d.DB, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/tasks/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (gin.H, error) {
			if err := dispatcherFor(c, d).Delete(c, c.Param("id")); err != nil {
				return nil, taskActionErr(err)
			}
			return gin.H{"id": c.Param("id")}, nil
		},
	})
}
