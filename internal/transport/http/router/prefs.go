package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go-task-mirror/internal/pref"
	"go-task-mirror/internal/transport/http/ez"
	mdw "go-task-mirror/internal/transport/http/middleware"
)

func mountPrefActions(authed *gin.RouterGroup, d Deps) {
	e := ez.New(authed)

	type themeOut struct {
		Theme string `json:"theme"`
	}
	ez.Register[struct{}, themeOut](e, d.DB, ez.Action[struct{}, themeOut]{
		Method: http.MethodGet,
		Path:   "/prefs/theme",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (themeOut, error) {
			return themeOut{Theme: d.Prefs.Theme(c, c.GetString(mdw.KeyUserID))}, nil
		},
	})

	type themeIn struct {
		Theme string `json:"theme" binding:"required"`
	}
	ez.Register[themeIn, themeOut](e, d.DB, ez.Action[themeIn, themeOut]{
		Method: http.MethodPut,
		Path:   "/prefs/theme",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *themeIn) (themeOut, error) {
			if err := d.Prefs.SetTheme(c, c.GetString(mdw.KeyUserID), in.Theme); err != nil {
				if errors.Is(err, pref.ErrBadTheme) {
					return themeOut{}, ez.BadRequest(err.Error())
				}
				return themeOut{}, ez.Internal("persist theme failed", err)
			}
			return themeOut{Theme: in.Theme}, nil
		},
	})
}
