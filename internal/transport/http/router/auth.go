package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-task-mirror/internal/core/cache"
	"go-task-mirror/internal/domain"
	"go-task-mirror/internal/provider"
	"go-task-mirror/internal/transport/http/ez"
	mdw "go-task-mirror/internal/transport/http/middleware"
)

// authActionErr 提供方的带标签错误 → 统一响应码；闭集穷举 + 兜底
func authActionErr(err error) error {
	ae, ok := provider.AsAuthError(err)
	if !ok {
		return err
	}
	msg := ae.Kind.Message()
	switch ae.Kind {
	case provider.KindInvalidCredential:
		return ez.Unauthorized(msg)
	case provider.KindEmailInUse, provider.KindAccountExists:
		return ez.Conflict(msg)
	case provider.KindWeakPassword, provider.KindInvalidEmail, provider.KindInteractionCancelled:
		return ez.BadRequest(msg)
	case provider.KindProviderDisabled:
		return ez.Forbidden(msg)
	default:
		return ez.Internal(msg, ae)
	}
}

type sessionOut struct {
	Token string           `json:"token"`
	User  *domain.Identity `json:"user"`
	Label string           `json:"label"`
}

func mountAuthActions(public, authed *gin.RouterGroup, d Deps) {
	ezPublic := ez.New(public)

	type loginIn struct {
		Email    string `json:"email"    binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	ez.Register[loginIn, sessionOut](ezPublic, d.DB, ez.Action[loginIn, sessionOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *loginIn) (sessionOut, error) {
			id, tok, err := d.Provider.SignInPassword(c, in.Email, in.Password)
			if err != nil {
				return sessionOut{}, authActionErr(err)
			}
			return sessionOut{Token: tok, User: id, Label: domain.DisplayLabel(id)}, nil
		},
	})

	type registerIn struct {
		Email    string `json:"email"    binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"     binding:"omitempty,max=64"`
	}
	type registerOut struct {
		User *domain.Identity `json:"user"`
	}
	ez.Register[registerIn, registerOut](ezPublic, d.DB, ez.Action[registerIn, registerOut]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *registerIn) (registerOut, error) {
			id, err := d.Provider.Register(c, in.Email, in.Password, in.Name)
			if err != nil {
				return registerOut{}, authActionErr(err)
			}
			return registerOut{User: id}, nil
		},
	})

	type resetIn struct {
		Email string `json:"email" binding:"required"`
	}
	ez.Register[resetIn, gin.H](ezPublic, d.DB, ez.Action[resetIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/auth/reset",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *resetIn) (gin.H, error) {
			if err := d.Provider.SendPasswordReset(c, in.Email); err != nil {
				return nil, authActionErr(err)
			}
			return gin.H{"sent": true}, nil
		},
	})

	type resetConfirmIn struct {
		Token    string `json:"token"    binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	ez.Register[resetConfirmIn, gin.H](ezPublic, d.DB, ez.Action[resetConfirmIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/auth/reset/confirm",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *resetConfirmIn) (gin.H, error) {
			if err := d.Provider.ResetPassword(c, in.Token, in.Password); err != nil {
				return nil, authActionErr(err)
			}
			return gin.H{"reset": true}, nil
		},
	})

	type federatedIn struct {
		IDToken string `json:"idToken"`
	}
	ez.Register[federatedIn, sessionOut](ezPublic, d.DB, ez.Action[federatedIn, sessionOut]{
		Method: http.MethodPost,
		Path:   "/auth/federated",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *federatedIn) (sessionOut, error) {
			id, tok, err := d.Provider.SignInFederated(c, in.IDToken)
			if err != nil {
				return sessionOut{}, authActionErr(err)
			}
			return sessionOut{Token: tok, User: id, Label: domain.DisplayLabel(id)}, nil
		},
	})

	ezAuthed := ez.New(authed)

	ez.Register[struct{}, gin.H](ezAuthed, d.DB, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (gin.H, error) {
			uid := c.GetString(mdw.KeyUserID)
			// 远端失败也返回已登出：本地清理不回滚
			if err := d.Provider.SignOut(c, uid); err != nil {
				d.Log.Warn("sign-out broadcast failed", zap.String("uid", uid), zap.Error(err))
			}
			d.Cache.Invalidate(c, userCacheKey(uid))
			return gin.H{"signedOut": true}, nil
		},
	})

	type meOut struct {
		User  *domain.Identity `json:"user"`
		Label string           `json:"label"`
		Theme string           `json:"theme"`
	}
	ez.Register[struct{}, meOut](ezAuthed, d.DB, ez.Action[struct{}, meOut]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (meOut, error) {
			uid := c.GetString(mdw.KeyUserID)
			u, err := loadUser(c, d, uid)
			if err != nil {
				return meOut{}, ez.Internal("load user failed", err)
			}
			if u == nil {
				return meOut{}, ez.NotFound("user not found")
			}
			id := u.Identity()
			return meOut{User: id, Label: domain.DisplayLabel(id), Theme: d.Prefs.Theme(c, uid)}, nil
		},
	})
}

func userCacheKey(uid string) string { return "user." + uid }

// loadUser 带 singleflight 的读穿缓存
func loadUser(c *gin.Context, d Deps, uid string) (*domain.User, error) {
	return cache.GetOrLoadJSON[domain.User](d.Cache, c, userCacheKey(uid), 5*time.Minute,
		func(ctx context.Context) (*domain.User, error) {
			return d.Users.FindByID(ctx, uid)
		})
}
