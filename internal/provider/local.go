package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"go-task-mirror/internal/core/auth"
	"go-task-mirror/internal/core/bus"
	"go-task-mirror/internal/core/cache"
	"go-task-mirror/internal/core/config"
	"go-task-mirror/internal/domain"
	"go-task-mirror/internal/repo"
	"go-task-mirror/pkg/utils"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLen = 6

// Local 本地认证提供方：用户表 + bcrypt + JWT。
// 生命周期事件（登录 / 登出）通过每用户频道广播，Session Gate 订阅消费。
type Local struct {
	users *repo.UserRepo
	jwter *auth.JWTer
	bus   *bus.Bus
	cache *cache.Cache
	cfg   config.Auth
	log   *zap.Logger
}

func NewLocal(users *repo.UserRepo, jwter *auth.JWTer, b *bus.Bus, c *cache.Cache, cfg config.Auth, log *zap.Logger) *Local {
	return &Local{users: users, jwter: jwter, bus: b, cache: c, cfg: cfg, log: log}
}

var _ domain.AuthProvider = (*Local)(nil)

func (p *Local) SignInPassword(ctx context.Context, email, password string) (*domain.Identity, string, error) {
	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return nil, "", authErr(KindInvalidEmail, "auth/invalid-email")
	}
	if password == "" {
		return nil, "", authErr(KindInvalidCredential, "auth/wrong-password")
	}
	u, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", wrapErr("auth/lookup-failed", err)
	}
	if u == nil {
		return nil, "", authErr(KindInvalidCredential, "auth/user-not-found")
	}
	if u.Method != domain.MethodPassword || u.PasswordHash == "" {
		return nil, "", authErr(KindAccountExists, "auth/account-exists-with-different-credential")
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, "", authErr(KindInvalidCredential, "auth/wrong-password")
	}
	return p.issue(ctx, u)
}

func (p *Local) Register(ctx context.Context, email, password, name string) (*domain.Identity, error) {
	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return nil, authErr(KindInvalidEmail, "auth/invalid-email")
	}
	if len(password) < minPasswordLen {
		return nil, authErr(KindWeakPassword, "auth/weak-password")
	}
	existing, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, wrapErr("auth/lookup-failed", err)
	}
	if existing != nil {
		return nil, authErr(KindEmailInUse, "auth/email-already-in-use")
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: utils.HashPassword(password),
		Method:       domain.MethodPassword,
		Role:         "user",
	}
	if err := p.users.Create(ctx, u); err != nil {
		// 并发兜底：唯一冲突按已占用处理
		if isDupKey(err) {
			return nil, authErr(KindEmailInUse, "auth/email-already-in-use")
		}
		return nil, wrapErr("auth/register-failed", err)
	}
	p.log.Info("user registered", zap.String("uid", u.ID))
	return u.Identity(), nil
}

const resetKeyPrefix = "auth.reset."

// SendPasswordReset 签发一次性重置令牌（SMTP 投递不在范围内，只记日志）
func (p *Local) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return authErr(KindInvalidEmail, "auth/invalid-email")
	}
	u, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		return wrapErr("auth/lookup-failed", err)
	}
	if u == nil {
		return authErr(KindInvalidCredential, "auth/user-not-found")
	}
	token := utils.NewToken()
	ttl := time.Duration(p.cfg.ResetTokenTTLMin) * time.Minute
	if err := p.cache.RDB.Set(ctx, resetKeyPrefix+token, u.ID, ttl).Err(); err != nil {
		return wrapErr("auth/reset-store-failed", err)
	}
	p.log.Info("password reset token issued", zap.String("uid", u.ID))
	p.log.Debug("password reset token", zap.String("token", token))
	return nil
}

// ResetPassword 消费重置令牌并改密
func (p *Local) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return authErr(KindWeakPassword, "auth/weak-password")
	}
	uid, err := p.cache.RDB.GetDel(ctx, resetKeyPrefix+token).Result()
	if err != nil || uid == "" {
		return authErr(KindInvalidCredential, "auth/invalid-reset-token")
	}
	u, err := p.users.FindByID(ctx, uid)
	if err != nil || u == nil {
		return authErr(KindInvalidCredential, "auth/user-not-found")
	}
	u.PasswordHash = utils.HashPassword(newPassword)
	u.Method = domain.MethodPassword
	if err := p.users.Save(ctx, u); err != nil {
		return wrapErr("auth/reset-save-failed", err)
	}
	return nil
}

// federatedClaims 联合登录换取的外部 ID token
type federatedClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

func (p *Local) SignInFederated(ctx context.Context, idToken string) (*domain.Identity, string, error) {
	if !p.cfg.FederatedEnabled {
		return nil, "", authErr(KindProviderDisabled, "auth/operation-not-allowed")
	}
	if strings.TrimSpace(idToken) == "" {
		// 空 token = 外部交互被取消
		return nil, "", authErr(KindInteractionCancelled, "auth/popup-closed-by-user")
	}
	var claims federatedClaims
	t, err := jwt.ParseWithClaims(idToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg")
		}
		return []byte(p.cfg.FederatedSecret), nil
	})
	if err != nil || !t.Valid {
		return nil, "", authErr(KindInvalidCredential, "auth/invalid-id-token")
	}
	email := strings.TrimSpace(claims.Email)
	if !emailRegex.MatchString(email) {
		return nil, "", authErr(KindInvalidEmail, "auth/invalid-email")
	}

	u, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", wrapErr("auth/lookup-failed", err)
	}
	switch {
	case u == nil:
		u = &domain.User{
			ID:     utils.NewID(),
			Email:  email,
			Name:   strings.TrimSpace(claims.Name),
			Method: domain.MethodFederated,
			Role:   "user",
		}
		if err := p.users.Create(ctx, u); err != nil {
			if isDupKey(err) {
				return nil, "", authErr(KindAccountExists, "auth/account-exists-with-different-credential")
			}
			return nil, "", wrapErr("auth/register-failed", err)
		}
	case u.Method != domain.MethodFederated:
		return nil, "", authErr(KindAccountExists, "auth/account-exists-with-different-credential")
	}
	return p.issue(ctx, u)
}

// issue 发 JWT 并广播登录事件
func (p *Local) issue(ctx context.Context, u *domain.User) (*domain.Identity, string, error) {
	tok, err := p.jwter.Issue(u.ID, u.Role)
	if err != nil || tok == "" {
		return nil, "", wrapErr("auth/issue-token-failed", err)
	}
	id := u.Identity()
	_ = p.bus.Publish(ctx, bus.AuthChannel(u.ID), domain.IdentityEvent{
		UID: u.ID, SignedIn: true, Identity: id,
	})
	return id, tok, nil
}

// SignOut 广播登出事件；该用户所有在线会话的门都会收到「无身份」通知
func (p *Local) SignOut(ctx context.Context, uid string) error {
	return p.bus.Publish(ctx, bus.AuthChannel(uid), domain.IdentityEvent{
		UID: uid, SignedIn: false,
	})
}

// IdentityEvents 订阅某用户的认证事件；cancel 同步生效
func (p *Local) IdentityEvents(ctx context.Context, uid string) (<-chan domain.IdentityEvent, func(), error) {
	ectx, cancel := context.WithCancel(ctx)
	ps := p.bus.Subscribe(ectx, bus.AuthChannel(uid))
	if _, err := ps.Receive(ectx); err != nil {
		cancel()
		_ = ps.Close()
		return nil, nil, err
	}
	out := make(chan domain.IdentityEvent, 4)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ectx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.IdentityEvent
				if err := unmarshalEvent(msg.Payload, &ev); err != nil {
					p.log.Warn("bad identity event payload", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ectx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

func unmarshalEvent(payload string, ev *domain.IdentityEvent) error {
	return json.Unmarshal([]byte(payload), ev)
}

func isDupKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}

// AsAuthError 供边界层做穷举匹配
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
