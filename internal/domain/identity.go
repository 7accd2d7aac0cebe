package domain

import (
	"context"
	"strings"
)

// Identity 已认证的用户上下文；除 Session Gate 外只读
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

const FallbackLabel = "User"

// DisplayLabel 展示名：显示名 → 邮箱 @ 前缀 → 兜底常量。
// 对任意形态（含 nil）都不失败。
func DisplayLabel(id *Identity) string {
	if id == nil {
		return FallbackLabel
	}
	if n := strings.TrimSpace(id.Name); n != "" {
		return n
	}
	if at := strings.IndexByte(id.Email, '@'); at > 0 {
		return id.Email[:at]
	}
	return FallbackLabel
}

// IdentityEvent 认证生命周期事件（登录 / 登出）
type IdentityEvent struct {
	UID      string    `json:"uid"`
	SignedIn bool      `json:"signedIn"`
	Identity *Identity `json:"identity,omitempty"`
}

// AuthProvider 认证提供方。错误一律是 provider 包的带 Kind 标签错误。
type AuthProvider interface {
	SignInPassword(ctx context.Context, email, password string) (*Identity, string, error)
	Register(ctx context.Context, email, password, name string) (*Identity, error)
	SendPasswordReset(ctx context.Context, email string) error
	SignInFederated(ctx context.Context, idToken string) (*Identity, string, error)
	SignOut(ctx context.Context, uid string) error
	// IdentityEvents 订阅某个 uid 的生命周期事件；返回的 cancel 同步生效
	IdentityEvents(ctx context.Context, uid string) (<-chan IdentityEvent, func(), error)
}
