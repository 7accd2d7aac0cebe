package pref

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"go-task-mirror/internal/core/cache"
)

// 主题偏好：每用户一个键值，跨会话持久。非敏感数据，不进任务模型。

const (
	ThemeLight   = "light"
	ThemeDark    = "dark"
	DefaultTheme = ThemeLight
)

var ErrBadTheme = errors.New("theme must be light or dark")

type Store struct {
	cache *cache.Cache
	log   *zap.Logger
}

func NewStore(c *cache.Cache, log *zap.Logger) *Store {
	return &Store{cache: c, log: log}
}

func themeKey(uid string) string { return "pref.theme." + uid }

// Theme 读不到（缺失或出错）一律回退默认值，启动路径绝不因偏好失败
func (s *Store) Theme(ctx context.Context, uid string) string {
	v, err := s.cache.RDB.Get(ctx, themeKey(uid)).Result()
	if err != nil || (v != ThemeLight && v != ThemeDark) {
		return DefaultTheme
	}
	return v
}

func (s *Store) SetTheme(ctx context.Context, uid, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return ErrBadTheme
	}
	if err := s.cache.RDB.Set(ctx, themeKey(uid), theme, 0).Err(); err != nil {
		s.log.Warn("persist theme failed", zap.String("uid", uid), zap.Error(err))
		return err
	}
	return nil
}
