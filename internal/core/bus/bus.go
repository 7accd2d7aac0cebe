package bus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bus 是一层很薄的 Redis pub/sub 封装。
// 任务变更通知和认证生命周期事件都走这里。
type Bus struct {
	rdb *redis.Client
	log *zap.Logger
}

func New(rdb *redis.Client, log *zap.Logger) *Bus {
	return &Bus{rdb: rdb, log: log}
}

// TaskChannel 某个用户的任务变更通知频道
func TaskChannel(uid string) string { return "tasks.changed." + uid }

// AuthChannel 某个用户的认证事件频道
func AuthChannel(uid string) string { return "auth.events." + uid }

func (b *Bus) Publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		b.log.Warn("bus publish failed", zap.String("channel", channel), zap.Error(err))
		return err
	}
	return nil
}

// Subscribe 返回底层 PubSub；调用方负责 Close
func (b *Bus) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return b.rdb.Subscribe(ctx, channel)
}
