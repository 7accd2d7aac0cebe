package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-task-mirror/internal/domain"
)

// Dispatcher 把 UI 侧的增删改发往存储端。
// 对任务数据完全无状态：既不缓存也不回写镜像，
// 镜像只通过订阅回声更新（写入后等推送，不做乐观更新）。
type Dispatcher struct {
	store    domain.TaskStore
	identity func() *domain.Identity // 当前活跃身份，无身份时返回 nil
	log      *zap.Logger
}

func New(store domain.TaskStore, identity func() *domain.Identity, log *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, identity: identity, log: log}
}

// Create 校验草稿并写入；id 由存储端分配后异步返回
func (d *Dispatcher) Create(ctx context.Context, draft domain.Draft) (string, error) {
	id := d.identity()
	if id == nil {
		return "", domain.ErrNoIdentity
	}
	if err := draft.Validate(); err != nil {
		return "", err
	}
	taskID, err := d.store.Add(ctx, id.UID, draft)
	if err != nil {
		d.log.Error("task create failed", zap.String("uid", id.UID), zap.Error(err))
		return "", fmt.Errorf("create task: %w", err)
	}
	return taskID, nil
}

// Update 覆写可变字段；createdAt 原样带过，不在此处改动
func (d *Dispatcher) Update(ctx context.Context, t domain.Task) error {
	id := d.identity()
	if id == nil {
		return domain.ErrNoIdentity
	}
	if t.ID == "" {
		return domain.ErrMissingID
	}
	if t.Text == "" {
		return domain.ErrEmptyText
	}
	if !t.Category.Valid() {
		return domain.ErrInvalidCategory
	}
	if err := d.store.Update(ctx, id.UID, t); err != nil {
		d.log.Error("task update failed", zap.String("uid", id.UID), zap.String("task", t.ID), zap.Error(err))
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// Delete 不预查存在性，交给存储端语义
func (d *Dispatcher) Delete(ctx context.Context, taskID string) error {
	id := d.identity()
	if id == nil {
		return domain.ErrNoIdentity
	}
	if taskID == "" {
		return domain.ErrMissingID
	}
	if err := d.store.Delete(ctx, id.UID, taskID); err != nil {
		d.log.Error("task delete failed", zap.String("uid", id.UID), zap.String("task", taskID), zap.Error(err))
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
