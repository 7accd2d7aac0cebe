package store

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-task-mirror/internal/core/bus"
	"go-task-mirror/internal/domain"
	"go-task-mirror/pkg/utils"
)

// Store 按用户隔离的任务文档存储。
// 每次写入都在对应用户的频道上广播一条变更通知，
// 在线订阅收到通知后重查全量快照（整体替换语义）。
type Store struct {
	db      *gorm.DB
	bus     *bus.Bus
	log     *zap.Logger
	retries int           // 快照重查失败的重试次数
	backoff time.Duration // 固定退避
}

func New(db *gorm.DB, b *bus.Bus, log *zap.Logger, retries int, backoff time.Duration) *Store {
	return &Store{db: db, bus: b, log: log, retries: retries, backoff: backoff}
}

type changeEvent struct {
	At int64 `json:"at"` // epoch ms；内容不重要，通知即可
}

func (s *Store) notify(ctx context.Context, uid string) {
	// 通知失败不影响写入结果，只是订阅端少一次刷新
	_ = s.bus.Publish(ctx, bus.TaskChannel(uid), changeEvent{At: time.Now().UnixMilli()})
}

// Add 存储端分配 id；客户端在首次写入前不生成 id
func (s *Store) Add(ctx context.Context, uid string, d domain.Draft) (string, error) {
	t := domain.Task{
		ID:          utils.NewID(),
		UID:         uid,
		Text:        d.Text,
		Description: d.Description,
		Category:    d.Category,
		CreatedAt:   d.CreatedAt,
		DueDate:     d.DueDate,
		Completed:   d.Completed,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return "", err
	}
	s.notify(ctx, uid)
	return t.ID, nil
}

// Update 只覆写可变字段；created_at 创建后不再改写
func (s *Store) Update(ctx context.Context, uid string, t domain.Task) error {
	res := s.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND uid = ?", t.ID, uid).
		Updates(map[string]any{
			"text":        t.Text,
			"description": t.Description,
			"category":    t.Category,
			"due_date":    t.DueDate,
			"completed":   t.Completed,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	s.notify(ctx, uid)
	return nil
}

func (s *Store) Delete(ctx context.Context, uid, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND uid = ?", id, uid).Delete(&domain.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	s.notify(ctx, uid)
	return nil
}

// List 全量快照，createdAt 倒序；同日内按 id 保证单次快照内次序稳定
func (s *Store) List(ctx context.Context, uid string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := s.db.WithContext(ctx).
		Where("uid = ?", uid).
		Order("created_at DESC, id").
		Find(&tasks).Error
	return tasks, err
}

// CountByUser 管理端统计
func (s *Store) CountByUser(ctx context.Context, uid string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Task{}).Where("uid = ?", uid).Count(&n).Error
	return n, err
}
