package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// 任务分类（闭集，不接受自定义值）
type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWorkout  Category = "workout"
	CategoryWork     Category = "work"
	CategoryShopping Category = "shopping"
	CategoryOther    Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPersonal, CategoryWorkout, CategoryWork, CategoryShopping, CategoryOther:
		return true
	}
	return false
}

// 日期统一用天粒度字符串 YYYY-MM-DD
const DateLayout = "2006-01-02"

func Today() string { return time.Now().Format(DateLayout) }

type Task struct {
	ID          string   `gorm:"primaryKey;size:36" json:"id"`
	UID         string   `gorm:"index:idx_tasks_uid;size:36" json:"-"`
	Text        string   `gorm:"size:255;not null" json:"text"`
	Description string   `gorm:"size:2000" json:"description"`
	Category    Category `gorm:"size:16;not null" json:"category"`
	CreatedAt   string   `gorm:"size:10;not null" json:"createdAt"` // 创建后不再改写
	DueDate     string   `gorm:"size:10" json:"dueDate"`
	Completed   bool     `json:"completed"`
}

func (Task) TableName() string { return "tasks" }

// Draft 是尚未持久化的任务（没有 id，id 由存储端分配）
type Draft struct {
	Text        string   `json:"text"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	CreatedAt   string   `json:"createdAt"`
	DueDate     string   `json:"dueDate"`
	Completed   bool     `json:"completed"`
}

var (
	ErrEmptyText       = errors.New("task text must not be empty")
	ErrInvalidCategory = errors.New("unknown task category")
	ErrBadDate         = errors.New("date must be YYYY-MM-DD")
	ErrMissingID       = errors.New("task id is missing")
	ErrNoIdentity      = errors.New("no active identity")
	ErrTaskNotFound    = errors.New("task not found")
)

// Validate 校验并补默认值：createdAt 缺省为今天，completed 缺省 false
func (d *Draft) Validate() error {
	d.Text = strings.TrimSpace(d.Text)
	if d.Text == "" {
		return ErrEmptyText
	}
	if !d.Category.Valid() {
		return ErrInvalidCategory
	}
	if d.CreatedAt == "" {
		d.CreatedAt = Today()
	}
	for _, s := range []string{d.CreatedAt, d.DueDate} {
		if s == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, s); err != nil {
			return ErrBadDate
		}
	}
	return nil
}

// Subscription 是一条可取消的快照推送通道。
// 每次推送都是完整快照（整体替换，不做增量合并）。
type Subscription interface {
	Snapshots() <-chan []Task
	Errs() <-chan error
	// Close 对调用方是同步的：返回后不会再向通道投递
	Close()
}

// TaskStore 任务文档存储（服务端真相，本地只做镜像）
type TaskStore interface {
	Add(ctx context.Context, uid string, d Draft) (string, error)
	Update(ctx context.Context, uid string, t Task) error
	Delete(ctx context.Context, uid, id string) error
	List(ctx context.Context, uid string) ([]Task, error)
	Watch(ctx context.Context, uid string) (Subscription, error)
}
