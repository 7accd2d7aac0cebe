package mirror

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"go-task-mirror/internal/domain"
)

// Mirror 维护当前身份任务集合的本地快照。
// 真相在存储端；这里只是带活性保证的缓存，唯一写入者是订阅回调。
// 每次推送整体替换快照，快照永远对应某个服务端观测到的状态。
type Mirror struct {
	store domain.TaskStore
	log   *zap.Logger

	mu       sync.Mutex
	epoch    uint64 // 自增代数，用来丢弃已关闭订阅的迟到事件
	sub      domain.Subscription
	snapshot []domain.Task
	loading  bool
	lastErr  error

	updates chan []domain.Task // latest-wins，容量 1
	errs    chan error
}

func New(store domain.TaskStore, log *zap.Logger) *Mirror {
	return &Mirror{
		store:   store,
		log:     log,
		updates: make(chan []domain.Task, 1),
		errs:    make(chan error, 1),
	}
}

// Activate 为 uid 打开唯一一条在线订阅。
// 切换身份时先关旧订阅再开新订阅，任何时刻至多一条存活。
func (m *Mirror) Activate(ctx context.Context, uid string) error {
	m.mu.Lock()
	m.teardownLocked()
	m.epoch++
	e := m.epoch
	m.loading = true

	sub, err := m.store.Watch(ctx, uid)
	if err != nil {
		m.loading = false
		m.lastErr = err
		m.mu.Unlock()
		m.log.Error("task watch open failed", zap.String("uid", uid), zap.Error(err))
		pushErr(m.errs, err)
		return err
	}
	m.sub = sub
	m.mu.Unlock()

	go m.consume(e, sub)
	return nil
}

// Deactivate 关闭在线订阅（如有）并清空快照。幂等。
func (m *Mirror) Deactivate() {
	m.mu.Lock()
	m.teardownLocked()
	m.mu.Unlock()
}

// teardownLocked 同步关闭；代数自增后，在途事件一律作废
func (m *Mirror) teardownLocked() {
	if m.sub != nil {
		m.sub.Close()
		m.sub = nil
	}
	m.epoch++
	m.snapshot = nil
	m.loading = false
	m.lastErr = nil
}

func (m *Mirror) consume(e uint64, sub domain.Subscription) {
	snaps, errs := sub.Snapshots(), sub.Errs()
	for snaps != nil || errs != nil {
		select {
		case snap, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			m.apply(e, snap)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.fail(e, err)
		}
	}
}

func (m *Mirror) apply(e uint64, snap []domain.Task) {
	m.mu.Lock()
	if e != m.epoch {
		m.mu.Unlock()
		return // 已关闭订阅的迟到推送
	}
	m.snapshot = snap
	m.loading = false
	m.lastErr = nil
	m.mu.Unlock()
	pushSnap(m.updates, snap)
}

// fail 清掉加载态但保留最后一份好快照：宁可陈旧，不要空白
func (m *Mirror) fail(e uint64, err error) {
	m.mu.Lock()
	if e != m.epoch {
		m.mu.Unlock()
		return
	}
	m.loading = false
	m.lastErr = err
	m.mu.Unlock()
	m.log.Error("task subscription error", zap.Error(err))
	pushErr(m.errs, err)
}

// Snapshot 当前快照的拷贝
func (m *Mirror) Snapshot() []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Task, len(m.snapshot))
	copy(out, m.snapshot)
	return out
}

func (m *Mirror) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

func (m *Mirror) LastErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Updates 最新快照通道（只保留最近一份，消费慢时旧的被覆盖）
func (m *Mirror) Updates() <-chan []domain.Task { return m.updates }

func (m *Mirror) Errs() <-chan error { return m.errs }

func pushSnap(ch chan []domain.Task, v []domain.Task) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func pushErr(ch chan error, v error) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
