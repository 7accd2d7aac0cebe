package store

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go-task-mirror/internal/core/bus"
	"go-task-mirror/internal/domain"
)

var watchGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "task_watch_subscriptions",
	Help: "Number of live task watch subscriptions",
})

func init() { prometheus.MustRegister(watchGauge) }

// watcher 一条用户级在线订阅：打开即送全量快照，
// 之后每收到一次变更通知就重查并重发全量。
// 传输层断线重连交给 go-redis 自身；这里的显式重试只针对快照重查。
type watcher struct {
	store  *Store
	uid    string
	ctx    context.Context
	cancel context.CancelFunc
	snaps  chan []domain.Task
	errs   chan error
	once   sync.Once
}

func (s *Store) Watch(ctx context.Context, uid string) (domain.Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)
	ps := s.bus.Subscribe(wctx, bus.TaskChannel(uid))
	// 确认订阅真正建立，失败就让 Activate 立刻报错
	if _, err := ps.Receive(wctx); err != nil {
		cancel()
		_ = ps.Close()
		return nil, err
	}

	w := &watcher{
		store:  s,
		uid:    uid,
		ctx:    wctx,
		cancel: cancel,
		snaps:  make(chan []domain.Task, 1),
		errs:   make(chan error, 1),
	}
	watchGauge.Inc()
	go w.run(ps.Channel(), ps.Close)
	return w, nil
}

func (w *watcher) run(notifies <-chan *redis.Message, closePS func() error) {
	defer func() {
		_ = closePS()
		close(w.snaps)
		close(w.errs)
		watchGauge.Dec()
	}()

	w.reload()
	for {
		select {
		case <-w.ctx.Done():
			return
		case _, ok := <-notifies:
			if !ok {
				return
			}
			w.reload()
		}
	}
}

// reload 重查全量快照；失败按固定退避重试有限次，仍失败则上报错误
// （订阅本身保持打开，消费端保留最后一份好快照）
func (w *watcher) reload() {
	var snap []domain.Task
	var err error
	for attempt := 0; ; attempt++ {
		snap, err = w.store.List(w.ctx, w.uid)
		if err == nil {
			break
		}
		if w.ctx.Err() != nil {
			return
		}
		if attempt >= w.store.retries {
			w.store.log.Error("snapshot reload failed",
				zap.String("uid", w.uid), zap.Int("attempts", attempt+1), zap.Error(err))
			w.pushErr(err)
			return
		}
		select {
		case <-w.ctx.Done():
			return
		case <-time.After(w.store.backoff):
		}
	}
	w.pushSnap(snap)
}

// latest-wins：消费慢时覆盖旧值，绝不阻塞 run 循环
func (w *watcher) pushSnap(snap []domain.Task) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case w.snaps <- snap:
			return
		default:
			select {
			case <-w.snaps:
			default:
			}
		}
	}
}

func (w *watcher) pushErr(err error) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case w.errs <- err:
			return
		default:
			select {
			case <-w.errs:
			default:
			}
		}
	}
}

func (w *watcher) Snapshots() <-chan []domain.Task { return w.snaps }
func (w *watcher) Errs() <-chan error              { return w.errs }

// Close 对调用方同步生效：取消后 run 退出并关闭通道，
// 迟到的底层消息不会再投递出去
func (w *watcher) Close() { w.once.Do(w.cancel) }
