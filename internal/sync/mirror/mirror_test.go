package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"go-task-mirror/internal/domain"
	"go-task-mirror/internal/sync/dispatch"
)

// fakeSub 的 Close 不关底层通道，模拟“逻辑上已关、传输层拆除仍在途”的订阅
type fakeSub struct {
	name   string
	snaps  chan []domain.Task
	errs   chan error
	store  *fakeStore
	closed bool
}

func (s *fakeSub) Snapshots() <-chan []domain.Task { return s.snaps }
func (s *fakeSub) Errs() <-chan error              { return s.errs }
func (s *fakeSub) Close() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.store.order = append(s.store.order, "close:"+s.name)
	}
}

type fakeStore struct {
	mu       sync.Mutex
	order    []string
	subs     []*fakeSub
	watchErr error
}

func (f *fakeStore) Add(context.Context, string, domain.Draft) (string, error) { return "", nil }
func (f *fakeStore) Update(context.Context, string, domain.Task) error         { return nil }
func (f *fakeStore) Delete(context.Context, string, string) error              { return nil }
func (f *fakeStore) List(context.Context, string) ([]domain.Task, error)       { return nil, nil }

func (f *fakeStore) Watch(_ context.Context, uid string) (domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	name := fmt.Sprintf("%s#%d", uid, len(f.subs))
	s := &fakeSub{
		name:  name,
		snaps: make(chan []domain.Task, 4),
		errs:  make(chan error, 4),
		store: f,
	}
	f.subs = append(f.subs, s)
	f.order = append(f.order, "open:"+name)
	return s, nil
}

func (f *fakeStore) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if !s.closed {
			n++
		}
	}
	return n
}

func task(id, created string) domain.Task {
	return domain.Task{ID: id, Text: "t-" + id, Category: domain.CategoryOther, CreatedAt: created}
}

func recvUpdate(t *testing.T, m *Mirror) []domain.Task {
	t.Helper()
	select {
	case s := <-m.Updates():
		return s
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for snapshot update")
		return nil
	}
}

func TestMirror_SnapshotReplacementIsTotal(t *testing.T) {
	fs := &fakeStore{}
	m := New(fs, zap.NewNop())
	if err := m.Activate(context.Background(), "u1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer m.Deactivate()

	fs.subs[0].snaps <- []domain.Task{task("a", "2026-09-01"), task("b", "2026-08-30")}
	recvUpdate(t, m)

	fs.subs[0].snaps <- []domain.Task{task("c", "2026-09-01")}
	recvUpdate(t, m)

	got := m.Snapshot()
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("snapshot must equal the last push exactly, got %+v", got)
	}
}

func TestMirror_SubscriptionExclusivity(t *testing.T) {
	fs := &fakeStore{}
	m := New(fs, zap.NewNop())
	ctx := context.Background()

	_ = m.Activate(ctx, "a")
	_ = m.Activate(ctx, "b")
	_ = m.Activate(ctx, "a")
	defer m.Deactivate()

	if n := fs.liveCount(); n != 1 {
		t.Fatalf("expected exactly one live subscription, got %d", n)
	}
	want := []string{"open:a#0", "close:a#0", "open:b#1", "close:b#1", "open:a#2"}
	if len(fs.order) != len(want) {
		t.Fatalf("order=%v want=%v", fs.order, want)
	}
	for i := range want {
		if fs.order[i] != want[i] {
			t.Fatalf("order[%d]=%q want=%q (full=%v)", i, fs.order[i], want[i], fs.order)
		}
	}
}

func TestMirror_IdentitySwitchDropsOldSnapshot(t *testing.T) {
	fs := &fakeStore{}
	m := New(fs, zap.NewNop())
	ctx := context.Background()

	_ = m.Activate(ctx, "a")
	fs.subs[0].snaps <- []domain.Task{task("a1", "2026-09-01")}
	recvUpdate(t, m)

	_ = m.Activate(ctx, "b")
	defer m.Deactivate()
	if got := m.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot must be cleared on identity switch, got %+v", got)
	}

	// 旧订阅的迟到推送不得进入新身份的镜像
	fs.subs[0].snaps <- []domain.Task{task("a2", "2026-09-01")}
	time.Sleep(50 * time.Millisecond)
	if got := m.Snapshot(); len(got) != 0 {
		t.Fatalf("late push from closed subscription applied: %+v", got)
	}
}

func TestMirror_DeactivateClearsAndSuppressesInFlight(t *testing.T) {
	fs := &fakeStore{}
	m := New(fs, zap.NewNop())

	_ = m.Activate(context.Background(), "u1")
	fs.subs[0].snaps <- []domain.Task{task("a", "2026-09-01")}
	recvUpdate(t, m)

	m.Deactivate()
	if got := m.Snapshot(); len(got) != 0 {
		t.Fatalf("deactivate must clear the snapshot, got %+v", got)
	}
	if !fs.subs[0].closed {
		t.Fatalf("deactivate must close the subscription")
	}

	fs.subs[0].snaps <- []domain.Task{task("b", "2026-09-01")}
	time.Sleep(50 * time.Millisecond)
	if got := m.Snapshot(); len(got) != 0 {
		t.Fatalf("in-flight push applied after deactivate: %+v", got)
	}

	m.Deactivate() // 幂等
}

func TestMirror_ErrorKeepsLastGoodSnapshot(t *testing.T) {
	fs := &fakeStore{}
	m := New(fs, zap.NewNop())
	_ = m.Activate(context.Background(), "u1")
	defer m.Deactivate()

	fs.subs[0].snaps <- []domain.Task{task("a", "2026-09-01")}
	recvUpdate(t, m)

	fs.subs[0].errs <- errors.New("permission denied")
	select {
	case <-m.Errs():
	case <-time.After(time.Second):
		t.Fatalf("subscription error not surfaced")
	}

	if m.Loading() {
		t.Fatalf("loading flag must be cleared on error")
	}
	if got := m.Snapshot(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("last good snapshot must be retained on error, got %+v", got)
	}
	if m.LastErr() == nil {
		t.Fatalf("last error should be recorded")
	}
}

// 写入完成 ≠ 镜像已更新：只有后续推送（回声）才会让镜像包含新任务
func TestMirror_MutationDoesNotSelfApply(t *testing.T) {
	fs := &fakeStore{}
	m := New(fs, zap.NewNop())
	_ = m.Activate(context.Background(), "u1")
	defer m.Deactivate()

	fs.subs[0].snaps <- []domain.Task{}
	recvUpdate(t, m)

	d := dispatch.New(fs, func() *domain.Identity { return &domain.Identity{UID: "u1"} }, zap.NewNop())
	if _, err := d.Create(context.Background(), domain.Draft{Text: "new task", Category: domain.CategoryWork}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := m.Snapshot(); len(got) != 0 {
		t.Fatalf("mirror must not reflect a mutation before the subscription echo, got %+v", got)
	}

	fs.subs[0].snaps <- []domain.Task{task("x", "2026-09-01")}
	recvUpdate(t, m)
	if got := m.Snapshot(); len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("echo push not applied, got %+v", got)
	}
}

func TestMirror_WatchOpenFailure(t *testing.T) {
	fs := &fakeStore{watchErr: errors.New("transport down")}
	m := New(fs, zap.NewNop())
	if err := m.Activate(context.Background(), "u1"); err == nil {
		t.Fatalf("expected watch open error")
	}
	if m.Loading() {
		t.Fatalf("loading must not stay set after a failed activate")
	}
}
