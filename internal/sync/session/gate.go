package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"go-task-mirror/internal/domain"
)

type State int

const (
	StateUnknown State = iota // 初始，未收到首个认证回调
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Change 身份迁移通知
type Change struct {
	State    State
	Identity *domain.Identity
}

var ErrAlreadyStarted = errors.New("session gate already started")

// Gate 持有当前身份并广播其生命周期迁移。
// 状态机：Unknown → (Authenticated | Anonymous)，之后两者互相切换；没有终态。
type Gate struct {
	provider domain.AuthProvider
	log      *zap.Logger

	mu         sync.Mutex
	state      State
	identity   *domain.Identity
	ch         chan Change
	cancelFeed func()
	closed     bool
}

func New(p domain.AuthProvider, log *zap.Logger) *Gate {
	return &Gate{
		provider: p,
		log:      log,
		state:    StateUnknown,
		ch:       make(chan Change, 8),
	}
}

// Start 确定初始身份并接入提供方事件流。
// 首个迁移（Unknown → 有/无身份）恰好通知一次；id 为 nil 表示匿名启动。
// 事件流打不开时门本身照常工作，错误上报给调用方。
func (g *Gate) Start(ctx context.Context, id *domain.Identity) error {
	g.mu.Lock()
	if g.state != StateUnknown {
		g.mu.Unlock()
		return ErrAlreadyStarted
	}
	if id == nil {
		g.applyLocked(StateAnonymous, nil)
		g.mu.Unlock()
		return nil
	}
	g.applyLocked(StateAuthenticated, id)
	g.mu.Unlock()

	events, cancel, err := g.provider.IdentityEvents(ctx, id.UID)
	if err != nil {
		g.log.Warn("identity event feed unavailable", zap.String("uid", id.UID), zap.Error(err))
		return err
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		cancel()
		return nil
	}
	g.cancelFeed = cancel
	g.mu.Unlock()

	go g.consume(events)
	return nil
}

func (g *Gate) consume(events <-chan domain.IdentityEvent) {
	for ev := range events {
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			return
		}
		if ev.SignedIn {
			ident := ev.Identity
			if ident == nil {
				ident = &domain.Identity{UID: ev.UID}
			}
			g.applyLocked(StateAuthenticated, ident)
		} else {
			g.applyLocked(StateAnonymous, nil)
		}
		g.mu.Unlock()
	}
}

// applyLocked 只在状态真正变化时投递，保证每次实际迁移恰好一条通知
func (g *Gate) applyLocked(s State, id *domain.Identity) {
	if g.state == s && sameIdentity(g.identity, id) {
		return
	}
	g.state, g.identity = s, id
	select {
	case g.ch <- Change{State: s, Identity: id}:
	default:
		g.log.Warn("session change dropped, observer not draining",
			zap.String("state", s.String()))
	}
}

func sameIdentity(a, b *domain.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID
}

// Observe 身份迁移通知通道（含初始通知）
func (g *Gate) Observe() <-chan Change { return g.ch }

func (g *Gate) Current() *domain.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAuthenticated {
		return nil
	}
	return g.identity
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SignOut 让当前会话失效。远端调用失败只上报，本地仍然转为无身份。
func (g *Gate) SignOut(ctx context.Context) error {
	g.mu.Lock()
	id := g.identity
	g.mu.Unlock()

	var err error
	if id != nil {
		if err = g.provider.SignOut(ctx, id.UID); err != nil {
			g.log.Warn("remote sign-out failed", zap.String("uid", id.UID), zap.Error(err))
		}
	}
	g.mu.Lock()
	if !g.closed {
		g.applyLocked(StateAnonymous, nil)
	}
	g.mu.Unlock()
	return err
}

// Close 停止观察提供方事件。幂等。
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if g.cancelFeed != nil {
		g.cancelFeed()
		g.cancelFeed = nil
	}
}
