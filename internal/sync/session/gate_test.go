package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"go-task-mirror/internal/domain"
)

type fakeProvider struct {
	events      chan domain.IdentityEvent
	signOutErr  error
	signOutUIDs []string
	cancelled   bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(chan domain.IdentityEvent, 4)}
}

func (f *fakeProvider) SignInPassword(context.Context, string, string) (*domain.Identity, string, error) {
	return nil, "", nil
}
func (f *fakeProvider) Register(context.Context, string, string, string) (*domain.Identity, error) {
	return nil, nil
}
func (f *fakeProvider) SendPasswordReset(context.Context, string) error { return nil }
func (f *fakeProvider) SignInFederated(context.Context, string) (*domain.Identity, string, error) {
	return nil, "", nil
}
func (f *fakeProvider) SignOut(_ context.Context, uid string) error {
	f.signOutUIDs = append(f.signOutUIDs, uid)
	return f.signOutErr
}
func (f *fakeProvider) IdentityEvents(context.Context, string) (<-chan domain.IdentityEvent, func(), error) {
	return f.events, func() { f.cancelled = true }, nil
}

func recvChange(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for session change")
		return Change{}
	}
}

func TestGate_InitialNotification(t *testing.T) {
	g := New(newFakeProvider(), zap.NewNop())
	id := &domain.Identity{UID: "u1", Email: "jane@x.com"}
	if err := g.Start(context.Background(), id); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer g.Close()

	c := recvChange(t, g.Observe())
	if c.State != StateAuthenticated || c.Identity.UID != "u1" {
		t.Fatalf("expected initial authenticated change, got %+v", c)
	}
}

func TestGate_AnonymousStart(t *testing.T) {
	g := New(newFakeProvider(), zap.NewNop())
	if err := g.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer g.Close()

	c := recvChange(t, g.Observe())
	if c.State != StateAnonymous || c.Identity != nil {
		t.Fatalf("expected anonymous change, got %+v", c)
	}
	if g.Current() != nil {
		t.Fatalf("current identity should be nil when anonymous")
	}
}

func TestGate_ExactlyOncePerTransition(t *testing.T) {
	p := newFakeProvider()
	g := New(p, zap.NewNop())
	id := &domain.Identity{UID: "u1"}
	if err := g.Start(context.Background(), id); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer g.Close()
	recvChange(t, g.Observe()) // initial

	// 同身份重复登录事件不应再次通知
	p.events <- domain.IdentityEvent{UID: "u1", SignedIn: true, Identity: id}
	p.events <- domain.IdentityEvent{UID: "u1", SignedIn: false}

	c := recvChange(t, g.Observe())
	if c.State != StateAnonymous {
		t.Fatalf("expected single anonymous change, got %+v", c)
	}
	select {
	case extra := <-g.Observe():
		t.Fatalf("unexpected extra change: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGate_SignOutNotifiesEvenOnRemoteError(t *testing.T) {
	p := newFakeProvider()
	p.signOutErr = errors.New("network down")
	g := New(p, zap.NewNop())
	if err := g.Start(context.Background(), &domain.Identity{UID: "u1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer g.Close()
	recvChange(t, g.Observe())

	if err := g.SignOut(context.Background()); err == nil {
		t.Fatalf("expected remote error to be reported")
	}
	c := recvChange(t, g.Observe())
	if c.State != StateAnonymous {
		t.Fatalf("sign-out must still emit anonymous change, got %+v", c)
	}
	if len(p.signOutUIDs) != 1 || p.signOutUIDs[0] != "u1" {
		t.Fatalf("provider sign-out not attempted: %v", p.signOutUIDs)
	}
}

func TestGate_StartTwice(t *testing.T) {
	g := New(newFakeProvider(), zap.NewNop())
	_ = g.Start(context.Background(), nil)
	defer g.Close()
	if err := g.Start(context.Background(), nil); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestGate_CloseCancelsFeed(t *testing.T) {
	p := newFakeProvider()
	g := New(p, zap.NewNop())
	_ = g.Start(context.Background(), &domain.Identity{UID: "u1"})
	g.Close()
	g.Close() // 幂等
	if !p.cancelled {
		t.Fatalf("close should cancel the provider event feed")
	}
}
