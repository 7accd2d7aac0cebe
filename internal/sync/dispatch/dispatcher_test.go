package dispatch

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"go-task-mirror/internal/domain"
)

type call struct {
	op  string
	uid string
	id  string
}

type recordingStore struct {
	calls     []call
	lastDraft domain.Draft
	err       error
}

func (r *recordingStore) Add(_ context.Context, uid string, d domain.Draft) (string, error) {
	r.calls = append(r.calls, call{op: "add", uid: uid})
	if r.err != nil {
		return "", r.err
	}
	r.lastDraft = d
	return "generated-id", nil
}
func (r *recordingStore) Update(_ context.Context, uid string, t domain.Task) error {
	r.calls = append(r.calls, call{op: "update", uid: uid, id: t.ID})
	return r.err
}
func (r *recordingStore) Delete(_ context.Context, uid, id string) error {
	r.calls = append(r.calls, call{op: "delete", uid: uid, id: id})
	return r.err
}
func (r *recordingStore) List(context.Context, string) ([]domain.Task, error) { return nil, nil }
func (r *recordingStore) Watch(context.Context, string) (domain.Subscription, error) {
	return nil, errors.New("not implemented")
}

func identityFn(uid string) func() *domain.Identity {
	if uid == "" {
		return func() *domain.Identity { return nil }
	}
	return func() *domain.Identity { return &domain.Identity{UID: uid} }
}

func TestCreate_NoIdentity(t *testing.T) {
	rs := &recordingStore{}
	d := New(rs, identityFn(""), zap.NewNop())
	if _, err := d.Create(context.Background(), domain.Draft{Text: "x", Category: domain.CategoryWork}); err != domain.ErrNoIdentity {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if len(rs.calls) != 0 {
		t.Fatalf("store must not be reached without an identity: %v", rs.calls)
	}
}

func TestCreate_ValidationBeforeRemoteCall(t *testing.T) {
	rs := &recordingStore{}
	d := New(rs, identityFn("u1"), zap.NewNop())
	if _, err := d.Create(context.Background(), domain.Draft{Text: "  ", Category: domain.CategoryWork}); err != domain.ErrEmptyText {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if len(rs.calls) != 0 {
		t.Fatalf("invalid draft must be rejected before any remote call: %v", rs.calls)
	}
}

func TestCreate_DefaultsAndID(t *testing.T) {
	rs := &recordingStore{}
	d := New(rs, identityFn("u1"), zap.NewNop())
	id, err := d.Create(context.Background(), domain.Draft{Text: "buy milk", Category: domain.CategoryShopping})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "generated-id" {
		t.Fatalf("store-assigned id not returned, got=%q", id)
	}
	if rs.lastDraft.CreatedAt != domain.Today() {
		t.Fatalf("createdAt should default to today, got=%q", rs.lastDraft.CreatedAt)
	}
	if rs.lastDraft.Completed {
		t.Fatalf("completed should default to false")
	}
}

func TestUpdate_MissingID(t *testing.T) {
	rs := &recordingStore{}
	d := New(rs, identityFn("u1"), zap.NewNop())
	err := d.Update(context.Background(), domain.Task{Text: "x", Category: domain.CategoryWork})
	if err != domain.ErrMissingID {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if len(rs.calls) != 0 {
		t.Fatalf("store must not be reached without an id: %v", rs.calls)
	}
}

func TestDelete_ScopedToIdentity(t *testing.T) {
	rs := &recordingStore{}
	d := New(rs, identityFn("u1"), zap.NewNop())
	if err := d.Delete(context.Background(), "t9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(rs.calls) != 1 || rs.calls[0] != (call{op: "delete", uid: "u1", id: "t9"}) {
		t.Fatalf("unexpected store calls: %v", rs.calls)
	}
}

func TestRemoteFailureIsWrapped(t *testing.T) {
	rs := &recordingStore{err: errors.New("boom")}
	d := New(rs, identityFn("u1"), zap.NewNop())
	if _, err := d.Create(context.Background(), domain.Draft{Text: "x", Category: domain.CategoryWork}); err == nil {
		t.Fatalf("expected remote failure to be reported")
	}
}
