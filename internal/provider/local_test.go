package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go-task-mirror/internal/core/config"
)

// 校验类错误必须在任何仓储/远端调用之前返回，
// 所以零值 Local 就足够覆盖这些路径

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an auth error, got nil")
	}
	ae, ok := AsAuthError(err)
	if !ok {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	return ae.Kind
}

func TestSignInPassword_InvalidEmail(t *testing.T) {
	p := &Local{}
	_, _, err := p.SignInPassword(context.Background(), "not-an-email", "secret1")
	if k := kindOf(t, err); k != KindInvalidEmail {
		t.Fatalf("expected KindInvalidEmail, got %v", k)
	}
}

func TestSignInPassword_EmptyPassword(t *testing.T) {
	p := &Local{}
	_, _, err := p.SignInPassword(context.Background(), "jane@x.com", "")
	if k := kindOf(t, err); k != KindInvalidCredential {
		t.Fatalf("expected KindInvalidCredential, got %v", k)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	p := &Local{}
	_, err := p.Register(context.Background(), "jane@x.com", "12345", "Jane")
	if k := kindOf(t, err); k != KindWeakPassword {
		t.Fatalf("expected KindWeakPassword, got %v", k)
	}
}

func TestSendPasswordReset_InvalidEmail(t *testing.T) {
	p := &Local{}
	err := p.SendPasswordReset(context.Background(), "nope")
	if k := kindOf(t, err); k != KindInvalidEmail {
		t.Fatalf("expected KindInvalidEmail, got %v", k)
	}
}

func TestSignInFederated_Disabled(t *testing.T) {
	p := &Local{}
	_, _, err := p.SignInFederated(context.Background(), "some-token")
	if k := kindOf(t, err); k != KindProviderDisabled {
		t.Fatalf("expected KindProviderDisabled, got %v", k)
	}
}

func TestSignInFederated_EmptyTokenIsCancelled(t *testing.T) {
	p := &Local{cfg: config.Auth{FederatedEnabled: true}}
	_, _, err := p.SignInFederated(context.Background(), "  ")
	if k := kindOf(t, err); k != KindInteractionCancelled {
		t.Fatalf("expected KindInteractionCancelled, got %v", k)
	}
}

func TestKindMessages_AlwaysNonEmpty(t *testing.T) {
	kinds := []Kind{
		KindUnknown, KindInvalidCredential, KindEmailInUse, KindWeakPassword,
		KindInvalidEmail, KindInteractionCancelled, KindAccountExists, KindProviderDisabled,
	}
	seen := map[string]Kind{}
	for _, k := range kinds {
		msg := k.Message()
		if msg == "" {
			t.Fatalf("kind %v has no user-facing message", k)
		}
		if prev, dup := seen[msg]; dup && prev != KindUnknown {
			t.Fatalf("kinds %v and %v share message %q", prev, k, msg)
		}
		seen[msg] = k
	}
	// 闭集之外的值必须落到兜底文案
	if Kind(99).Message() != KindUnknown.Message() {
		t.Fatalf("out-of-set kind must use the catch-all message")
	}
}

func TestAsAuthError(t *testing.T) {
	base := authErr(KindEmailInUse, "auth/email-already-in-use")
	wrapped := fmt.Errorf("register: %w", base)
	ae, ok := AsAuthError(wrapped)
	if !ok || ae.Kind != KindEmailInUse {
		t.Fatalf("expected wrapped auth error to be matched, got %v ok=%v", ae, ok)
	}
	if _, ok := AsAuthError(errors.New("plain")); ok {
		t.Fatalf("plain errors must not match")
	}
}
