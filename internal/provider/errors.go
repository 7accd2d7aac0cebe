package provider

import "fmt"

// Kind 提供方错误的闭集。动态探错误形状的做法在这里收敛成显式标签，
// 调用方对已知集合做穷举匹配，未知的落到 KindUnknown 兜底。
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredential
	KindEmailInUse
	KindWeakPassword
	KindInvalidEmail
	KindInteractionCancelled // 联合登录交互被取消 / 中断
	KindAccountExists        // 同邮箱已用其它登录方式注册
	KindProviderDisabled
)

// Message 面向用户的文案；任何错误路径都必须给用户一句话
func (k Kind) Message() string {
	switch k {
	case KindInvalidCredential:
		return "Invalid email or password."
	case KindEmailInUse:
		return "Email already in use. Try logging in or use a different email."
	case KindWeakPassword:
		return "Password should be at least 6 characters."
	case KindInvalidEmail:
		return "Please enter a valid email address."
	case KindInteractionCancelled:
		return "Sign-in was cancelled. Please try again."
	case KindAccountExists:
		return "An account with this email already exists with a different sign-in method. Please use that method or reset your password."
	case KindProviderDisabled:
		return "This sign-in method is not enabled."
	default:
		return "An unexpected error occurred during authentication."
	}
}

// AuthError 在提供方边界产生的带标签错误
type AuthError struct {
	Kind Kind
	Code string // 机器可读代码，如 "auth/user-not-found"
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

func authErr(k Kind, code string) *AuthError {
	return &AuthError{Kind: k, Code: code}
}

func wrapErr(code string, err error) *AuthError {
	return &AuthError{Kind: KindUnknown, Code: code, Err: err}
}
