package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID 文档 / 用户主键，36 位以内
func NewID() string { return uuid.NewString() }

// NewToken 一次性令牌（密码重置等），去掉连字符便于拼 URL
func NewToken() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }
