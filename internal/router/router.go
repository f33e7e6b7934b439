package router

import (
	"fmt"
	"strings"

	"github.com/rewardhub/internal/cache"
	"github.com/rewardhub/internal/config"
	adminhandlers "github.com/rewardhub/internal/http/handlers/admin"
	publichandlers "github.com/rewardhub/internal/http/handlers/public"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按引擎/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "rh"
	}
	redisClient := cache.Client()
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "too many login attempts",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 发放引擎接口
		engine := apiV1.Group("/engine")
		{
			engine.POST("/preflight", publicHandler.PreflightCheck)
			engine.POST("/provision", publicHandler.ProvisionReward)
			engine.POST("/redeem", publicHandler.RedeemCard)
			engine.GET("/error-codes", publicHandler.ErrorCatalog)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.Login)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.GET("/me", adminHandler.Profile)

				// 发放治理
				authorized.POST("/revoke", adminHandler.RevokeAssignment)
				authorized.GET("/health", adminHandler.GetHealth)

				// 库存管理
				authorized.POST("/inventory/import", adminHandler.ImportInventoryCSV)
				authorized.GET("/inventory/stats", adminHandler.GetInventoryStats)
				authorized.GET("/inventory/batches", adminHandler.GetInventoryBatches)

				// 额度与计费
				authorized.POST("/credits", adminHandler.GrantCredits)
				authorized.GET("/credits", adminHandler.GetCampaignCredits)
				authorized.GET("/credits/ledger", adminHandler.GetCampaignLedger)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
