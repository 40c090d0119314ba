package router

import (
	"fmt"
	"strings"

	"github.com/refmart/refmart/internal/cache"
	"github.com/refmart/refmart/internal/config"
	adminhandlers "github.com/refmart/refmart/internal/http/handlers/admin"
	publichandlers "github.com/refmart/refmart/internal/http/handlers/public"
	"github.com/refmart/refmart/internal/logger"
	"github.com/refmart/refmart/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "rm"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "登录尝试过于频繁",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "登录尝试过于频繁",
	}
	payoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:payout", redisPrefix),
		WindowSeconds: cfg.Security.PayoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.PayoutRateLimit.MaxAttempts,
		Message:       "提现申请过于频繁",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/products", publicHandler.ListProducts)
			public.GET("/products/:slug", publicHandler.GetProductBySlug)
			public.POST("/referral/click", publicHandler.TrackReferralClick)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.UserRegister)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.UserLogin)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.UserProfile)
			user.POST("/orders", publicHandler.CreateOrder)
			user.GET("/orders", publicHandler.ListMyOrders)
			user.GET("/orders/:id", publicHandler.GetMyOrder)
			user.POST("/orders/:id/cancel", publicHandler.CancelMyOrder)
			user.POST("/agent/open", publicHandler.OpenAgent)
			user.GET("/agent/dashboard", publicHandler.GetAgentDashboard)
			user.GET("/agent/balance", publicHandler.GetAgentBalance)
			user.GET("/agent/commissions", publicHandler.ListMyCommissions)
			user.GET("/agent/payouts", publicHandler.ListMyPayouts)
			user.GET("/agent/payouts/:id", publicHandler.GetMyPayout)
			user.POST("/agent/payouts", RateLimitMiddleware(redisClient, payoutRule, KeyByUserID), publicHandler.RequestPayout)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.Login)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.GET("/profile", adminHandler.Profile)

				// 商品管理
				authorized.GET("/products", adminHandler.ListAdminProducts)
				authorized.POST("/products", adminHandler.CreateProduct)
				authorized.PUT("/products/:id", adminHandler.UpdateProduct)
				authorized.DELETE("/products/:id", adminHandler.DeleteProduct)

				// 订单管理
				authorized.GET("/orders", adminHandler.ListOrders)
				authorized.GET("/orders/:id", adminHandler.GetOrder)
				authorized.POST("/orders/:id/pay", adminHandler.MarkOrderPaid)
				authorized.POST("/orders/:id/cancel", adminHandler.CancelOrder)
				authorized.POST("/orders/:id/complete", adminHandler.CompleteOrder)

				// 代理管理
				authorized.GET("/agents", adminHandler.ListAgents)
				authorized.PATCH("/agents/:id/status", adminHandler.UpdateAgentStatus)
				authorized.PATCH("/agents/:id/rate", adminHandler.UpdateAgentRate)

				// 佣金与提现
				authorized.GET("/commissions", adminHandler.ListCommissions)
				authorized.GET("/payouts", adminHandler.ListPayouts)
				authorized.GET("/payouts/:id", adminHandler.GetPayout)
				authorized.POST("/payouts/:id/resolve", adminHandler.ResolvePayout)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
