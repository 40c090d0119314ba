package main

import (
	"time"

	"github.com/refmart/refmart/internal/config"
	"github.com/refmart/refmart/internal/constants"
	"github.com/refmart/refmart/internal/logger"
	"github.com/refmart/refmart/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认管理员
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	// 演示用户
	passwordHash, err := bcrypt.GenerateFromPassword([]byte("demo12345"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}
	users := []models.User{
		{Email: "agent@example.com", PasswordHash: string(passwordHash), DisplayName: "示例代理", Status: constants.UserStatusActive},
		{Email: "buyer@example.com", PasswordHash: string(passwordHash), DisplayName: "示例买家", Status: constants.UserStatusActive},
	}
	for i := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", users[i].Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&users[i]).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", users[i].Email, err)
			} else {
				stdLog.Printf("Created user: %s", users[i].Email)
			}
		} else {
			users[i] = existing
			stdLog.Printf("User already exists: %s", users[i].Email)
		}
	}
	agentUser := users[0]
	buyerUser := users[1]

	// 演示代理档案
	profile := models.AgentProfile{
		UserID:       agentUser.ID,
		ReferralCode: "DEMO2345",
		Status:       constants.AgentProfileStatusActive,
	}
	var existingProfile models.AgentProfile
	if err := models.DB.Where("user_id = ?", agentUser.ID).First(&existingProfile).Error; err != nil {
		if err := models.DB.Create(&profile).Error; err != nil {
			stdLog.Printf("Failed to create agent profile: %v", err)
		} else {
			stdLog.Printf("Created agent profile: %s", profile.ReferralCode)
		}
	} else {
		profile = existingProfile
		stdLog.Printf("Agent profile already exists: %s", profile.ReferralCode)
	}

	// 演示商品
	products := []models.Product{
		{
			Slug:              "wireless-earphones",
			Title:             "无线蓝牙耳机",
			Description:       "高品质音质，长续航",
			PriceAmount:       models.NewMoneyFromDecimal(decimal.NewFromFloat(99.99)),
			IsReferralEnabled: true,
			IsActive:          true,
			SortOrder:         30,
		},
		{
			Slug:              "smart-watch",
			Title:             "智能手表",
			Description:       "健康监测，消息提醒",
			PriceAmount:       models.NewMoneyFromDecimal(decimal.NewFromFloat(199.00)),
			IsReferralEnabled: true,
			IsActive:          true,
			SortOrder:         20,
		},
		{
			Slug:              "gift-card",
			Title:             "电子礼品卡",
			Description:       "不参与推广返利",
			PriceAmount:       models.NewMoneyFromDecimal(decimal.NewFromFloat(50.00)),
			IsReferralEnabled: false,
			IsActive:          true,
			SortOrder:         10,
		},
	}
	for i := range products {
		var existing models.Product
		if err := models.DB.Where("slug = ?", products[i].Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&products[i]).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", products[i].Slug, err)
			} else {
				stdLog.Printf("Created product: %s", products[i].Slug)
			}
		} else {
			products[i] = existing
			stdLog.Printf("Product already exists: %s", products[i].Slug)
		}
	}

	// 演示订单（已支付，带归因）与对应佣金
	var orderCount int64
	models.DB.Model(&models.Order{}).Count(&orderCount)
	if orderCount == 0 {
		now := time.Now()
		paidAt := now.Add(-48 * time.Hour)
		order := models.Order{
			OrderNo:        "RM" + paidAt.Format("20060102150405") + "000001",
			UserID:         buyerUser.ID,
			Status:         constants.OrderStatusPaid,
			Currency:       "CNY",
			TotalAmount:    models.NewMoneyFromDecimal(decimal.NewFromFloat(298.99)),
			AgentProfileID: &profile.ID,
			ReferralCode:   profile.ReferralCode,
			PaidAt:         &paidAt,
			Items: []models.OrderItem{
				{
					ProductID:  products[0].ID,
					Title:      products[0].Title,
					UnitPrice:  products[0].PriceAmount,
					Quantity:   1,
					TotalPrice: products[0].PriceAmount,
				},
				{
					ProductID:  products[1].ID,
					Title:      products[1].Title,
					UnitPrice:  products[1].PriceAmount,
					Quantity:   1,
					TotalPrice: products[1].PriceAmount,
				},
			},
		}
		if err := models.DB.Create(&order).Error; err != nil {
			stdLog.Fatalf("Failed to create demo order: %v", err)
		}
		stdLog.Printf("Created order: %s", order.OrderNo)

		rate := decimal.NewFromFloat(cfg.Ledger.DefaultCommissionRate)
		base := order.TotalAmount.Decimal
		commission := models.Commission{
			UserID:      agentUser.ID,
			OrderID:     order.ID,
			BaseAmount:  models.NewMoneyFromDecimal(base),
			RatePercent: models.NewMoneyFromDecimal(rate),
			Amount:      models.NewMoneyFromDecimal(base.Mul(rate).Div(decimal.NewFromInt(100))),
			Status:      models.CommissionStatusApproved,
		}
		if err := models.DB.Create(&commission).Error; err != nil {
			stdLog.Printf("Failed to create demo commission: %v", err)
		} else {
			stdLog.Printf("Created commission: order=%s amount=%s", order.OrderNo, commission.Amount.String())
		}
	} else {
		stdLog.Printf("Orders already exist, skip demo order")
	}

	stdLog.Printf("Seed finished")
}
