package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/refmart/refmart/internal/config"
	"github.com/refmart/refmart/internal/constants"
	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupOrderServiceTest(t *testing.T) (*OrderService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:order_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.AgentProfile{},
		&models.ReferralClick{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Commission{},
		&models.Payout{},
		&models.PayoutCommission{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := config.LedgerConfig{
		MinPayoutThreshold:    "50",
		DefaultCommissionRate: 10,
		ConfirmDays:           0,
	}
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	userRepo := repository.NewUserRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	ledger := NewLedgerService(ledgerRepo, userRepo, cfg)
	referral := NewReferralService(agentRepo, ledgerRepo, userRepo, orderRepo, ledger, cfg)
	return NewOrderService(orderRepo, productRepo, userRepo, referral, nil), db
}

func createOrderTestProduct(t *testing.T, db *gorm.DB, slug string, price float64, referralEnabled, active bool) models.Product {
	t.Helper()

	row := models.Product{
		Slug:              slug,
		Title:             slug,
		PriceAmount:       models.NewMoneyFromDecimal(decimal.NewFromFloat(price)),
		IsReferralEnabled: referralEnabled,
		IsActive:          active,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return row
}

func TestCreateOrderMergesItemsAndSnapshotsAttribution(t *testing.T) {
	svc, db := setupOrderServiceTest(t)

	agent := createReferralTestUser(t, db, "agent-order@example.com")
	buyer := createReferralTestUser(t, db, "buyer-order@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTQ2345", constants.AgentProfileStatusActive)
	product := createOrderTestProduct(t, db, "earphones", 99.99, true, true)

	order, err := svc.CreateOrder(buyer.ID, CreateOrderInput{
		Items: []CreateOrderItemInput{
			{ProductID: product.ID, Quantity: 1},
			{ProductID: product.ID, Quantity: 2},
		},
		ReferralCode: profile.ReferralCode,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", order.Status)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 3 {
		t.Fatalf("expected merged single item qty 3, got %+v", order.Items)
	}
	want := decimal.NewFromFloat(299.97)
	if !order.TotalAmount.Decimal.Equal(want) {
		t.Fatalf("expected total %s, got %s", want.String(), order.TotalAmount.String())
	}
	if order.AgentProfileID == nil || *order.AgentProfileID != profile.ID {
		t.Fatalf("expected attribution snapshot %d, got %+v", profile.ID, order.AgentProfileID)
	}
	if order.ReferralCode != profile.ReferralCode {
		t.Fatalf("expected referral code snapshot %s, got %s", profile.ReferralCode, order.ReferralCode)
	}
}

func TestCreateOrderSkipsAttributionWithoutReferralProducts(t *testing.T) {
	svc, db := setupOrderServiceTest(t)

	agent := createReferralTestUser(t, db, "agent-noref@example.com")
	buyer := createReferralTestUser(t, db, "buyer-noref@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTN2345", constants.AgentProfileStatusActive)
	product := createOrderTestProduct(t, db, "gift-card", 50, false, true)

	order, err := svc.CreateOrder(buyer.ID, CreateOrderInput{
		Items:        []CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ReferralCode: profile.ReferralCode,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.AgentProfileID != nil {
		t.Fatalf("expected no attribution for non-referral products, got %+v", order.AgentProfileID)
	}
}

func TestCreateOrderRejectsInactiveProduct(t *testing.T) {
	svc, db := setupOrderServiceTest(t)

	buyer := createReferralTestUser(t, db, "buyer-inactive@example.com")
	product := createOrderTestProduct(t, db, "retired", 10, true, false)

	_, err := svc.CreateOrder(buyer.ID, CreateOrderInput{
		Items: []CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestMarkOrderPaidAccruesCommissionSync(t *testing.T) {
	svc, db := setupOrderServiceTest(t)

	agent := createReferralTestUser(t, db, "agent-paid@example.com")
	buyer := createReferralTestUser(t, db, "buyer-paid@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTW2345", constants.AgentProfileStatusActive)
	product := createOrderTestProduct(t, db, "watch", 200, true, true)

	order, err := svc.CreateOrder(buyer.ID, CreateOrderInput{
		Items:        []CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ReferralCode: profile.ReferralCode,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	paid, err := svc.MarkOrderPaid(order.ID)
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatalf("expected paid_at stamped")
	}

	// 无队列时同步计提
	var commission models.Commission
	if err := db.Where("order_id = ?", order.ID).First(&commission).Error; err != nil {
		t.Fatalf("load commission failed: %v", err)
	}
	if !commission.Amount.Decimal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected commission 20.00, got %s", commission.Amount.String())
	}

	// 重复支付为非法流转
	if _, err := svc.MarkOrderPaid(order.ID); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("expected ErrOrderStatusInvalid on double pay, got %v", err)
	}
}

func TestCancelPaidOrderBlocksCommission(t *testing.T) {
	svc, db := setupOrderServiceTest(t)

	agent := createReferralTestUser(t, db, "agent-cancelpaid@example.com")
	buyer := createReferralTestUser(t, db, "buyer-cancelpaid@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTZ2345", constants.AgentProfileStatusActive)
	product := createOrderTestProduct(t, db, "camera", 400, true, true)

	order, err := svc.CreateOrder(buyer.ID, CreateOrderInput{
		Items:        []CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ReferralCode: profile.ReferralCode,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := svc.MarkOrderPaid(order.ID); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	canceled, err := svc.CancelOrder(order.ID, "refund")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if canceled.Status != constants.OrderStatusCanceled {
		t.Fatalf("expected canceled, got %s", canceled.Status)
	}

	var commission models.Commission
	if err := db.Where("order_id = ?", order.ID).First(&commission).Error; err != nil {
		t.Fatalf("load commission failed: %v", err)
	}
	if commission.Status != models.CommissionStatusBlocked {
		t.Fatalf("expected blocked commission after cancel, got %s", commission.Status)
	}
}

func TestCompleteOrderTransitions(t *testing.T) {
	svc, db := setupOrderServiceTest(t)

	buyer := createReferralTestUser(t, db, "buyer-complete@example.com")
	product := createOrderTestProduct(t, db, "keyboard", 30, true, true)

	order, err := svc.CreateOrder(buyer.ID, CreateOrderInput{
		Items: []CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// 未支付不可完成
	if _, err := svc.CompleteOrder(order.ID); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("expected ErrOrderStatusInvalid for pending complete, got %v", err)
	}

	if _, err := svc.MarkOrderPaid(order.ID); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	completed, err := svc.CompleteOrder(order.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != constants.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	// 已完成订单不可取消
	if _, err := svc.CancelOrder(order.ID, "late"); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("expected ErrOrderStatusInvalid for completed cancel, got %v", err)
	}
}

func TestGetUserOrderOwnership(t *testing.T) {
	svc, db := setupOrderServiceTest(t)

	owner := createReferralTestUser(t, db, "order-owner@example.com")
	other := createReferralTestUser(t, db, "order-other@example.com")
	product := createOrderTestProduct(t, db, "mouse", 20, true, true)

	order, err := svc.CreateOrder(owner.ID, CreateOrderInput{
		Items: []CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if _, err := svc.GetUserOrder(other.ID, order.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign order, got %v", err)
	}
	got, err := svc.GetUserOrder(owner.ID, order.ID)
	if err != nil || got == nil {
		t.Fatalf("owner fetch failed: %v", err)
	}
}
