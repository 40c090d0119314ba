package service

import (
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

func setupReferralServiceTest(t *testing.T, cfg config.LedgerConfig) (*ReferralService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:referral_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	agentRepo := repository.NewAgentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	ledger := NewLedgerService(ledgerRepo, userRepo, cfg)
	return NewReferralService(agentRepo, ledgerRepo, userRepo, orderRepo, ledger, cfg), db
}

func defaultReferralTestConfig() config.LedgerConfig {
	return config.LedgerConfig{
		MinPayoutThreshold:    "50",
		DefaultCommissionRate: 10,
		ConfirmDays:           0,
	}
}

func createReferralTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()

	row := models.User{
		Email:        email,
		PasswordHash: "hash",
		DisplayName:  "tester",
		Status:       constants.UserStatusActive,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return row
}

func createReferralTestProfile(t *testing.T, db *gorm.DB, userID uint, code, status string) models.AgentProfile {
	t.Helper()

	row := models.AgentProfile{
		UserID:       userID,
		ReferralCode: code,
		Status:       status,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create agent profile failed: %v", err)
	}
	return row
}

func createReferralTestClick(t *testing.T, db *gorm.DB, profileID uint, visitorKey string, createdAt time.Time) {
	t.Helper()

	row := models.ReferralClick{
		AgentProfileID: profileID,
		VisitorKey:     visitorKey,
		LandingPath:    "/",
		CreatedAt:      createdAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create referral click failed: %v", err)
	}
}

func createReferralTestPaidOrder(t *testing.T, db *gorm.DB, buyerID uint, profileID *uint, total float64) models.Order {
	t.Helper()

	paidAt := time.Now()
	row := models.Order{
		OrderNo:        fmt.Sprintf("RM%d", time.Now().UnixNano()),
		UserID:         buyerID,
		Status:         constants.OrderStatusPaid,
		Currency:       "CNY",
		TotalAmount:    models.NewMoneyFromDecimal(decimal.NewFromFloat(total)),
		AgentProfileID: profileID,
		PaidAt:         &paidAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return row
}

func TestOpenAgentIdempotent(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	user := createReferralTestUser(t, db, "open@example.com")
	first, err := svc.OpenAgent(user.ID)
	if err != nil {
		t.Fatalf("open agent failed: %v", err)
	}
	if first == nil || len(first.ReferralCode) != 8 {
		t.Fatalf("expected 8-char referral code, got %+v", first)
	}
	if first.Status != constants.AgentProfileStatusActive {
		t.Fatalf("expected active profile, got %s", first.Status)
	}

	second, err := svc.OpenAgent(user.ID)
	if err != nil {
		t.Fatalf("reopen agent failed: %v", err)
	}
	if second.ID != first.ID || second.ReferralCode != first.ReferralCode {
		t.Fatalf("expected same profile on reopen, got %+v vs %+v", first, second)
	}
}

func TestTrackClickDedupeWithinWindow(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	user := createReferralTestUser(t, db, "click@example.com")
	profile := createReferralTestProfile(t, db, user.ID, "CLICK234", constants.AgentProfileStatusActive)

	input := ReferralTrackClickInput{
		ReferralCode: "click234",
		VisitorKey:   "visitor-dedupe",
		LandingPath:  "/products/smart-watch",
	}
	if err := svc.TrackClick(input); err != nil {
		t.Fatalf("first click failed: %v", err)
	}
	if err := svc.TrackClick(input); err != nil {
		t.Fatalf("duplicate click failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.ReferralClick{}).Where("agent_profile_id = ?", profile.ID).Count(&count).Error; err != nil {
		t.Fatalf("count clicks failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 click after dedupe, got %d", count)
	}
}

func TestTrackClickIgnoresUnknownOrDisabledCode(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	user := createReferralTestUser(t, db, "disabled-click@example.com")
	createReferralTestProfile(t, db, user.ID, "GONE2345", constants.AgentProfileStatusDisabled)

	if err := svc.TrackClick(ReferralTrackClickInput{ReferralCode: "NOPE2345", VisitorKey: "v1"}); err != nil {
		t.Fatalf("unknown code click failed: %v", err)
	}
	if err := svc.TrackClick(ReferralTrackClickInput{ReferralCode: "GONE2345", VisitorKey: "v1"}); err != nil {
		t.Fatalf("disabled code click failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.ReferralClick{}).Count(&count).Error; err != nil {
		t.Fatalf("count clicks failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no clicks recorded, got %d", count)
	}
}

func TestResolveOrderAgentSnapshotPreferLatestVisitorClick(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agentA := createReferralTestUser(t, db, "agent-a@example.com")
	agentB := createReferralTestUser(t, db, "agent-b@example.com")
	profileA := createReferralTestProfile(t, db, agentA.ID, "AGTA2345", constants.AgentProfileStatusActive)
	profileB := createReferralTestProfile(t, db, agentB.ID, "AGTB2345", constants.AgentProfileStatusActive)

	visitorKey := "visitor-priority"
	now := time.Now()
	createReferralTestClick(t, db, profileA.ID, visitorKey, now.Add(-2*time.Hour))
	createReferralTestClick(t, db, profileB.ID, visitorKey, now.Add(-1*time.Hour))

	profileID, code, err := svc.ResolveOrderAgentSnapshot(0, profileA.ReferralCode, visitorKey)
	if err != nil {
		t.Fatalf("resolve snapshot failed: %v", err)
	}
	if profileID == nil || *profileID != profileB.ID {
		t.Fatalf("expected latest clicked profile %d, got %+v", profileB.ID, profileID)
	}
	if code != profileB.ReferralCode {
		t.Fatalf("expected latest clicked code %s, got %s", profileB.ReferralCode, code)
	}
}

func TestResolveOrderAgentSnapshotFallbackToCode(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agent := createReferralTestUser(t, db, "agent-fallback@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTF2345", constants.AgentProfileStatusActive)

	profileID, code, err := svc.ResolveOrderAgentSnapshot(0, "agtf2345", "visitor-unseen")
	if err != nil {
		t.Fatalf("resolve snapshot failed: %v", err)
	}
	if profileID == nil || *profileID != profile.ID {
		t.Fatalf("expected fallback profile %d, got %+v", profile.ID, profileID)
	}
	if code != profile.ReferralCode {
		t.Fatalf("expected fallback code %s, got %s", profile.ReferralCode, code)
	}
}

func TestResolveOrderAgentSnapshotExcludesSelf(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agent := createReferralTestUser(t, db, "agent-self@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTS2345", constants.AgentProfileStatusActive)
	createReferralTestClick(t, db, profile.ID, "visitor-self", time.Now().Add(-10*time.Minute))

	profileID, code, err := svc.ResolveOrderAgentSnapshot(agent.ID, profile.ReferralCode, "visitor-self")
	if err != nil {
		t.Fatalf("resolve snapshot failed: %v", err)
	}
	if profileID != nil || code != "" {
		t.Fatalf("expected self attribution ignored, got profile=%+v code=%q", profileID, code)
	}
}

func TestHandleOrderPaidAccruesOnce(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agent := createReferralTestUser(t, db, "agent-accrue@example.com")
	buyer := createReferralTestUser(t, db, "buyer-accrue@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTC2345", constants.AgentProfileStatusActive)
	order := createReferralTestPaidOrder(t, db, buyer.ID, &profile.ID, 200)

	if err := svc.HandleOrderPaid(order.ID); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	if err := svc.HandleOrderPaid(order.ID); err != nil {
		t.Fatalf("repeat accrue failed: %v", err)
	}

	var rows []models.Commission
	if err := db.Where("order_id = ?", order.ID).Find(&rows).Error; err != nil {
		t.Fatalf("load commissions failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 commission, got %d", len(rows))
	}
	if rows[0].UserID != agent.ID {
		t.Fatalf("expected commission for agent %d, got %d", agent.ID, rows[0].UserID)
	}
	if !rows[0].Amount.Decimal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected commission 20.00 at 10%%, got %s", rows[0].Amount.String())
	}
	if rows[0].Status != models.CommissionStatusApproved {
		t.Fatalf("expected approved with confirm_days=0, got %s", rows[0].Status)
	}
}

func TestHandleOrderPaidWithConfirmDays(t *testing.T) {
	cfg := defaultReferralTestConfig()
	cfg.ConfirmDays = 7
	svc, db := setupReferralServiceTest(t, cfg)

	agent := createReferralTestUser(t, db, "agent-pending@example.com")
	buyer := createReferralTestUser(t, db, "buyer-pending@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTP2345", constants.AgentProfileStatusActive)
	order := createReferralTestPaidOrder(t, db, buyer.ID, &profile.ID, 100)

	if err := svc.HandleOrderPaid(order.ID); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}

	var row models.Commission
	if err := db.Where("order_id = ?", order.ID).First(&row).Error; err != nil {
		t.Fatalf("load commission failed: %v", err)
	}
	if row.Status != models.CommissionStatusPending {
		t.Fatalf("expected pending with confirm_days=7, got %s", row.Status)
	}
	if row.ConfirmAt == nil {
		t.Fatalf("expected confirm_at stamped")
	}
}

func TestHandleOrderPaidUsesRateOverride(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agent := createReferralTestUser(t, db, "agent-override@example.com")
	buyer := createReferralTestUser(t, db, "buyer-override@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTO2345", constants.AgentProfileStatusActive)
	override := models.NewMoneyFromDecimal(decimal.NewFromInt(25))
	if err := db.Model(&models.AgentProfile{}).Where("id = ?", profile.ID).Update("rate_override", override).Error; err != nil {
		t.Fatalf("set rate override failed: %v", err)
	}
	order := createReferralTestPaidOrder(t, db, buyer.ID, &profile.ID, 100)

	if err := svc.HandleOrderPaid(order.ID); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}

	var row models.Commission
	if err := db.Where("order_id = ?", order.ID).First(&row).Error; err != nil {
		t.Fatalf("load commission failed: %v", err)
	}
	if !row.Amount.Decimal.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected override commission 25.00, got %s", row.Amount.String())
	}
}

func TestHandleOrderCanceledBlocksUnoccupiedCommission(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agent := createReferralTestUser(t, db, "agent-cancel@example.com")
	buyer := createReferralTestUser(t, db, "buyer-cancel@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTX2345", constants.AgentProfileStatusActive)
	order := createReferralTestPaidOrder(t, db, buyer.ID, &profile.ID, 600)

	if err := svc.HandleOrderPaid(order.ID); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	if err := svc.HandleOrderCanceled(order.ID, "refund"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	var row models.Commission
	if err := db.Where("order_id = ?", order.ID).First(&row).Error; err != nil {
		t.Fatalf("load commission failed: %v", err)
	}
	if row.Status != models.CommissionStatusBlocked {
		t.Fatalf("expected blocked commission, got %s", row.Status)
	}
	if row.BlockReason != "refund" {
		t.Fatalf("expected block reason recorded, got %q", row.BlockReason)
	}
}

func TestHandleOrderCanceledKeepsOccupiedCommission(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agent := createReferralTestUser(t, db, "agent-occupied@example.com")
	buyer := createReferralTestUser(t, db, "buyer-occupied@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTY2345", constants.AgentProfileStatusActive)
	order := createReferralTestPaidOrder(t, db, buyer.ID, &profile.ID, 600)

	if err := svc.HandleOrderPaid(order.ID); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	// 600 * 10% = 60，满足最低提现额
	if _, err := svc.ledger.RequestPayout(agent.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(60),
		Channel: "alipay",
		Account: "agent@example.com",
	}); err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	if err := svc.HandleOrderCanceled(order.ID, "refund"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	var row models.Commission
	if err := db.Where("order_id = ?", order.ID).First(&row).Error; err != nil {
		t.Fatalf("load commission failed: %v", err)
	}
	if row.Status == models.CommissionStatusBlocked {
		t.Fatalf("expected occupied commission untouched, got blocked")
	}
}

func TestUpdateAgentRateOverride(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agent := createReferralTestUser(t, db, "agent-rate@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTR2345", constants.AgentProfileStatusActive)

	rate := decimal.NewFromInt(15)
	updated, err := svc.UpdateAgentRateOverride(profile.ID, &rate)
	if err != nil {
		t.Fatalf("set rate override failed: %v", err)
	}
	if updated.RateOverride == nil || !updated.RateOverride.Decimal.Equal(rate) {
		t.Fatalf("expected rate override 15, got %+v", updated.RateOverride)
	}

	invalid := decimal.NewFromInt(150)
	if _, err := svc.UpdateAgentRateOverride(profile.ID, &invalid); err == nil {
		t.Fatalf("expected error for rate > 100")
	}

	cleared, err := svc.UpdateAgentRateOverride(profile.ID, nil)
	if err != nil {
		t.Fatalf("clear rate override failed: %v", err)
	}
	if cleared.RateOverride != nil {
		t.Fatalf("expected cleared override, got %+v", cleared.RateOverride)
	}
}

func TestGetAgentDashboard(t *testing.T) {
	svc, db := setupReferralServiceTest(t, defaultReferralTestConfig())

	agent := createReferralTestUser(t, db, "agent-dash@example.com")
	buyer := createReferralTestUser(t, db, "buyer-dash@example.com")
	profile := createReferralTestProfile(t, db, agent.ID, "AGTD2345", constants.AgentProfileStatusActive)
	createReferralTestClick(t, db, profile.ID, "v-dash-1", time.Now().Add(-time.Hour))
	createReferralTestClick(t, db, profile.ID, "v-dash-2", time.Now().Add(-time.Minute))
	order := createReferralTestPaidOrder(t, db, buyer.ID, &profile.ID, 300)
	if err := svc.HandleOrderPaid(order.ID); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}

	dashboard, err := svc.GetAgentDashboard(agent.ID)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if !dashboard.Opened {
		t.Fatalf("expected opened dashboard")
	}
	if dashboard.ClickCount != 2 {
		t.Fatalf("expected 2 clicks, got %d", dashboard.ClickCount)
	}
	if !dashboard.Available.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected available 30.00, got %s", dashboard.Available.String())
	}

	// 未开通用户返回空面板
	empty, err := svc.GetAgentDashboard(buyer.ID)
	if err != nil {
		t.Fatalf("empty dashboard failed: %v", err)
	}
	if empty.Opened {
		t.Fatalf("expected unopened dashboard for buyer")
	}
}
