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

func setupLedgerServiceTest(t *testing.T) (*LedgerService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.Commission{},
		&models.Payout{},
		&models.PayoutCommission{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	ledgerRepo := repository.NewLedgerRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewLedgerService(ledgerRepo, userRepo, config.LedgerConfig{
		MinPayoutThreshold:    "50",
		DefaultCommissionRate: 10,
		ConfirmDays:           0,
	})
	return svc, db
}

func createLedgerTestUser(t *testing.T, db *gorm.DB, email string) models.User {
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

func createLedgerTestCommission(t *testing.T, db *gorm.DB, userID uint, amount float64, status models.CommissionStatus, createdAt time.Time) models.Commission {
	t.Helper()

	order := models.Order{
		OrderNo:     fmt.Sprintf("RM%d%d", time.Now().UnixNano(), userID),
		UserID:      userID,
		Status:      constants.OrderStatusPaid,
		Currency:    "CNY",
		TotalAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(amount * 10)),
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	row := models.Commission{
		UserID:      userID,
		OrderID:     order.ID,
		BaseAmount:  order.TotalAmount,
		RatePercent: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Amount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(amount)),
		Status:      status,
		CreatedAt:   createdAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create commission failed: %v", err)
	}
	return row
}

func TestAvailableBalanceSumsEarnedStatuses(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "balance@example.com")
	now := time.Now()
	createLedgerTestCommission(t, db, user.ID, 20, models.CommissionStatusPending, now.Add(-3*time.Hour))
	createLedgerTestCommission(t, db, user.ID, 30, models.CommissionStatusApproved, now.Add(-2*time.Hour))
	createLedgerTestCommission(t, db, user.ID, 40, models.CommissionStatusPaid, now.Add(-1*time.Hour))
	createLedgerTestCommission(t, db, user.ID, 99, models.CommissionStatusBlocked, now)

	summary, err := svc.AvailableBalance(user.ID)
	if err != nil {
		t.Fatalf("available balance failed: %v", err)
	}
	if !summary.TotalEarned.Decimal.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected total earned 90, got %s", summary.TotalEarned.String())
	}
	if !summary.Available.Decimal.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected available 90, got %s", summary.Available.String())
	}
}

func TestRequestPayoutBelowThreshold(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "threshold@example.com")
	createLedgerTestCommission(t, db, user.ID, 100, models.CommissionStatusApproved, time.Now())

	_, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromFloat(49.99),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if !errors.Is(err, ErrBelowMinimumThreshold) {
		t.Fatalf("expected ErrBelowMinimumThreshold, got %v", err)
	}

	payout, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(50),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if err != nil {
		t.Fatalf("request payout at threshold failed: %v", err)
	}
	if payout.Status != models.PayoutStatusPending {
		t.Fatalf("expected pending payout, got %s", payout.Status)
	}
}

func TestRequestPayoutInvalidInput(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "invalid-input@example.com")
	createLedgerTestCommission(t, db, user.ID, 100, models.CommissionStatusApproved, time.Now())

	if _, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(-10),
		Channel: "alipay",
		Account: "a",
	}); !errors.Is(err, ErrPayoutAmountInvalid) {
		t.Fatalf("expected ErrPayoutAmountInvalid, got %v", err)
	}

	if _, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(60),
		Channel: "",
		Account: "a",
	}); !errors.Is(err, ErrPayoutChannelInvalid) {
		t.Fatalf("expected ErrPayoutChannelInvalid, got %v", err)
	}
}

func TestRequestPayoutLinksOldestCommissionsFirst(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "fifo@example.com")
	now := time.Now()
	c20 := createLedgerTestCommission(t, db, user.ID, 20, models.CommissionStatusApproved, now.Add(-3*time.Hour))
	c30 := createLedgerTestCommission(t, db, user.ID, 30, models.CommissionStatusApproved, now.Add(-2*time.Hour))
	c40 := createLedgerTestCommission(t, db, user.ID, 40, models.CommissionStatusApproved, now.Add(-1*time.Hour))

	payout, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(50),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	var links []models.PayoutCommission
	if err := db.Where("payout_id = ?", payout.ID).Order("id ASC").Find(&links).Error; err != nil {
		t.Fatalf("load links failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].CommissionID != c20.ID || links[1].CommissionID != c30.ID {
		t.Fatalf("expected oldest commissions %d,%d linked, got %d,%d", c20.ID, c30.ID, links[0].CommissionID, links[1].CommissionID)
	}

	// 最新一笔未被占用
	var count int64
	if err := db.Model(&models.PayoutCommission{}).Where("commission_id = ?", c40.ID).Count(&count).Error; err != nil {
		t.Fatalf("count links failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected newest commission unlinked, got %d links", count)
	}
}

func TestRequestPayoutReservesLinkedValue(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "reserve@example.com")
	now := time.Now()
	createLedgerTestCommission(t, db, user.ID, 60, models.CommissionStatusApproved, now.Add(-2*time.Hour))
	createLedgerTestCommission(t, db, user.ID, 60, models.CommissionStatusApproved, now.Add(-1*time.Hour))

	if _, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(70),
		Channel: "alipay",
		Account: "agent@example.com",
	}); err != nil {
		t.Fatalf("first payout failed: %v", err)
	}

	// 两笔佣金共 120，首单占用了两笔（120 价值，申请 70），剩余可提现 50
	summary, err := svc.AvailableBalance(user.ID)
	if err != nil {
		t.Fatalf("available balance failed: %v", err)
	}
	if !summary.Available.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected available 50 after reservation, got %s", summary.Available.String())
	}

	// 恰好等于剩余可提现额的申请必须成功，待审核占用不排除佣金本身
	second, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(50),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if err != nil {
		t.Fatalf("payout at exact available balance failed: %v", err)
	}
	if second.Status != models.PayoutStatusPending {
		t.Fatalf("expected pending payout, got %s", second.Status)
	}

	summary, err = svc.AvailableBalance(user.ID)
	if err != nil {
		t.Fatalf("available balance failed: %v", err)
	}
	if !summary.Available.Decimal.Equal(decimal.Zero) {
		t.Fatalf("expected available 0 after second payout, got %s", summary.Available.String())
	}

	if _, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(60),
		Channel: "alipay",
		Account: "agent@example.com",
	}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance for over-request, got %v", err)
	}
}

func TestResolvePayoutApproveMarksCommissionsPaid(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "approve@example.com")
	c := createLedgerTestCommission(t, db, user.ID, 80, models.CommissionStatusApproved, time.Now())

	payout, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(80),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	resolved, err := svc.ResolvePayout(1, payout.ID, PayoutResolveInput{Action: models.PayoutStatusApproved})
	if err != nil {
		t.Fatalf("approve payout failed: %v", err)
	}
	if resolved.Status != models.PayoutStatusApproved {
		t.Fatalf("expected approved, got %s", resolved.Status)
	}
	if resolved.ApprovedAt == nil {
		t.Fatalf("expected approved_at stamped")
	}
	if resolved.ProcessedBy == nil || *resolved.ProcessedBy != 1 {
		t.Fatalf("expected processed_by 1, got %+v", resolved.ProcessedBy)
	}

	var reloaded models.Commission
	if err := db.First(&reloaded, c.ID).Error; err != nil {
		t.Fatalf("reload commission failed: %v", err)
	}
	if reloaded.Status != models.CommissionStatusPaid {
		t.Fatalf("expected linked commission paid, got %s", reloaded.Status)
	}

	// 已处理提现计入扣减，余额归零
	summary, err := svc.AvailableBalance(user.ID)
	if err != nil {
		t.Fatalf("available balance failed: %v", err)
	}
	if !summary.Available.Decimal.Equal(decimal.Zero) {
		t.Fatalf("expected available 0 after approval, got %s", summary.Available.String())
	}
}

func TestResolvePayoutRejectReleasesCommissions(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "reject@example.com")
	c := createLedgerTestCommission(t, db, user.ID, 80, models.CommissionStatusApproved, time.Now())

	payout, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(80),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	if _, err := svc.ResolvePayout(1, payout.ID, PayoutResolveInput{Action: models.PayoutStatusRejected}); !errors.Is(err, ErrPayoutRejectReasonEmpty) {
		t.Fatalf("expected ErrPayoutRejectReasonEmpty, got %v", err)
	}

	resolved, err := svc.ResolvePayout(1, payout.ID, PayoutResolveInput{
		Action:       models.PayoutStatusRejected,
		RejectReason: "账号信息有误",
	})
	if err != nil {
		t.Fatalf("reject payout failed: %v", err)
	}
	if resolved.Status != models.PayoutStatusRejected {
		t.Fatalf("expected rejected, got %s", resolved.Status)
	}
	if resolved.RejectReason == "" {
		t.Fatalf("expected reject reason recorded")
	}

	var linkCount int64
	if err := db.Model(&models.PayoutCommission{}).Where("payout_id = ?", payout.ID).Count(&linkCount).Error; err != nil {
		t.Fatalf("count links failed: %v", err)
	}
	if linkCount != 0 {
		t.Fatalf("expected links removed, got %d", linkCount)
	}

	var reloaded models.Commission
	if err := db.First(&reloaded, c.ID).Error; err != nil {
		t.Fatalf("reload commission failed: %v", err)
	}
	if reloaded.Status != models.CommissionStatusApproved {
		t.Fatalf("expected commission released to approved, got %s", reloaded.Status)
	}

	// 驳回后可重新申请
	retry, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(80),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if err != nil {
		t.Fatalf("retry payout after reject failed: %v", err)
	}
	if retry.Status != models.PayoutStatusPending {
		t.Fatalf("expected pending retry payout, got %s", retry.Status)
	}
}

func TestResolvePayoutInvalidTransitions(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "transition@example.com")
	createLedgerTestCommission(t, db, user.ID, 100, models.CommissionStatusApproved, time.Now())

	payout, err := svc.RequestPayout(user.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(100),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	// pending 不能直接 paid
	if _, err := svc.ResolvePayout(1, payout.ID, PayoutResolveInput{Action: models.PayoutStatusPaid}); !errors.Is(err, ErrPayoutStatusInvalid) {
		t.Fatalf("expected ErrPayoutStatusInvalid for pending->paid, got %v", err)
	}

	if _, err := svc.ResolvePayout(1, payout.ID, PayoutResolveInput{Action: models.PayoutStatusApproved}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.ResolvePayout(1, payout.ID, PayoutResolveInput{Action: models.PayoutStatusPaid, TransactionID: "TX-1"}); err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	// paid 为终态
	if _, err := svc.ResolvePayout(1, payout.ID, PayoutResolveInput{
		Action:       models.PayoutStatusRejected,
		RejectReason: "too late",
	}); !errors.Is(err, ErrPayoutStatusInvalid) {
		t.Fatalf("expected ErrPayoutStatusInvalid for paid->rejected, got %v", err)
	}

	if _, err := svc.ResolvePayout(1, 99999, PayoutResolveInput{Action: models.PayoutStatusApproved}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing payout, got %v", err)
	}
}

func TestGetUserPayoutOwnership(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	owner := createLedgerTestUser(t, db, "owner@example.com")
	other := createLedgerTestUser(t, db, "other@example.com")
	createLedgerTestCommission(t, db, owner.ID, 100, models.CommissionStatusApproved, time.Now())

	payout, err := svc.RequestPayout(owner.ID, PayoutApplyInput{
		Amount:  decimal.NewFromInt(100),
		Channel: "alipay",
		Account: "agent@example.com",
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	if _, err := svc.GetUserPayout(other.ID, payout.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign payout, got %v", err)
	}
	got, err := svc.GetUserPayout(owner.ID, payout.ID)
	if err != nil || got == nil {
		t.Fatalf("owner fetch failed: %v", err)
	}
}

func TestConfirmDueCommissions(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "confirm@example.com")
	now := time.Now()
	due := createLedgerTestCommission(t, db, user.ID, 10, models.CommissionStatusPending, now.Add(-48*time.Hour))
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	if err := db.Model(&models.Commission{}).Where("id = ?", due.ID).Update("confirm_at", past).Error; err != nil {
		t.Fatalf("set confirm_at failed: %v", err)
	}
	notDue := createLedgerTestCommission(t, db, user.ID, 10, models.CommissionStatusPending, now)
	if err := db.Model(&models.Commission{}).Where("id = ?", notDue.ID).Update("confirm_at", future).Error; err != nil {
		t.Fatalf("set confirm_at failed: %v", err)
	}

	confirmed, err := svc.ConfirmDueCommissions(now)
	if err != nil {
		t.Fatalf("confirm due failed: %v", err)
	}
	if confirmed != 1 {
		t.Fatalf("expected 1 confirmed, got %d", confirmed)
	}

	var reloaded models.Commission
	if err := db.First(&reloaded, due.ID).Error; err != nil {
		t.Fatalf("reload commission failed: %v", err)
	}
	if reloaded.Status != models.CommissionStatusApproved {
		t.Fatalf("expected due commission approved, got %s", reloaded.Status)
	}
}
