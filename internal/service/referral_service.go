package service

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/refmart/refmart/internal/config"
	"github.com/refmart/refmart/internal/constants"
	"github.com/refmart/refmart/internal/logger"
	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	referralCodeLength        = 8
	referralAttributionWindow = 30 * 24 * time.Hour
	referralClickDedupeWindow = 10 * time.Minute
)

// ReferralService 推广归因与佣金计提服务
type ReferralService struct {
	repo       repository.AgentRepository
	ledgerRepo repository.LedgerRepository
	userRepo   repository.UserRepository
	orderRepo  repository.OrderRepository
	ledger     *LedgerService
	rate       decimal.Decimal
	confirmDays int
}

// NewReferralService 创建推广服务
func NewReferralService(
	repo repository.AgentRepository,
	ledgerRepo repository.LedgerRepository,
	userRepo repository.UserRepository,
	orderRepo repository.OrderRepository,
	ledger *LedgerService,
	cfg config.LedgerConfig,
) *ReferralService {
	rate := decimal.NewFromFloat(cfg.DefaultCommissionRate).Round(2)
	if rate.LessThan(decimal.Zero) {
		rate = decimal.Zero
	}
	return &ReferralService{
		repo:        repo,
		ledgerRepo:  ledgerRepo,
		userRepo:    userRepo,
		orderRepo:   orderRepo,
		ledger:      ledger,
		rate:        rate,
		confirmDays: cfg.ConfirmDays,
	}
}

// ReferralTrackClickInput 推广点击记录输入
type ReferralTrackClickInput struct {
	ReferralCode string
	VisitorKey   string
	LandingPath  string
	Referrer     string
	ClientIP     string
	UserAgent    string
}

// AgentDashboard 代理用户中心数据
type AgentDashboard struct {
	Opened          bool         `json:"opened"`
	ReferralCode    string       `json:"referral_code"`
	PromotionPath   string       `json:"promotion_path"`
	ClickCount      int64        `json:"click_count"`
	TotalEarned     models.Money `json:"total_earned"`
	ProcessedTotal  models.Money `json:"processed_total"`
	PendingReserved models.Money `json:"pending_reserved"`
	Available       models.Money `json:"available"`
}

// OpenAgent 为用户开通推广身份
func (s *ReferralService) OpenAgent(userID uint) (*models.AgentProfile, error) {
	if userID == 0 || s.repo == nil || s.userRepo == nil {
		return nil, ErrNotFound
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(user.Status) == constants.UserStatusDisabled {
		return nil, ErrAccountDisabled
	}

	existing, err := s.repo.GetProfileByUserID(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	const maxRetry = 8
	for i := 0; i < maxRetry; i++ {
		code, genErr := generateReferralCode()
		if genErr != nil {
			return nil, genErr
		}
		profile := &models.AgentProfile{
			UserID:       userID,
			ReferralCode: code,
			Status:       constants.AgentProfileStatusActive,
		}
		if err := s.repo.CreateProfile(profile); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}
		logger.Infow("agent profile opened", "user_id", userID, "referral_code", code)
		return s.repo.GetProfileByID(profile.ID)
	}
	return nil, ErrReferralCodeInvalid
}

// UpdateAgentStatus 管理端更新代理状态
func (s *ReferralService) UpdateAgentStatus(profileID uint, rawStatus string) (*models.AgentProfile, error) {
	if profileID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	nextStatus := strings.TrimSpace(rawStatus)
	if nextStatus != constants.AgentProfileStatusActive && nextStatus != constants.AgentProfileStatusDisabled {
		return nil, ErrAgentDisabled
	}
	profile, err := s.repo.GetProfileByID(profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	if profile.Status == nextStatus {
		return profile, nil
	}
	profile.Status = nextStatus
	profile.UpdatedAt = time.Now()
	if err := s.repo.UpdateProfile(profile); err != nil {
		return nil, err
	}
	return s.repo.GetProfileByID(profileID)
}

// UpdateAgentRateOverride 管理端设置代理专属佣金比例
func (s *ReferralService) UpdateAgentRateOverride(profileID uint, rate *decimal.Decimal) (*models.AgentProfile, error) {
	if profileID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	profile, err := s.repo.GetProfileByID(profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	if rate == nil {
		profile.RateOverride = nil
	} else {
		normalized := rate.Round(2)
		if normalized.LessThan(decimal.Zero) || normalized.GreaterThan(decimal.NewFromInt(100)) {
			return nil, ErrReferralCodeInvalid
		}
		value := models.NewMoneyFromDecimal(normalized)
		profile.RateOverride = &value
	}
	profile.UpdatedAt = time.Now()
	if err := s.repo.UpdateProfile(profile); err != nil {
		return nil, err
	}
	return s.repo.GetProfileByID(profileID)
}

// ListAgents 管理端分页查询代理
func (s *ReferralService) ListAgents(filter repository.AgentProfileListFilter) ([]models.AgentProfile, int64, error) {
	if s.repo == nil {
		return []models.AgentProfile{}, 0, nil
	}
	return s.repo.ListProfiles(filter)
}

// TrackClick 记录推广点击
func (s *ReferralService) TrackClick(input ReferralTrackClickInput) error {
	if s.repo == nil {
		return nil
	}
	code := normalizeReferralCode(input.ReferralCode)
	if code == "" {
		return nil
	}
	profile, err := s.repo.GetProfileByCode(code)
	if err != nil {
		return err
	}
	if profile == nil || profile.Status != constants.AgentProfileStatusActive {
		return nil
	}
	visitorKey := strings.TrimSpace(input.VisitorKey)
	if visitorKey != "" {
		duplicated, err := s.repo.HasRecentClick(profile.ID, visitorKey, time.Now().Add(-referralClickDedupeWindow))
		if err != nil {
			return err
		}
		if duplicated {
			return nil
		}
	}

	click := &models.ReferralClick{
		AgentProfileID: profile.ID,
		VisitorKey:     visitorKey,
		LandingPath:    strings.TrimSpace(input.LandingPath),
		Referrer:       strings.TrimSpace(input.Referrer),
		ClientIP:       strings.TrimSpace(input.ClientIP),
		UserAgent:      strings.TrimSpace(input.UserAgent),
		CreatedAt:      time.Now(),
	}
	return s.repo.CreateClick(click)
}

// ResolveOrderAgentSnapshot 解析下单归因快照。
// 归因窗口内最后一次有效点击优先，其次显式推广码；不允许自推自买。
func (s *ReferralService) ResolveOrderAgentSnapshot(userID uint, rawCode, rawVisitorKey string) (*uint, string, error) {
	if s.repo == nil {
		return nil, "", nil
	}
	visitorKey := strings.TrimSpace(rawVisitorKey)
	if visitorKey != "" {
		click, err := s.repo.GetLatestClickByVisitor(visitorKey, time.Now().Add(-referralAttributionWindow))
		if err != nil {
			return nil, "", err
		}
		if click != nil {
			profile, err := s.repo.GetProfileByID(click.AgentProfileID)
			if err != nil {
				return nil, "", err
			}
			if profile != nil && profile.Status == constants.AgentProfileStatusActive {
				if userID == 0 || profile.UserID != userID {
					profileID := profile.ID
					return &profileID, profile.ReferralCode, nil
				}
			}
		}
	}

	code := normalizeReferralCode(rawCode)
	if code == "" {
		return nil, "", nil
	}
	profile, err := s.repo.GetProfileByCode(code)
	if err != nil {
		return nil, "", err
	}
	if profile == nil || profile.Status != constants.AgentProfileStatusActive {
		return nil, "", nil
	}
	if userID > 0 && profile.UserID == userID {
		return nil, "", nil
	}
	profileID := profile.ID
	return &profileID, profile.ReferralCode, nil
}

// HandleOrderPaid 订单支付成功后计提佣金，同一订单同一代理幂等
func (s *ReferralService) HandleOrderPaid(orderID uint) error {
	if orderID == 0 || s.repo == nil || s.orderRepo == nil || s.ledgerRepo == nil {
		return nil
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil || order.AgentProfileID == nil {
		return nil
	}
	profile, err := s.repo.GetProfileByID(*order.AgentProfileID)
	if err != nil {
		return err
	}
	if profile == nil || profile.Status != constants.AgentProfileStatusActive {
		return nil
	}
	if order.UserID > 0 && profile.UserID == order.UserID {
		return nil
	}

	existing, err := s.ledgerRepo.GetCommissionByOrderAndUser(order.ID, profile.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	rate := s.rate
	if profile.RateOverride != nil {
		rate = profile.RateOverride.Decimal.Round(2)
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	baseAmount := order.TotalAmount.Decimal.Round(2)
	if baseAmount.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	amount := baseAmount.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	paidAt := time.Now()
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}
	status := models.CommissionStatusApproved
	var confirmAt *time.Time
	if s.confirmDays > 0 {
		status = models.CommissionStatusPending
		t := paidAt.Add(time.Duration(s.confirmDays) * 24 * time.Hour)
		confirmAt = &t
	}

	commission := &models.Commission{
		UserID:      profile.UserID,
		OrderID:     order.ID,
		BaseAmount:  models.NewMoneyFromDecimal(baseAmount),
		RatePercent: models.NewMoneyFromDecimal(rate),
		Amount:      models.NewMoneyFromDecimal(amount),
		Status:      status,
		ConfirmAt:   confirmAt,
	}
	if err := s.ledgerRepo.CreateCommission(commission); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	logger.Infow("commission accrued",
		"order_id", order.ID, "user_id", profile.UserID, "amount", amount.StringFixed(2))
	return nil
}

// HandleOrderCanceled 订单取消后冻结未被提现占用的佣金
func (s *ReferralService) HandleOrderCanceled(orderID uint, reason string) error {
	if orderID == 0 || s.ledgerRepo == nil {
		return nil
	}
	rows, err := s.ledgerRepo.ListCommissionsByOrder(orderID, models.CommissionAllocatableStatuses())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	now := time.Now()
	reasonText := strings.TrimSpace(reason)
	if reasonText == "" {
		reasonText = "order_canceled"
	}
	for i := range rows {
		item := rows[i]
		occupied, err := s.ledgerRepo.CommissionLinkedToActivePayout(item.ID)
		if err != nil {
			return err
		}
		if occupied {
			// 已被提现单占用，按业务规则不再逆向。
			continue
		}
		item.Status = models.CommissionStatusBlocked
		item.BlockReason = reasonText
		item.ConfirmAt = nil
		item.UpdatedAt = now
		if err := s.ledgerRepo.UpdateCommission(&item); err != nil {
			return err
		}
	}
	return nil
}

// GetAgentDashboard 获取代理用户中心数据
func (s *ReferralService) GetAgentDashboard(userID uint) (AgentDashboard, error) {
	dashboard := AgentDashboard{
		TotalEarned:     models.NewMoneyFromDecimal(decimal.Zero),
		ProcessedTotal:  models.NewMoneyFromDecimal(decimal.Zero),
		PendingReserved: models.NewMoneyFromDecimal(decimal.Zero),
		Available:       models.NewMoneyFromDecimal(decimal.Zero),
	}
	if userID == 0 || s.repo == nil {
		return dashboard, nil
	}
	profile, err := s.repo.GetProfileByUserID(userID)
	if err != nil {
		return dashboard, err
	}
	if profile == nil {
		return dashboard, nil
	}

	clickCount, err := s.repo.CountClicksByProfile(profile.ID, time.Time{})
	if err != nil {
		return dashboard, err
	}
	summary, err := s.ledger.AvailableBalance(userID)
	if err != nil {
		return dashboard, err
	}

	dashboard.Opened = true
	dashboard.ReferralCode = profile.ReferralCode
	dashboard.PromotionPath = "/?ref=" + profile.ReferralCode
	dashboard.ClickCount = clickCount
	dashboard.TotalEarned = summary.TotalEarned
	dashboard.ProcessedTotal = summary.ProcessedTotal
	dashboard.PendingReserved = summary.PendingReserved
	dashboard.Available = summary.Available
	return dashboard, nil
}

// GetAgentProfile 获取用户的代理档案
func (s *ReferralService) GetAgentProfile(userID uint) (*models.AgentProfile, error) {
	if userID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	return s.repo.GetProfileByUserID(userID)
}

func normalizeReferralCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func generateReferralCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var builder strings.Builder
	builder.Grow(referralCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
