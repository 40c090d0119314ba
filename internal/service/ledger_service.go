package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/refmart/refmart/internal/config"
	"github.com/refmart/refmart/internal/logger"
	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultMinPayoutThreshold = 50

// LedgerService 佣金账本与提现业务服务
type LedgerService struct {
	repo               repository.LedgerRepository
	userRepo           repository.UserRepository
	minPayoutThreshold decimal.Decimal
	confirmDays        int
}

// NewLedgerService 创建佣金账本服务
func NewLedgerService(repo repository.LedgerRepository, userRepo repository.UserRepository, cfg config.LedgerConfig) *LedgerService {
	return &LedgerService{
		repo:               repo,
		userRepo:           userRepo,
		minPayoutThreshold: parseMinPayoutThreshold(cfg.MinPayoutThreshold),
		confirmDays:        cfg.ConfirmDays,
	}
}

func parseMinPayoutThreshold(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || value.LessThan(decimal.Zero) {
		return decimal.NewFromInt(defaultMinPayoutThreshold)
	}
	return value.Round(2)
}

// BalanceSummary 用户佣金余额汇总
type BalanceSummary struct {
	TotalEarned     models.Money `json:"total_earned"`
	ProcessedTotal  models.Money `json:"processed_total"`
	PendingReserved models.Money `json:"pending_reserved"`
	Available       models.Money `json:"available"`
}

// PayoutApplyInput 提现申请输入
type PayoutApplyInput struct {
	Amount  decimal.Decimal
	Channel string
	Account string
}

// PayoutResolveInput 提现处理输入
type PayoutResolveInput struct {
	Action        models.PayoutStatus
	TransactionID string
	RejectReason  string
}

// AvailableBalance 计算用户当前可提现余额
//
// 可提现余额 = 累计佣金 - 已处理提现总额 - 待审核提现占用额，
// 其中占用额取已占用佣金价值与待审核申请总额的较小值，结果不为负。
func (s *LedgerService) AvailableBalance(userID uint) (*BalanceSummary, error) {
	if s.repo == nil || userID == 0 {
		return nil, ErrNotFound
	}
	if s.userRepo != nil {
		user, err := s.userRepo.GetByID(userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrNotFound
		}
	}
	return computeBalance(s.repo, userID)
}

func computeBalance(repo repository.LedgerRepository, userID uint) (*BalanceSummary, error) {
	earned, err := repo.SumCommissionAmount(userID, models.CommissionEarnedStatuses())
	if err != nil {
		return nil, err
	}
	processed, err := repo.SumPayoutAmount(userID, models.PayoutProcessedStatuses())
	if err != nil {
		return nil, err
	}
	pendingRequested, err := repo.SumPayoutAmount(userID, []models.PayoutStatus{models.PayoutStatusPending})
	if err != nil {
		return nil, err
	}
	pendingAllocated, err := repo.SumPendingAllocatedValue(userID)
	if err != nil {
		return nil, err
	}

	reserved := pendingAllocated
	if pendingRequested.LessThan(reserved) {
		reserved = pendingRequested
	}
	available := earned.Sub(processed).Sub(reserved).Round(2)
	if available.LessThan(decimal.Zero) {
		available = decimal.Zero
	}
	return &BalanceSummary{
		TotalEarned:     models.NewMoneyFromDecimal(earned),
		ProcessedTotal:  models.NewMoneyFromDecimal(processed),
		PendingReserved: models.NewMoneyFromDecimal(reserved),
		Available:       models.NewMoneyFromDecimal(available),
	}, nil
}

// RequestPayout 发起提现申请。
// 校验起提门槛与可提余额后，在单事务内锁定候选佣金、复核余额、
// 按创建时间先进先出逐笔占用，直到覆盖申请金额。
func (s *LedgerService) RequestPayout(userID uint, input PayoutApplyInput) (*models.Payout, error) {
	if s.repo == nil || userID == 0 {
		return nil, ErrNotFound
	}
	amount := input.Amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrPayoutAmountInvalid
	}
	if amount.LessThan(s.minPayoutThreshold) {
		return nil, ErrBelowMinimumThreshold
	}
	channel := strings.TrimSpace(input.Channel)
	account := strings.TrimSpace(input.Account)
	if channel == "" || account == "" {
		return nil, ErrPayoutChannelInvalid
	}

	summary, err := s.AvailableBalance(userID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(summary.Available.Decimal) {
		return nil, ErrInsufficientBalance
	}

	var createdID uint
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)

		candidates, err := repoTx.ListPayoutCandidatesForUpdate(userID)
		if err != nil {
			return err
		}
		// 锁内复核，避免并发申请重复占用同一笔余额。
		locked, err := computeBalance(repoTx, userID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(locked.Available.Decimal) {
			return ErrInsufficientBalance
		}

		covered := decimal.Zero
		selected := make([]uint, 0, len(candidates))
		for _, commission := range candidates {
			if covered.GreaterThanOrEqual(amount) {
				break
			}
			rowAmount := commission.Amount.Decimal.Round(2)
			if rowAmount.LessThanOrEqual(decimal.Zero) {
				continue
			}
			selected = append(selected, commission.ID)
			covered = covered.Add(rowAmount).Round(2)
		}
		// 候选耗尽不视为失败：余额校验已通过，申请单保留待人工处理。

		now := time.Now()
		payout := &models.Payout{
			PayoutNo:  generatePayoutNo(),
			UserID:    userID,
			Amount:    models.NewMoneyFromDecimal(amount),
			Status:    models.PayoutStatusPending,
			Channel:   channel,
			Account:   account,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repoTx.CreatePayout(payout); err != nil {
			return err
		}
		for _, commissionID := range selected {
			link := &models.PayoutCommission{
				PayoutID:     payout.ID,
				CommissionID: commissionID,
				CreatedAt:    now,
			}
			if err := repoTx.CreateLink(link); err != nil {
				return err
			}
		}
		createdID = payout.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("payout requested", "user_id", userID, "payout_id", createdID, "amount", amount.StringFixed(2))
	return s.repo.GetPayoutByID(createdID)
}

// ResolvePayout 管理端处理提现单状态流转。
// 批准或打款时将占用佣金标记为已结算；驳回时释放占用并回退佣金状态。
func (s *LedgerService) ResolvePayout(adminID, payoutID uint, input PayoutResolveInput) (*models.Payout, error) {
	if s.repo == nil || payoutID == 0 {
		return nil, ErrNotFound
	}
	target := input.Action
	if !target.Valid() || target == models.PayoutStatusPending {
		return nil, ErrPayoutStatusInvalid
	}
	rejectReason := strings.TrimSpace(input.RejectReason)
	if target == models.PayoutStatusRejected && rejectReason == "" {
		return nil, ErrPayoutRejectReasonEmpty
	}

	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		payout, err := repoTx.GetPayoutByIDForUpdate(payoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return ErrNotFound
		}
		if !payout.Status.CanTransitionTo(target) {
			return ErrPayoutStatusInvalid
		}

		commissions, err := repoTx.ListCommissionsByPayoutForUpdate(payoutID)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(commissions))
		for _, commission := range commissions {
			ids = append(ids, commission.ID)
		}

		now := time.Now()
		from := payout.Status
		payout.Status = target
		payout.UpdatedAt = now
		if adminID > 0 {
			payout.ProcessedBy = &adminID
		}

		switch target {
		case models.PayoutStatusApproved:
			payout.ApprovedAt = &now
			if transactionID := strings.TrimSpace(input.TransactionID); transactionID != "" {
				payout.TransactionID = transactionID
			}
			if err := repoTx.BatchUpdateCommissions(ids, map[string]interface{}{
				"status":     string(models.CommissionStatusPaid),
				"updated_at": now,
			}); err != nil {
				return err
			}
		case models.PayoutStatusPaid:
			payout.PaidAt = &now
			if transactionID := strings.TrimSpace(input.TransactionID); transactionID != "" {
				payout.TransactionID = transactionID
			}
			if err := repoTx.BatchUpdateCommissions(ids, map[string]interface{}{
				"status":     string(models.CommissionStatusPaid),
				"updated_at": now,
			}); err != nil {
				return err
			}
		case models.PayoutStatusRejected:
			payout.RejectReason = rejectReason
			if from == models.PayoutStatusApproved {
				// 批准后驳回，已结算的佣金回退为已确认，重新参与余额计算。
				if err := repoTx.BatchUpdateCommissions(ids, map[string]interface{}{
					"status":     string(models.CommissionStatusApproved),
					"updated_at": now,
				}); err != nil {
					return err
				}
			}
			if err := repoTx.DeleteLinksByPayout(payoutID); err != nil {
				return err
			}
		}
		return repoTx.UpdatePayout(payout)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("payout resolved", "payout_id", payoutID, "action", string(target), "admin_id", adminID)
	return s.repo.GetPayoutByID(payoutID)
}

// GetPayout 获取提现单
func (s *LedgerService) GetPayout(payoutID uint) (*models.Payout, error) {
	if s.repo == nil || payoutID == 0 {
		return nil, ErrNotFound
	}
	payout, err := s.repo.GetPayoutByID(payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrNotFound
	}
	return payout, nil
}

// GetUserPayout 获取用户名下的提现单
func (s *LedgerService) GetUserPayout(userID, payoutID uint) (*models.Payout, error) {
	payout, err := s.GetPayout(payoutID)
	if err != nil {
		return nil, err
	}
	if payout.UserID != userID {
		return nil, ErrNotFound
	}
	return payout, nil
}

// ListPayouts 分页查询提现单
func (s *LedgerService) ListPayouts(filter repository.PayoutListFilter) ([]models.Payout, int64, error) {
	if s.repo == nil {
		return []models.Payout{}, 0, nil
	}
	return s.repo.ListPayouts(filter)
}

// ListCommissions 分页查询佣金记录
func (s *LedgerService) ListCommissions(filter repository.CommissionListFilter) ([]models.Commission, int64, error) {
	if s.repo == nil {
		return []models.Commission{}, 0, nil
	}
	return s.repo.ListCommissions(filter)
}

// ListPayoutCommissions 查询提现单占用的佣金记录
func (s *LedgerService) ListPayoutCommissions(payoutID uint) ([]models.Commission, error) {
	if s.repo == nil || payoutID == 0 {
		return nil, ErrNotFound
	}
	links, err := s.repo.ListLinksByPayout(payoutID)
	if err != nil {
		return nil, err
	}
	commissions := make([]models.Commission, 0, len(links))
	for _, link := range links {
		commission, err := s.repo.GetCommissionByID(link.CommissionID)
		if err != nil {
			return nil, err
		}
		if commission != nil {
			commissions = append(commissions, *commission)
		}
	}
	return commissions, nil
}

// ConfirmDueCommissions 将确认期已到的佣金批量置为已确认
func (s *LedgerService) ConfirmDueCommissions(now time.Time) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	affected, err := s.repo.MarkDueCommissionsApproved(now, now)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logger.Infow("commissions confirmed", "count", affected)
	}
	return affected, nil
}

func generatePayoutNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("RMP%s%s", now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
