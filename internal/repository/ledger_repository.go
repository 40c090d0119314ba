package repository

import (
	"errors"
	"time"

	"github.com/refmart/refmart/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository 佣金账本与提现数据访问接口
type LedgerRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) LedgerRepository

	CreateCommission(commission *models.Commission) error
	UpdateCommission(commission *models.Commission) error
	GetCommissionByID(id uint) (*models.Commission, error)
	GetCommissionByOrderAndUser(orderID, userID uint) (*models.Commission, error)
	ListCommissions(filter CommissionListFilter) ([]models.Commission, int64, error)
	ListCommissionsByOrder(orderID uint, statuses []models.CommissionStatus) ([]models.Commission, error)
	ListCommissionsByOrderForUpdate(orderID uint, statuses []models.CommissionStatus) ([]models.Commission, error)
	BatchUpdateCommissions(ids []uint, updates map[string]interface{}) error
	MarkDueCommissionsApproved(before, now time.Time) (int64, error)
	SumCommissionAmount(userID uint, statuses []models.CommissionStatus) (decimal.Decimal, error)
	ListPayoutCandidatesForUpdate(userID uint) ([]models.Commission, error)

	CreatePayout(payout *models.Payout) error
	UpdatePayout(payout *models.Payout) error
	GetPayoutByID(id uint) (*models.Payout, error)
	GetPayoutByIDForUpdate(id uint) (*models.Payout, error)
	GetPayoutByNo(payoutNo string) (*models.Payout, error)
	ListPayouts(filter PayoutListFilter) ([]models.Payout, int64, error)
	SumPayoutAmount(userID uint, statuses []models.PayoutStatus) (decimal.Decimal, error)

	CreateLink(link *models.PayoutCommission) error
	ListLinksByPayout(payoutID uint) ([]models.PayoutCommission, error)
	DeleteLinksByPayout(payoutID uint) error
	ListCommissionsByPayoutForUpdate(payoutID uint) ([]models.Commission, error)
	CommissionLinkedToActivePayout(commissionID uint) (bool, error)
	SumPendingAllocatedValue(userID uint) (decimal.Decimal, error)
}

// GormLedgerRepository GORM 佣金账本仓储
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建佣金账本仓储
func NewLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &GormLedgerRepository{db: tx}
}

// Transaction 执行事务
func (r *GormLedgerRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateCommission 创建佣金记录
func (r *GormLedgerRepository) CreateCommission(commission *models.Commission) error {
	return r.db.Create(commission).Error
}

// UpdateCommission 更新佣金记录
func (r *GormLedgerRepository) UpdateCommission(commission *models.Commission) error {
	return r.db.Save(commission).Error
}

// GetCommissionByID 按ID获取佣金记录
func (r *GormLedgerRepository) GetCommissionByID(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetCommissionByOrderAndUser 按订单与用户获取佣金记录
func (r *GormLedgerRepository) GetCommissionByOrderAndUser(orderID, userID uint) (*models.Commission, error) {
	if orderID == 0 || userID == 0 {
		return nil, nil
	}
	var commission models.Commission
	err := r.db.Where("order_id = ? AND user_id = ?", orderID, userID).First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// ListCommissions 分页查询佣金记录
func (r *GormLedgerRepository) ListCommissions(filter CommissionListFilter) ([]models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.OrderID > 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_id IN (?)", r.db.Model(&models.Order{}).Select("id").Where("order_no = ?", filter.OrderNo))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var commissions []models.Commission
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Preload("Order").Order("id DESC").Find(&commissions).Error; err != nil {
		return nil, 0, err
	}
	return commissions, total, nil
}

// ListCommissionsByOrder 按订单查询佣金记录
func (r *GormLedgerRepository) ListCommissionsByOrder(orderID uint, statuses []models.CommissionStatus) ([]models.Commission, error) {
	return r.listCommissionsByOrder(orderID, statuses, false)
}

// ListCommissionsByOrderForUpdate 按订单加锁查询佣金记录
func (r *GormLedgerRepository) ListCommissionsByOrderForUpdate(orderID uint, statuses []models.CommissionStatus) ([]models.Commission, error) {
	return r.listCommissionsByOrder(orderID, statuses, true)
}

func (r *GormLedgerRepository) listCommissionsByOrder(orderID uint, statuses []models.CommissionStatus, forUpdate bool) ([]models.Commission, error) {
	if orderID == 0 {
		return nil, nil
	}
	query := r.db.Where("order_id = ?", orderID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", commissionStatusValues(statuses))
	}
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var commissions []models.Commission
	if err := query.Order("id ASC").Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

// BatchUpdateCommissions 批量更新佣金字段
func (r *GormLedgerRepository) BatchUpdateCommissions(ids []uint, updates map[string]interface{}) error {
	if len(ids) == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Commission{}).Where("id IN ?", ids).Updates(updates).Error
}

// MarkDueCommissionsApproved 将确认期已到的待确认佣金批量置为已确认
func (r *GormLedgerRepository) MarkDueCommissionsApproved(before, now time.Time) (int64, error) {
	result := r.db.Model(&models.Commission{}).
		Where("status = ? AND confirm_at IS NOT NULL AND confirm_at <= ?", string(models.CommissionStatusPending), before).
		Updates(map[string]interface{}{
			"status":     string(models.CommissionStatusApproved),
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumCommissionAmount 按状态汇总用户佣金金额
func (r *GormLedgerRepository) SumCommissionAmount(userID uint, statuses []models.CommissionStatus) (decimal.Decimal, error) {
	if userID == 0 || len(statuses) == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.Model(&models.Commission{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND status IN ?", userID, commissionStatusValues(statuses)).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// ListPayoutCandidatesForUpdate 加锁查询可纳入提现分配的佣金记录
//
// 候选为用户名下已确认或待确认的佣金，且未被已通过或已打款的提现单占用。
// 待审核提现单不排除佣金，其占用额已在余额计算中预留。
// 按创建时间与ID升序返回，保证先进先出分配顺序稳定。
func (r *GormLedgerRepository) ListPayoutCandidatesForUpdate(userID uint) ([]models.Commission, error) {
	if userID == 0 {
		return nil, nil
	}
	linked := r.db.Model(&models.PayoutCommission{}).
		Select("payout_commissions.commission_id").
		Joins("JOIN payouts ON payouts.id = payout_commissions.payout_id").
		Where("payouts.status IN ?", payoutStatusValues(models.PayoutProcessedStatuses()))

	var commissions []models.Commission
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status IN ?", userID, commissionStatusValues(models.CommissionAllocatableStatuses())).
		Where("id NOT IN (?)", linked).
		Order("created_at ASC, id ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// CreatePayout 创建提现单
func (r *GormLedgerRepository) CreatePayout(payout *models.Payout) error {
	return r.db.Create(payout).Error
}

// UpdatePayout 更新提现单
func (r *GormLedgerRepository) UpdatePayout(payout *models.Payout) error {
	return r.db.Save(payout).Error
}

// GetPayoutByID 按ID获取提现单
func (r *GormLedgerRepository) GetPayoutByID(id uint) (*models.Payout, error) {
	return r.getPayoutByID(id, false)
}

// GetPayoutByIDForUpdate 按ID加锁获取提现单
func (r *GormLedgerRepository) GetPayoutByIDForUpdate(id uint) (*models.Payout, error) {
	return r.getPayoutByID(id, true)
}

func (r *GormLedgerRepository) getPayoutByID(id uint, forUpdate bool) (*models.Payout, error) {
	if id == 0 {
		return nil, nil
	}
	query := r.db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var payout models.Payout
	if err := query.First(&payout, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// GetPayoutByNo 按提现单号获取提现单
func (r *GormLedgerRepository) GetPayoutByNo(payoutNo string) (*models.Payout, error) {
	if payoutNo == "" {
		return nil, nil
	}
	var payout models.Payout
	if err := r.db.Where("payout_no = ?", payoutNo).First(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// ListPayouts 分页查询提现单
func (r *GormLedgerRepository) ListPayouts(filter PayoutListFilter) ([]models.Payout, int64, error) {
	query := r.db.Model(&models.Payout{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.PayoutNo != "" {
		query = query.Where("payout_no = ?", filter.PayoutNo)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payouts []models.Payout
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Preload("User").Order("id DESC").Find(&payouts).Error; err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

// SumPayoutAmount 按状态汇总用户提现金额
func (r *GormLedgerRepository) SumPayoutAmount(userID uint, statuses []models.PayoutStatus) (decimal.Decimal, error) {
	if userID == 0 || len(statuses) == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.Model(&models.Payout{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND status IN ?", userID, payoutStatusValues(statuses)).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// CreateLink 创建提现佣金关联
func (r *GormLedgerRepository) CreateLink(link *models.PayoutCommission) error {
	return r.db.Create(link).Error
}

// ListLinksByPayout 查询提现单的佣金关联
func (r *GormLedgerRepository) ListLinksByPayout(payoutID uint) ([]models.PayoutCommission, error) {
	if payoutID == 0 {
		return nil, nil
	}
	var links []models.PayoutCommission
	err := r.db.Where("payout_id = ?", payoutID).Order("id ASC").Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// DeleteLinksByPayout 删除提现单的全部佣金关联
func (r *GormLedgerRepository) DeleteLinksByPayout(payoutID uint) error {
	if payoutID == 0 {
		return nil
	}
	return r.db.Where("payout_id = ?", payoutID).Delete(&models.PayoutCommission{}).Error
}

// ListCommissionsByPayoutForUpdate 加锁查询提现单关联的佣金记录
func (r *GormLedgerRepository) ListCommissionsByPayoutForUpdate(payoutID uint) ([]models.Commission, error) {
	if payoutID == 0 {
		return nil, nil
	}
	linked := r.db.Model(&models.PayoutCommission{}).
		Select("commission_id").
		Where("payout_id = ?", payoutID)

	var commissions []models.Commission
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN (?)", linked).
		Order("id ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// CommissionLinkedToActivePayout 判断佣金是否已被未驳回的提现单占用
func (r *GormLedgerRepository) CommissionLinkedToActivePayout(commissionID uint) (bool, error) {
	if commissionID == 0 {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.PayoutCommission{}).
		Joins("JOIN payouts ON payouts.id = payout_commissions.payout_id").
		Where("payout_commissions.commission_id = ? AND payouts.status IN ?",
			commissionID, payoutStatusValues(models.PayoutActiveStatuses())).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumPendingAllocatedValue 汇总用户待审核提现单已占用的佣金价值
func (r *GormLedgerRepository) SumPendingAllocatedValue(userID uint) (decimal.Decimal, error) {
	if userID == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.Model(&models.Commission{}).
		Select("COALESCE(SUM(commissions.amount), 0) AS total").
		Joins("JOIN payout_commissions ON payout_commissions.commission_id = commissions.id").
		Joins("JOIN payouts ON payouts.id = payout_commissions.payout_id").
		Where("payouts.user_id = ? AND payouts.status = ?", userID, string(models.PayoutStatusPending)).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

func commissionStatusValues(statuses []models.CommissionStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return values
}

func payoutStatusValues(statuses []models.PayoutStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return values
}
