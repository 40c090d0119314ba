package repository

import (
	"errors"
	"time"

	"github.com/refmart/refmart/internal/models"

	"gorm.io/gorm"
)

// AgentRepository 推广资料与点击数据访问接口
type AgentRepository interface {
	CreateProfile(profile *models.AgentProfile) error
	UpdateProfile(profile *models.AgentProfile) error
	GetProfileByID(id uint) (*models.AgentProfile, error)
	GetProfileByUserID(userID uint) (*models.AgentProfile, error)
	GetProfileByCode(code string) (*models.AgentProfile, error)
	ListProfiles(filter AgentProfileListFilter) ([]models.AgentProfile, int64, error)
	CreateClick(click *models.ReferralClick) error
	HasRecentClick(profileID uint, visitorKey string, since time.Time) (bool, error)
	GetLatestClickByVisitor(visitorKey string, since time.Time) (*models.ReferralClick, error)
	CountClicksByProfile(profileID uint, since time.Time) (int64, error)
}

// GormAgentRepository GORM 推广仓储
type GormAgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository 创建推广仓储
func NewAgentRepository(db *gorm.DB) *GormAgentRepository {
	return &GormAgentRepository{db: db}
}

// CreateProfile 创建推广资料
func (r *GormAgentRepository) CreateProfile(profile *models.AgentProfile) error {
	return r.db.Create(profile).Error
}

// UpdateProfile 更新推广资料
func (r *GormAgentRepository) UpdateProfile(profile *models.AgentProfile) error {
	return r.db.Save(profile).Error
}

// GetProfileByID 按ID获取推广资料
func (r *GormAgentRepository) GetProfileByID(id uint) (*models.AgentProfile, error) {
	if id == 0 {
		return nil, nil
	}
	var profile models.AgentProfile
	if err := r.db.First(&profile, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetProfileByUserID 按用户ID获取推广资料
func (r *GormAgentRepository) GetProfileByUserID(userID uint) (*models.AgentProfile, error) {
	if userID == 0 {
		return nil, nil
	}
	var profile models.AgentProfile
	if err := r.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetProfileByCode 按推广码获取推广资料
func (r *GormAgentRepository) GetProfileByCode(code string) (*models.AgentProfile, error) {
	if code == "" {
		return nil, nil
	}
	var profile models.AgentProfile
	if err := r.db.Where("referral_code = ?", code).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// ListProfiles 分页查询推广资料
func (r *GormAgentRepository) ListProfiles(filter AgentProfileListFilter) ([]models.AgentProfile, int64, error) {
	query := r.db.Model(&models.AgentProfile{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Code != "" {
		query = query.Where("referral_code = ?", filter.Code)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("referral_code LIKE ?", like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var profiles []models.AgentProfile
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Preload("User").Order("id DESC").Find(&profiles).Error; err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

// CreateClick 记录推广点击
func (r *GormAgentRepository) CreateClick(click *models.ReferralClick) error {
	return r.db.Create(click).Error
}

// HasRecentClick 判断访客近期是否已记录同一推广位点击
func (r *GormAgentRepository) HasRecentClick(profileID uint, visitorKey string, since time.Time) (bool, error) {
	if profileID == 0 || visitorKey == "" {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.ReferralClick{}).
		Where("agent_profile_id = ? AND visitor_key = ? AND created_at >= ?", profileID, visitorKey, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetLatestClickByVisitor 获取访客归因窗口内最近一次点击
func (r *GormAgentRepository) GetLatestClickByVisitor(visitorKey string, since time.Time) (*models.ReferralClick, error) {
	if visitorKey == "" {
		return nil, nil
	}
	var click models.ReferralClick
	err := r.db.Where("visitor_key = ? AND created_at >= ?", visitorKey, since).
		Order("created_at DESC, id DESC").
		First(&click).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &click, nil
}

// CountClicksByProfile 统计推广位点击数
func (r *GormAgentRepository) CountClicksByProfile(profileID uint, since time.Time) (int64, error) {
	if profileID == 0 {
		return 0, nil
	}
	query := r.db.Model(&models.ReferralClick{}).Where("agent_profile_id = ?", profileID)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
