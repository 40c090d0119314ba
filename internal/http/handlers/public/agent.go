package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/refmart/refmart/internal/http/response"
	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/repository"
	"github.com/refmart/refmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ReferralTrackClickRequest 推广点击记录请求
type ReferralTrackClickRequest struct {
	ReferralCode string `json:"referral_code" binding:"required"`
	VisitorKey   string `json:"visitor_key"`
	LandingPath  string `json:"landing_path"`
	Referrer     string `json:"referrer"`
}

// TrackReferralClick 记录推广点击
func (h *Handler) TrackReferralClick(c *gin.Context) {
	var req ReferralTrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if h.ReferralService != nil {
		if err := h.ReferralService.TrackClick(service.ReferralTrackClickInput{
			ReferralCode: req.ReferralCode,
			VisitorKey:   req.VisitorKey,
			LandingPath:  req.LandingPath,
			Referrer:     req.Referrer,
			ClientIP:     c.ClientIP(),
			UserAgent:    c.GetHeader("User-Agent"),
		}); err != nil {
			respondError(c, response.CodeInternal, "记录失败", err)
			return
		}
	}
	response.Success(c, gin.H{"ok": true})
}

// OpenAgent 开通推广身份
func (h *Handler) OpenAgent(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.ReferralService == nil {
		respondError(c, response.CodeInternal, "服务不可用", nil)
		return
	}

	profile, err := h.ReferralService.OpenAgent(uid)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountDisabled):
			respondError(c, response.CodeForbidden, "账号已被禁用", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "用户不存在", nil)
		default:
			respondError(c, response.CodeInternal, "开通失败", err)
		}
		return
	}
	response.Success(c, profile)
}

// GetAgentDashboard 获取推广用户中心数据
func (h *Handler) GetAgentDashboard(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.ReferralService == nil {
		respondError(c, response.CodeInternal, "服务不可用", nil)
		return
	}
	data, err := h.ReferralService.GetAgentDashboard(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "获取数据失败", err)
		return
	}
	response.Success(c, data)
}

// GetAgentBalance 获取我的可提现余额
func (h *Handler) GetAgentBalance(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.LedgerService == nil {
		respondError(c, response.CodeInternal, "服务不可用", nil)
		return
	}
	summary, err := h.LedgerService.AvailableBalance(uid)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "记录不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "获取余额失败", err)
		return
	}
	response.Success(c, summary)
}

// ListMyCommissions 查询我的佣金记录
func (h *Handler) ListMyCommissions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.LedgerService == nil {
		respondError(c, response.CodeInternal, "服务不可用", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	status := models.CommissionStatus(strings.TrimSpace(c.Query("status")))
	if status != "" && !status.Valid() {
		respondError(c, response.CodeBadRequest, "佣金状态无效", nil)
		return
	}

	rows, total, err := h.LedgerService.ListCommissions(repository.CommissionListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   status,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ListMyPayouts 查询我的提现记录
func (h *Handler) ListMyPayouts(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.LedgerService == nil {
		respondError(c, response.CodeInternal, "服务不可用", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	status := models.PayoutStatus(strings.TrimSpace(c.Query("status")))
	if status != "" && !status.Valid() {
		respondError(c, response.CodeBadRequest, "提现状态无效", nil)
		return
	}

	rows, total, err := h.LedgerService.ListPayouts(repository.PayoutListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   status,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetMyPayout 查询我的提现单详情
func (h *Handler) GetMyPayout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	payoutID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || payoutID == 0 {
		respondError(c, response.CodeBadRequest, "提现单ID无效", nil)
		return
	}
	payout, err := h.LedgerService.GetUserPayout(uid, uint(payoutID))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "提现单不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.Success(c, payout)
}

// PayoutApplyRequest 提现申请请求
type PayoutApplyRequest struct {
	Amount  string `json:"amount" binding:"required"`
	Channel string `json:"channel" binding:"required"`
	Account string `json:"account" binding:"required"`
}

// RequestPayout 提交提现申请
func (h *Handler) RequestPayout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.LedgerService == nil {
		respondError(c, response.CodeInternal, "服务不可用", nil)
		return
	}

	var req PayoutApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "提现金额无效", nil)
		return
	}

	payout, err := h.LedgerService.RequestPayout(uid, service.PayoutApplyInput{
		Amount:  amount,
		Channel: req.Channel,
		Account: req.Account,
	})
	if err != nil {
		respondPayoutApplyError(c, err)
		return
	}
	response.Success(c, payout)
}
