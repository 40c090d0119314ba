package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/refmart/refmart/internal/http/response"
	"github.com/refmart/refmart/internal/repository"
	"github.com/refmart/refmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ListAgents 后台查询代理列表
func (h *Handler) ListAgents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)

	rows, total, err := h.ReferralService.ListAgents(repository.AgentProfileListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uint(userID),
		Code:     strings.TrimSpace(c.Query("code")),
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// AgentStatusRequest 代理状态更新请求
type AgentStatusRequest struct {
	Status string `json:"status" binding:"required"` // active / disabled
}

// UpdateAgentStatus 后台更新代理状态
func (h *Handler) UpdateAgentStatus(c *gin.Context) {
	profileID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || profileID == 0 {
		respondError(c, response.CodeBadRequest, "代理ID无效", nil)
		return
	}
	var req AgentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	profile, updateErr := h.ReferralService.UpdateAgentStatus(uint(profileID), req.Status)
	if updateErr != nil {
		switch {
		case errors.Is(updateErr, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "代理不存在", nil)
		case errors.Is(updateErr, service.ErrAgentDisabled):
			respondError(c, response.CodeBadRequest, "代理状态无效", nil)
		default:
			respondError(c, response.CodeInternal, "更新失败", updateErr)
		}
		return
	}
	response.Success(c, profile)
}

// AgentRateRequest 代理专属比例更新请求
type AgentRateRequest struct {
	RatePercent *string `json:"rate_percent"` // 为空时清除专属比例
}

// UpdateAgentRate 后台设置代理专属佣金比例
func (h *Handler) UpdateAgentRate(c *gin.Context) {
	profileID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || profileID == 0 {
		respondError(c, response.CodeBadRequest, "代理ID无效", nil)
		return
	}
	var req AgentRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	var rate *decimal.Decimal
	if req.RatePercent != nil && strings.TrimSpace(*req.RatePercent) != "" {
		parsed, parseErr := decimal.NewFromString(strings.TrimSpace(*req.RatePercent))
		if parseErr != nil {
			respondError(c, response.CodeBadRequest, "佣金比例无效", nil)
			return
		}
		rate = &parsed
	}

	profile, updateErr := h.ReferralService.UpdateAgentRateOverride(uint(profileID), rate)
	if updateErr != nil {
		switch {
		case errors.Is(updateErr, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "代理不存在", nil)
		case errors.Is(updateErr, service.ErrReferralCodeInvalid):
			respondError(c, response.CodeBadRequest, "佣金比例无效", nil)
		default:
			respondError(c, response.CodeInternal, "更新失败", updateErr)
		}
		return
	}
	response.Success(c, profile)
}
