package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/refmart/refmart/internal/http/response"
	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/repository"
	"github.com/refmart/refmart/internal/service"

	"github.com/gin-gonic/gin"
)

// ListPayouts 后台查询提现单列表
func (h *Handler) ListPayouts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)
	status := models.PayoutStatus(strings.TrimSpace(c.Query("status")))
	if status != "" && !status.Valid() {
		respondError(c, response.CodeBadRequest, "提现状态无效", nil)
		return
	}

	rows, total, err := h.LedgerService.ListPayouts(repository.PayoutListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uint(userID),
		PayoutNo: strings.TrimSpace(c.Query("payout_no")),
		Status:   status,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetPayout 后台查询提现单详情（含占用佣金明细）
func (h *Handler) GetPayout(c *gin.Context) {
	payoutID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || payoutID == 0 {
		respondError(c, response.CodeBadRequest, "提现单ID无效", nil)
		return
	}
	payout, getErr := h.LedgerService.GetPayout(uint(payoutID))
	if getErr != nil {
		if errors.Is(getErr, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "提现单不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "查询失败", getErr)
		return
	}
	commissions, listErr := h.LedgerService.ListPayoutCommissions(uint(payoutID))
	if listErr != nil {
		respondError(c, response.CodeInternal, "查询失败", listErr)
		return
	}
	response.Success(c, gin.H{
		"payout":      payout,
		"commissions": commissions,
	})
}

// PayoutResolveRequest 提现处理请求
type PayoutResolveRequest struct {
	Action        string `json:"action" binding:"required"` // approved / paid / rejected
	TransactionID string `json:"transaction_id"`
	RejectReason  string `json:"reject_reason"`
}

// ResolvePayout 后台处理提现单
func (h *Handler) ResolvePayout(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	payoutID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || payoutID == 0 {
		respondError(c, response.CodeBadRequest, "提现单ID无效", nil)
		return
	}

	var req PayoutResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	payout, resolveErr := h.LedgerService.ResolvePayout(adminID, uint(payoutID), service.PayoutResolveInput{
		Action:        models.PayoutStatus(strings.ToLower(strings.TrimSpace(req.Action))),
		TransactionID: req.TransactionID,
		RejectReason:  req.RejectReason,
	})
	if resolveErr != nil {
		switch {
		case errors.Is(resolveErr, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "提现单不存在", nil)
		case errors.Is(resolveErr, service.ErrPayoutStatusInvalid):
			respondError(c, response.CodeBadRequest, "提现状态不允许该操作", nil)
		case errors.Is(resolveErr, service.ErrPayoutRejectReasonEmpty):
			respondError(c, response.CodeBadRequest, "驳回原因不能为空", nil)
		default:
			respondError(c, response.CodeInternal, "处理失败", resolveErr)
		}
		return
	}
	requestLog(c).Infow("admin_resolve_payout",
		"admin_id", adminID, "payout_id", payoutID, "action", req.Action)
	response.Success(c, payout)
}
