package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/refmart/refmart/internal/http/response"
	"github.com/refmart/refmart/internal/repository"
	"github.com/refmart/refmart/internal/service"

	"github.com/gin-gonic/gin"
)

// ListOrders 后台查询订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)

	rows, total, err := h.OrderService.ListOrders(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uint(userID),
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetOrder 后台查询订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	order, getErr := h.OrderService.GetOrder(uint(orderID))
	if getErr != nil {
		if errors.Is(getErr, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "订单不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "查询失败", getErr)
		return
	}
	response.Success(c, order)
}

func (h *Handler) respondOrderTransition(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "订单不存在", nil)
	case errors.Is(err, service.ErrOrderStatusInvalid):
		respondError(c, response.CodeBadRequest, "订单状态不允许该操作", nil)
	default:
		respondError(c, response.CodeInternal, "订单操作失败", err)
	}
}

// MarkOrderPaid 后台标记订单已支付
func (h *Handler) MarkOrderPaid(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	order, markErr := h.OrderService.MarkOrderPaid(uint(orderID))
	if markErr != nil {
		h.respondOrderTransition(c, markErr)
		return
	}
	requestLog(c).Infow("admin_mark_order_paid", "admin_id", adminID, "order_id", orderID)
	response.Success(c, order)
}

// OrderCancelRequest 订单取消请求
type OrderCancelRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder 后台取消订单
func (h *Handler) CancelOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	var req OrderCancelRequest
	_ = c.ShouldBindJSON(&req)

	order, cancelErr := h.OrderService.CancelOrder(uint(orderID), req.Reason)
	if cancelErr != nil {
		h.respondOrderTransition(c, cancelErr)
		return
	}
	requestLog(c).Infow("admin_cancel_order", "admin_id", adminID, "order_id", orderID)
	response.Success(c, order)
}

// CompleteOrder 后台完成订单
func (h *Handler) CompleteOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	order, completeErr := h.OrderService.CompleteOrder(uint(orderID))
	if completeErr != nil {
		h.respondOrderTransition(c, completeErr)
		return
	}
	response.Success(c, order)
}
