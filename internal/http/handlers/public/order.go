package public

import (
	"strconv"
	"strings"

	"github.com/refmart/refmart/internal/http/response"
	"github.com/refmart/refmart/internal/repository"
	"github.com/refmart/refmart/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateOrderItemRequest 下单商品项请求
type CreateOrderItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	Items        []CreateOrderItemRequest `json:"items" binding:"required"`
	ReferralCode string                   `json:"referral_code"`
	VisitorKey   string                   `json:"visitor_key"`
}

// CreateOrder 创建订单
func (h *Handler) CreateOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	items := make([]service.CreateOrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CreateOrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.OrderService.CreateOrder(uid, service.CreateOrderInput{
		Items:        items,
		ReferralCode: req.ReferralCode,
		VisitorKey:   req.VisitorKey,
		ClientIP:     c.ClientIP(),
	})
	if err != nil {
		respondOrderCreateError(c, err)
		return
	}
	response.Success(c, order)
}

// ListMyOrders 查询我的订单
func (h *Handler) ListMyOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.OrderService.ListOrders(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetMyOrder 查询我的订单详情
func (h *Handler) GetMyOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	order, getErr := h.OrderService.GetUserOrder(uid, uint(orderID))
	if getErr != nil {
		respondOrderTransitionError(c, getErr)
		return
	}
	response.Success(c, order)
}

// CancelMyOrder 取消我的订单
func (h *Handler) CancelMyOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		respondError(c, response.CodeBadRequest, "订单ID无效", nil)
		return
	}
	if _, err := h.OrderService.GetUserOrder(uid, uint(orderID)); err != nil {
		respondOrderTransitionError(c, err)
		return
	}
	order, cancelErr := h.OrderService.CancelOrder(uint(orderID), "user_canceled")
	if cancelErr != nil {
		respondOrderTransitionError(c, cancelErr)
		return
	}
	response.Success(c, order)
}
