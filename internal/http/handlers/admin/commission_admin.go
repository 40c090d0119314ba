package admin

import (
	"strconv"
	"strings"

	"github.com/refmart/refmart/internal/http/response"
	"github.com/refmart/refmart/internal/models"
	"github.com/refmart/refmart/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListCommissions 后台查询佣金记录
func (h *Handler) ListCommissions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)
	orderID, _ := strconv.ParseUint(c.Query("order_id"), 10, 64)
	status := models.CommissionStatus(strings.TrimSpace(c.Query("status")))
	if status != "" && !status.Valid() {
		respondError(c, response.CodeBadRequest, "佣金状态无效", nil)
		return
	}

	rows, total, err := h.LedgerService.ListCommissions(repository.CommissionListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uint(userID),
		OrderID:  uint(orderID),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
		Status:   status,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}
