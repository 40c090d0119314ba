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

// ProductSaveRequest 商品保存请求
type ProductSaveRequest struct {
	Slug              string `json:"slug" binding:"required"`
	Title             string `json:"title" binding:"required"`
	Description       string `json:"description"`
	Price             string `json:"price" binding:"required"`
	IsReferralEnabled bool   `json:"is_referral_enabled"`
	IsActive          bool   `json:"is_active"`
	SortOrder         int    `json:"sort_order"`
}

func (r ProductSaveRequest) toInput() (service.ProductSaveInput, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(r.Price))
	if err != nil {
		return service.ProductSaveInput{}, err
	}
	return service.ProductSaveInput{
		Slug:              r.Slug,
		Title:             r.Title,
		Description:       r.Description,
		Price:             price,
		IsReferralEnabled: r.IsReferralEnabled,
		IsActive:          r.IsActive,
		SortOrder:         r.SortOrder,
	}, nil
}

// ListAdminProducts 后台查询商品列表
func (h *Handler) ListAdminProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.ProductService.ListProducts(repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// CreateProduct 后台创建商品
func (h *Handler) CreateProduct(c *gin.Context) {
	var req ProductSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "商品价格无效", nil)
		return
	}
	product, createErr := h.ProductService.CreateProduct(input)
	if createErr != nil {
		if errors.Is(createErr, service.ErrProductUnavailable) {
			respondError(c, response.CodeBadRequest, "商品参数无效或标识已存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "创建失败", createErr)
		return
	}
	response.Success(c, product)
}

// UpdateProduct 后台更新商品
func (h *Handler) UpdateProduct(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || productID == 0 {
		respondError(c, response.CodeBadRequest, "商品ID无效", nil)
		return
	}
	var req ProductSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	input, inputErr := req.toInput()
	if inputErr != nil {
		respondError(c, response.CodeBadRequest, "商品价格无效", nil)
		return
	}
	product, updateErr := h.ProductService.UpdateProduct(uint(productID), input)
	if updateErr != nil {
		switch {
		case errors.Is(updateErr, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "商品不存在", nil)
		case errors.Is(updateErr, service.ErrProductUnavailable):
			respondError(c, response.CodeBadRequest, "商品参数无效", nil)
		default:
			respondError(c, response.CodeInternal, "更新失败", updateErr)
		}
		return
	}
	response.Success(c, product)
}

// DeleteProduct 后台删除商品
func (h *Handler) DeleteProduct(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || productID == 0 {
		respondError(c, response.CodeBadRequest, "商品ID无效", nil)
		return
	}
	if deleteErr := h.ProductService.DeleteProduct(uint(productID)); deleteErr != nil {
		if errors.Is(deleteErr, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "商品不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "删除失败", deleteErr)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
