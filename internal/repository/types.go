package repository

import (
	"time"

	"github.com/refmart/refmart/internal/models"
)

// ProductListFilter 查询商品列表的过滤条件
type ProductListFilter struct {
	Page       int
	PageSize   int
	Search     string
	OnlyActive bool
}

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Status      string
	OrderNo     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// AgentProfileListFilter 查询代理档案列表的过滤条件
type AgentProfileListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Code     string
	Status   string
	Keyword  string
}

// CommissionListFilter 查询佣金列表的过滤条件
type CommissionListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	OrderID     uint
	OrderNo     string
	Status      models.CommissionStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PayoutListFilter 查询提现单列表的过滤条件
type PayoutListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	PayoutNo    string
	Status      models.PayoutStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
