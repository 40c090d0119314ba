package models

import "time"

// OrderItem 订单项表
type OrderItem struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                     // 主键
	OrderID    uint      `gorm:"not null;index" json:"order_id"`                           // 订单ID
	ProductID  uint      `gorm:"not null;index" json:"product_id"`                         // 商品ID
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`                  // 商品标题快照
	UnitPrice  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // 单价快照
	Quantity   int       `gorm:"not null;default:1" json:"quantity"`                       // 数量
	TotalPrice Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 小计
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                                  // 创建时间

	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 商品信息
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
