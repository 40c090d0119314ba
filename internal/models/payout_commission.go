package models

import "time"

// PayoutCommission 提现单与佣金的占用链接表。
// 一条记录表示该佣金的价值已被对应提现单占用；提现单被驳回时链接删除，佣金释放。
type PayoutCommission struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                                     // 主键
	PayoutID     uint      `gorm:"not null;index;index:idx_payout_commission_unique,unique" json:"payout_id"` // 提现单ID
	CommissionID uint      `gorm:"not null;index;index:idx_payout_commission_unique,unique" json:"commission_id"` // 佣金ID
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                                                  // 创建时间

	Payout     Payout     `gorm:"foreignKey:PayoutID" json:"-"`     // 提现单
	Commission Commission `gorm:"foreignKey:CommissionID" json:"-"` // 佣金
}

// TableName 指定表名
func (PayoutCommission) TableName() string {
	return "payout_commissions"
}
