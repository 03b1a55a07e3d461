package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品模型
// AffiliateBonusPercentage 为推广佣金比例（百分数），下单时快照到佣金记录，
// 之后修改商品比例不影响已产生的佣金
type Product struct {
	ID                       uint            `json:"id" gorm:"primaryKey"`                                          // 主键ID
	Name                     string          `json:"name" gorm:"size:100;not null"`                                 // 商品名称
	Description              string          `json:"description" gorm:"type:text"`                                  // 商品描述
	Price                    decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`                      // 单价
	StockQuantity            int             `json:"stock_quantity" gorm:"default:0"`                               // 库存数量
	ImageURL                 *string         `json:"image_url" gorm:"size:255"`                                     // 商品图片URL
	AffiliateBonusPercentage decimal.Decimal `json:"affiliate_bonus_percentage" gorm:"type:decimal(5,2);default:0"` // 推广佣金比例，0-100
	CreatedAt                time.Time       `json:"created_at" gorm:"autoCreateTime"`                              // 创建时间
	UpdatedAt                time.Time       `json:"updated_at" gorm:"autoUpdateTime"`                              // 更新时间
}

// TableName 返回表名
func (Product) TableName() string {
	return "products"
}
