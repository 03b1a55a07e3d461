package models

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// User 用户模型
// 既是商城的买家账户，也承载推广员（affiliate）视图：
// 推广余额只能由佣金清算、佣金取消和提现审批在事务内修改
type User struct {
	ID                uint            `json:"id" gorm:"primaryKey"`                                         // 主键ID
	Username          string          `json:"username" gorm:"size:50;uniqueIndex"`                          // 用户名，唯一
	Email             string          `json:"email" gorm:"size:100;uniqueIndex"`                            // 邮箱，唯一，登录用
	Password          string          `json:"-" gorm:"size:100"`                                            // 密码哈希，不返回给前端
	IsAdmin           bool            `json:"is_admin" gorm:"default:false"`                                // 是否管理员
	IsVerified        bool            `json:"is_verified" gorm:"default:true"`                              // 邮箱是否已验证
	IsAffiliate       bool            `json:"is_affiliate" gorm:"default:false"`                            // 是否推广员
	UserAffiliateCode *string         `json:"user_affiliate_code" gorm:"size:32;uniqueIndex"`               // 推广码，激活时分配，停用时置空
	AffiliateBalance  decimal.Decimal `json:"affiliate_balance" gorm:"type:decimal(10,2);default:0"`        // 可提现推广余额，不允许为负
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`                             // 创建时间
	UpdatedAt         time.Time       `json:"updated_at" gorm:"autoUpdateTime"`                             // 更新时间
}

// TableName 返回表名
func (User) TableName() string {
	return "users"
}

// SetPassword 设置加密密码
func (u *User) SetPassword(plainPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plainPassword))
	return err == nil
}
