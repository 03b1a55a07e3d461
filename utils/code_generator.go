package utils

import (
	"crypto/rand"
	"fmt"
	mathrand "math/rand"
	"time"
)

// 推广码字符集
const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// 推广码长度
const affiliateCodeLength = 8

// GenerateRandomCode 生成指定长度的随机字符码
func GenerateRandomCode(length int) string {
	code := make([]byte, length)

	// 使用安全的随机数生成
	_, err := rand.Read(code)
	if err != nil {
		// 如果安全随机数生成失败，回退到不安全的方法
		// 创建一个新的随机数生成器实例，而不是使用全局的Seed
		r := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
		for i := range code {
			code[i] = charset[r.Intn(len(charset))]
		}
		return string(code)
	}

	// 将随机字节映射到字符集
	for i := range code {
		code[i] = charset[int(code[i])%len(charset)]
	}

	return string(code)
}

// GenerateAffiliateCode 生成候选推广码
// 唯一性由调用方对数据库查重保证
func GenerateAffiliateCode() string {
	return GenerateRandomCode(affiliateCodeLength)
}

// FallbackAffiliateCode 生成兜底推广码
// 当随机推广码多次与已有记录冲突时使用，以时间戳保证唯一
func FallbackAffiliateCode() string {
	r := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	return fmt.Sprintf("REF%d%03d", time.Now().Unix(), r.Intn(900)+100)
}
