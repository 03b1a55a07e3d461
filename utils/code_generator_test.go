package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandomCode(t *testing.T) {
	code := GenerateRandomCode(12)
	assert.Len(t, code, 12)
	for _, ch := range code {
		assert.Contains(t, charset, string(ch))
	}
}

func TestGenerateAffiliateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateAffiliateCode()
		assert.Len(t, code, affiliateCodeLength)
		seen[code] = true
	}
	// 随机码基本不应重复
	assert.Greater(t, len(seen), 90)
}

func TestFallbackAffiliateCode(t *testing.T) {
	code := FallbackAffiliateCode()
	assert.True(t, strings.HasPrefix(code, "REF"))
	assert.Greater(t, len(code), 10)
}
