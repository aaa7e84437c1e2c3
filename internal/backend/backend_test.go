package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResolveTarget 测试目标解析：纯数字为PID, 否则为进程名
func TestResolveTarget(t *testing.T) {
	target := ResolveTarget("1234")
	assert.True(t, target.IsPID())
	assert.Equal(t, 1234, target.PID)
	assert.Equal(t, "1234", target.String())

	target = ResolveTarget("com.example.app")
	assert.False(t, target.IsPID())
	assert.Equal(t, "com.example.app", target.Name)
	assert.Equal(t, "com.example.app", target.String())

	// 带非数字字符的混合输入按进程名处理
	target = ResolveTarget("12ab")
	assert.False(t, target.IsPID())
	assert.Equal(t, "12ab", target.Name)
}
