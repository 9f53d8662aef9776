package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "InvalidEncoding", KindInvalidEncoding.String())
	assert.Equal(t, "ChainUnavailable", KindChainUnavailable.String())
	assert.Equal(t, "IndexingError", KindIndexing.String())
	assert.Equal(t, "Unknown(99)", Kind(99).String())
}

func TestErrorFormat(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, KindChainUnavailable, "CHAIN_UNAVAILABLE", "链节点请求失败")

	assert.Contains(t, err.Error(), "CHAIN_UNAVAILABLE")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestRetryableByKind(t *testing.T) {
	tests := []struct {
		name      string
		err       *ExplorerError
		retryable bool
	}{
		{"链节点不可用可重试", NewChainUnavailable("getBlock", fmt.Errorf("timeout")), true},
		{"投递失败可重试", NewDeliveryFailure(7, fmt.Errorf("503")), true},
		{"索引错误可重试", NewIndexingError(7, fmt.Errorf("constraint")), true},
		{"编码错误不可重试", NewInvalidEncoding("xyz"), false},
		{"用户请求错误不可重试", NewBadRequest("method not found"), false},
		{"实体不存在不可重试", NewNotFound("区块", "0xabc"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestIsKind(t *testing.T) {
	err := NewNotFound("合约", "0xC")

	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindBadRequest))

	// 包装后仍可识别
	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsKind(wrapped, KindNotFound))

	// 普通错误不匹配任何类别
	assert.False(t, IsKind(fmt.Errorf("plain"), KindNotFound))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

func TestContextFields(t *testing.T) {
	err := NewIndexingError(42, fmt.Errorf("boom")).WithTxHash("0xdead")

	assert.NotNil(t, err.BlockNumber)
	assert.Equal(t, uint64(42), *err.BlockNumber)
	assert.NotNil(t, err.TxHash)
	assert.Equal(t, "0xdead", *err.TxHash)
}
