package errors

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	// KindInvalidEncoding 编解码输入格式错误（数据完整性问题，不可重试）
	KindInvalidEncoding Kind = iota
	// KindChainUnavailable 链节点网络/超时/非2xx错误（下个tick重试）
	KindChainUnavailable
	// KindDeliveryFailure Indexer ingress投递失败（下个tick重试同一区块）
	KindDeliveryFailure
	// KindIndexing 区块索引事务内部错误（整体回滚后按投递失败重试）
	KindIndexing
	// KindBadRequest 用户请求错误（方法不在ABI中等），不重试
	KindBadRequest
	// KindNotFound 请求的实体不存在
	KindNotFound
	// KindInternal 其他内部错误
	KindInternal
)

// 类别字符串映射
var kindNames = map[Kind]string{
	KindInvalidEncoding:  "InvalidEncoding",
	KindChainUnavailable: "ChainUnavailable",
	KindDeliveryFailure:  "DeliveryFailure",
	KindIndexing:         "IndexingError",
	KindBadRequest:       "BadRequest",
	KindNotFound:         "NotFound",
	KindInternal:         "Internal",
}

// String 返回类别的字符串表示
func (k Kind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", k)
}

// ExplorerError 自定义错误类型
type ExplorerError struct {
	Kind        Kind    `json:"kind"`
	Code        string  `json:"code"`
	Message     string  `json:"message"`
	Cause       error   `json:"-"`
	Retryable   bool    `json:"retryable"`
	BlockNumber *uint64 `json:"block_number,omitempty"`
	TxHash      *string `json:"tx_hash,omitempty"`
}

// Error 实现error接口
func (e *ExplorerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *ExplorerError) Unwrap() error {
	return e.Cause
}

// IsRetryable 判断是否可重试
func (e *ExplorerError) IsRetryable() bool {
	return e.Retryable
}

// WithBlockNumber 添加区块号上下文
func (e *ExplorerError) WithBlockNumber(blockNumber uint64) *ExplorerError {
	e.BlockNumber = &blockNumber
	return e
}

// WithTxHash 添加交易哈希上下文
func (e *ExplorerError) WithTxHash(txHash string) *ExplorerError {
	e.TxHash = &txHash
	return e
}

// determineRetryable 根据类别判断是否可重试
func determineRetryable(kind Kind) bool {
	switch kind {
	case KindChainUnavailable, KindDeliveryFailure, KindIndexing:
		return true
	default:
		return false
	}
}

// New 创建新的错误
func New(kind Kind, code, message string) *ExplorerError {
	return &ExplorerError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Retryable: determineRetryable(kind),
	}
}

// Wrap 包装现有错误
func Wrap(err error, kind Kind, code, message string) *ExplorerError {
	return &ExplorerError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Cause:     err,
		Retryable: determineRetryable(kind),
	}
}

// NewInvalidEncoding 创建编码错误
func NewInvalidEncoding(input string) *ExplorerError {
	return New(KindInvalidEncoding, "INVALID_ENCODING",
		fmt.Sprintf("无效的编码输入: %q", input))
}

// NewChainUnavailable 创建链节点不可用错误
func NewChainUnavailable(operation string, err error) *ExplorerError {
	return Wrap(err, KindChainUnavailable, "CHAIN_UNAVAILABLE",
		fmt.Sprintf("链节点请求失败: %s", operation))
}

// NewDeliveryFailure 创建投递失败错误
func NewDeliveryFailure(blockNumber uint64, err error) *ExplorerError {
	e := Wrap(err, KindDeliveryFailure, "DELIVERY_FAILURE", "区块投递到Indexer失败")
	return e.WithBlockNumber(blockNumber)
}

// NewIndexingError 创建索引错误
func NewIndexingError(blockNumber uint64, err error) *ExplorerError {
	e := Wrap(err, KindIndexing, "INDEXING_FAILED", "区块索引失败")
	return e.WithBlockNumber(blockNumber)
}

// NewBadRequest 创建请求错误
func NewBadRequest(message string) *ExplorerError {
	return New(KindBadRequest, "BAD_REQUEST", message)
}

// NewNotFound 创建实体不存在错误
func NewNotFound(entity, key string) *ExplorerError {
	return New(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s不存在: %s", entity, key))
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	var ee *ExplorerError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}

// IsRetryable 判断任意错误是否可重试
func IsRetryable(err error) bool {
	var ee *ExplorerError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}
