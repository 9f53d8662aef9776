package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig 重试配置
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts"`     // 最大重试次数
	InitialInterval time.Duration `json:"initial_interval"` // 初始重试间隔
	MaxInterval     time.Duration `json:"max_interval"`     // 最大重试间隔
	BackoffFactor   float64       `json:"backoff_factor"`   // 退避因子
	EnableJitter    bool          `json:"enable_jitter"`    // 启用抖动
}

// DefaultRetryConfig 默认重试配置
var DefaultRetryConfig = &RetryConfig{
	MaxAttempts:     5,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     30 * time.Second,
	BackoffFactor:   2.0,
	EnableJitter:    true,
}

// StartupRetryConfig 启动阶段外部依赖连接重试配置
// 数据库/Kafka等依赖在进程启动时可能尚未就绪
var StartupRetryConfig = &RetryConfig{
	MaxAttempts:     10,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
	BackoffFactor:   2.0,
	EnableJitter:    true,
}

// Retrier 重试器
type Retrier struct {
	config *RetryConfig
	logger *logrus.Logger
	rand   *rand.Rand
}

// NewRetrier 创建重试器
func NewRetrier(config *RetryConfig, logger *logrus.Logger) *Retrier {
	if config == nil {
		config = DefaultRetryConfig
	}

	return &Retrier{
		config: config,
		logger: logger,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ExecuteFunc 执行函数类型
type ExecuteFunc func() error

// Execute 执行重试逻辑
func (r *Retrier) Execute(ctx context.Context, operation string, fn ExecuteFunc) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Debugf("操作 '%s' 在第 %d 次尝试后成功", operation, attempt)
			}
			return nil
		}

		lastErr = err

		if attempt == r.config.MaxAttempts {
			r.logger.Errorf("操作 '%s' 在 %d 次尝试后最终失败: %v", operation, attempt, err)
			return fmt.Errorf("重试 %d 次后失败: %w", attempt, err)
		}

		delay := r.calculateDelay(attempt)
		r.logger.Debugf("操作 '%s' 第 %d 次失败: %v，%v 后重试", operation, attempt, err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// calculateDelay 计算延迟时间（指数退避）
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialInterval) * math.Pow(r.config.BackoffFactor, float64(attempt-1))

	if delay > float64(r.config.MaxInterval) {
		delay = float64(r.config.MaxInterval)
	}

	// 抖动避免惊群效应
	if r.config.EnableJitter {
		jitter := delay * 0.1
		delay = delay - jitter + (r.rand.Float64() * jitter * 2)
		if delay < 0 {
			delay = float64(r.config.InitialInterval)
		}
	}

	return time.Duration(delay)
}
