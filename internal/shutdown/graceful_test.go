package shutdown

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShutdown() *GracefulShutdown {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewGracefulShutdown(5*time.Second, logger)
}

// 处理函数按order由小到大执行：调度器最先停，数据库最后关
func TestShutdownHookOrder(t *testing.T) {
	gs := newTestShutdown()

	var executed []string
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			executed = append(executed, name)
			return nil
		}
	}

	// 故意乱序注册
	gs.Register("数据库", OrderCloseStorage, record("数据库"))
	gs.Register("调度器", OrderStopScheduler, record("调度器"))
	gs.Register("进度快照", OrderSaveProgress, record("进度快照"))
	gs.Register("HTTP服务", OrderStopHTTPServer, record("HTTP服务"))
	gs.Register("发布器", OrderClosePublisher, record("发布器"))

	gs.Shutdown()

	assert.Equal(t,
		[]string{"调度器", "HTTP服务", "发布器", "进度快照", "数据库"},
		executed)
}

// 停机取消主上下文并解除Wait阻塞
func TestShutdownCancelsContext(t *testing.T) {
	gs := newTestShutdown()

	stopped := false
	gs.Register("调度器", OrderStopScheduler, func(ctx context.Context) error {
		// 处理函数执行期间主上下文尚未取消
		require.NoError(t, gs.Context().Err())
		stopped = true
		return nil
	})

	gs.Shutdown()
	gs.Wait()

	assert.True(t, stopped)
	assert.Error(t, gs.Context().Err())
	assert.True(t, gs.IsShuttingDown())
}

// 重复触发只执行一次
func TestShutdownIdempotent(t *testing.T) {
	gs := newTestShutdown()

	count := 0
	gs.Register("调度器", OrderStopScheduler, func(ctx context.Context) error {
		count++
		return nil
	})

	gs.Shutdown()
	gs.Shutdown()

	assert.Equal(t, 1, count)
}
