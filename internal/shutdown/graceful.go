package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// 停机顺序常量，数字越小越早执行
const (
	OrderStopScheduler  = 10 // 停止同步调度循环
	OrderStopHTTPServer = 20 // 停止HTTP服务（等待在途请求）
	OrderClosePublisher = 30 // 关闭事件发布器
	OrderSaveProgress   = 40 // 落盘进度快照
	OrderCloseStorage   = 50 // 关闭数据库连接
)

// hook 停机处理函数
type hook struct {
	name  string
	fn    func(ctx context.Context) error
	order int
}

// GracefulShutdown 优雅停机管理器
type GracefulShutdown struct {
	logger         *logrus.Logger
	timeout        time.Duration
	hooks          []hook
	mu             sync.Mutex
	signalChan     chan os.Signal
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	isShuttingDown bool
}

// NewGracefulShutdown 创建优雅停机管理器
func NewGracefulShutdown(timeout time.Duration, logger *logrus.Logger) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	gs := &GracefulShutdown{
		logger:     logger,
		timeout:    timeout,
		signalChan: make(chan os.Signal, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	signal.Notify(gs.signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return gs
}

// Register 注册停机处理函数
func (gs *GracefulShutdown) Register(name string, order int, fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	gs.hooks = append(gs.hooks, hook{name: name, fn: fn, order: order})
	gs.logger.Debugf("注册停机处理函数: %s (order: %d)", name, order)
}

// Context 返回停机时会被取消的主上下文
func (gs *GracefulShutdown) Context() context.Context {
	return gs.ctx
}

// Start 启动信号监听
func (gs *GracefulShutdown) Start() {
	go func() {
		sig := <-gs.signalChan
		gs.logger.Infof("收到停机信号: %v", sig)
		gs.Shutdown()
	}()
	gs.logger.Info("优雅停机管理器已启动，监听信号: SIGINT, SIGTERM, SIGQUIT")
}

// Wait 阻塞到停机流程完成
func (gs *GracefulShutdown) Wait() {
	<-gs.done
}

// Shutdown 触发停机流程，重复调用只生效一次
func (gs *GracefulShutdown) Shutdown() {
	gs.mu.Lock()
	if gs.isShuttingDown {
		gs.mu.Unlock()
		return
	}
	gs.isShuttingDown = true
	hooks := make([]hook, len(gs.hooks))
	copy(hooks, gs.hooks)
	gs.mu.Unlock()

	gs.logger.Info("开始优雅停机流程...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gs.timeout)
	defer shutdownCancel()

	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].order < hooks[j].order })

	for _, h := range hooks {
		start := time.Now()
		if err := h.fn(shutdownCtx); err != nil {
			gs.logger.Errorf("停机处理 '%s' 失败 (耗时: %v): %v", h.name, time.Since(start), err)
		} else {
			gs.logger.Infof("停机处理 '%s' 完成 (耗时: %v)", h.name, time.Since(start))
		}

		select {
		case <-shutdownCtx.Done():
			gs.logger.Warn("停机超时，强制退出")
			gs.cancel()
			close(gs.done)
			return
		default:
		}
	}

	gs.cancel()
	signal.Stop(gs.signalChan)
	close(gs.done)
	gs.logger.Info("优雅停机流程完成")
}

// IsShuttingDown 检查是否正在停机
func (gs *GracefulShutdown) IsShuttingDown() bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.isShuttingDown
}
