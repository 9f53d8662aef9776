package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"explorer/pkg/models"
)

// ChainReader 调度器对链节点的只读依赖
// BlockByNumber返回(nil, nil)表示区块尚未产出
type ChainReader interface {
	BlockByNumber(ctx context.Context, number uint64) (*models.ChainBlock, error)
}

// Deliverer 调度器对索引服务的投递依赖
type Deliverer interface {
	ProcessBlock(ctx context.Context, number uint64, block *models.ChainBlock) (*models.IndexResult, error)
	LastIndexed(ctx context.Context) (number uint64, found bool, err error)
}

// Recorder 进度快照记录依赖（仅观测用途）
type Recorder interface {
	Record(blockNumber uint64)
}

// Syncer 同步调度器
// 每个tick抓取索引进度之后的下一个区块并投递给索引服务
type Syncer struct {
	chain    ChainReader
	indexer  Deliverer
	recorder Recorder
	logger   *logrus.Logger
	interval time.Duration

	// 单飞守卫：上一个tick未结束时跳过本tick
	running atomic.Bool
}

// New 创建同步调度器
func New(chain ChainReader, indexer Deliverer, recorder Recorder, interval time.Duration, logger *logrus.Logger) *Syncer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Syncer{
		chain:    chain,
		indexer:  indexer,
		recorder: recorder,
		logger:   logger,
		interval: interval,
	}
}

// Run 启动调度循环，阻塞到ctx取消
// tick内的任何失败都不终止循环，下一tick从持久化进度重新推进
func (s *Syncer) Run(ctx context.Context) {
	s.logger.Infof("同步调度器启动，tick间隔: %v", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同步调度器退出")
			return
		case <-ticker.C:
			if _, err := s.SyncOnce(ctx); err != nil {
				s.logger.Warnf("本轮同步失败，下一tick重试: %v", err)
			}
		}
	}
}

// SyncOnce 执行单个同步tick，返回本轮成功投递的区块数（0或1）
// 上一tick仍在进行时直接返回(0, nil)
// 进度只从索引库的持久化状态推导，投递失败天然由下一tick重试
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("上一轮同步未结束，跳过本tick")
		return 0, nil
	}
	defer s.running.Store(false)

	lastIndexed, found, err := s.indexer.LastIndexed(ctx)
	if err != nil {
		return 0, err
	}

	// 索引库为空时从创世块(高度0)开始
	next := uint64(0)
	if found {
		next = lastIndexed + 1
	}

	block, err := s.chain.BlockByNumber(ctx, next)
	if err != nil {
		return 0, err
	}
	if block == nil {
		// 已追上链顶，等待下一个区块产出
		s.logger.Debugf("区块 #%d 尚未产出", next)
		return 0, nil
	}

	result, err := s.indexer.ProcessBlock(ctx, next, block)
	if err != nil {
		return 0, err
	}
	if !result.Success {
		s.logger.Warnf("区块 #%d 索引失败: %s，下一tick重试", next, result.Error)
		return 0, nil
	}

	if s.recorder != nil {
		s.recorder.Record(next)
	}
	s.logger.Infof("区块 #%d 已索引", next)
	return 1, nil
}

// IsRunning 返回当前是否有tick在进行
func (s *Syncer) IsRunning() bool {
	return s.running.Load()
}
