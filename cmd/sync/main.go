package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"explorer/internal/chainclient"
	"explorer/internal/config"
	"explorer/internal/logging"
	"explorer/internal/progress"
	"explorer/internal/shutdown"
	"explorer/internal/syncer"
)

var (
	configFile    string
	verbose       bool
	resetProgress bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sync",
		Short: "Dustin-Chain区块同步调度器",
		Long:  `每秒对比链高度与索引进度，把缺失区块按序投递给Indexer服务`,
		RunE:  run,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "configs/config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "详细输出")
	rootCmd.Flags().BoolVar(&resetProgress, "reset-progress", false, "清空本地进度快照后启动")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "查看同步进度快照",
		RunE:  showStatus,
	}
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	chain, err := chainclient.New(cfg.Chain, logger)
	if err != nil {
		return fmt.Errorf("创建链节点客户端失败: %w", err)
	}

	pushTimeout, err := time.ParseDuration(cfg.Sync.PushTimeout)
	if err != nil {
		return fmt.Errorf("无效的投递超时配置: %w", err)
	}
	indexerClient, err := syncer.NewIndexerClient(cfg.Sync.IndexerURL, pushTimeout, logger)
	if err != nil {
		return fmt.Errorf("创建Indexer客户端失败: %w", err)
	}

	progressManager, err := progress.NewManager(cfg.Sync.ProgressPath, logger)
	if err != nil {
		return fmt.Errorf("初始化进度快照失败: %w", err)
	}
	if resetProgress {
		if err := progressManager.Reset(); err != nil {
			return err
		}
		logger.Info("进度快照已清空")
	}

	interval, err := time.ParseDuration(cfg.Sync.Interval)
	if err != nil {
		return fmt.Errorf("无效的tick间隔配置: %w", err)
	}

	s := syncer.New(chain, indexerClient, progressManager, interval, logger)

	gs := shutdown.NewGracefulShutdown(30*time.Second, logger)

	// 调度器先于进度快照停止，避免关库后仍有投递在记录
	runCtx, stopScheduler := context.WithCancel(gs.Context())
	schedulerDone := make(chan struct{})
	gs.Register("同步调度器", shutdown.OrderStopScheduler, func(ctx context.Context) error {
		stopScheduler()
		select {
		case <-schedulerDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	gs.Register("进度快照", shutdown.OrderSaveProgress, func(_ context.Context) error {
		return progressManager.Close()
	})
	gs.Start()

	go func() {
		defer close(schedulerDone)
		s.Run(runCtx)
	}()

	gs.Wait()
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.SetLevel(logrus.WarnLevel)

	manager, err := progress.NewManager(cfg.Sync.ProgressPath, logger)
	if err != nil {
		return fmt.Errorf("打开进度快照失败: %w", err)
	}
	defer manager.Close()

	info := manager.Info()
	fmt.Printf("最后投递区块: #%d\n", info.LastDeliveredBlock)
	fmt.Printf("累计投递次数: %d\n", info.DeliveredCount)
	if !info.StartTime.IsZero() {
		fmt.Printf("开始时间:     %s\n", info.StartTime.Format(time.RFC3339))
	}
	if !info.LastDeliveryTime.IsZero() {
		fmt.Printf("最后投递时间: %s\n", info.LastDeliveryTime.Format(time.RFC3339))
	}
	return nil
}
