package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"explorer/internal/abi"
	"explorer/internal/api"
	"explorer/internal/chainclient"
	"explorer/internal/config"
	"explorer/internal/logging"
	"explorer/internal/shutdown"
	"explorer/internal/store"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
	port       = flag.Int("port", 0, "覆盖配置中的服务端口")
	verbose    = flag.Bool("verbose", false, "详细输出")
)

func main() {
	flag.Parse()

	bootLogger := logrus.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLogger.Fatalf("加载配置失败: %v", err)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if *port > 0 {
		cfg.API.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		bootLogger.Fatalf("初始化日志失败: %v", err)
	}

	gs := shutdown.NewGracefulShutdown(30*time.Second, logger)

	db, err := store.Open(gs.Context(), cfg.Database, logger)
	if err != nil {
		logger.Fatalf("连接数据库失败: %v", err)
	}
	gs.Register("数据库连接", shutdown.OrderCloseStorage, func(_ context.Context) error {
		return db.Close()
	})

	chain, err := chainclient.New(cfg.Chain, logger)
	if err != nil {
		logger.Fatalf("创建链节点客户端失败: %v", err)
	}

	abiService := abi.NewService(db, logger)
	server := api.NewServer(db, chain, abiService, cfg.API, logger)

	gs.Register("读API服务器", shutdown.OrderStopHTTPServer, server.Stop)
	gs.Start()

	go func() {
		if err := server.Start(); err != nil {
			logger.Errorf("读API服务器异常退出: %v", err)
			gs.Shutdown()
		}
	}()

	gs.Wait()
	logger.Info("读API服务已关闭")
}
