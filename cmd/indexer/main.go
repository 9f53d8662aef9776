package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"explorer/internal/chainclient"
	"explorer/internal/config"
	"explorer/internal/indexer"
	"explorer/internal/logging"
	"explorer/internal/publisher"
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
		cfg.Indexer.Port = *port
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
	if err := db.EnsureSchema(gs.Context()); err != nil {
		logger.Fatalf("初始化数据表失败: %v", err)
	}
	gs.Register("数据库连接", shutdown.OrderCloseStorage, func(_ context.Context) error {
		return db.Close()
	})

	chain, err := chainclient.New(cfg.Chain, logger)
	if err != nil {
		logger.Fatalf("创建链节点客户端失败: %v", err)
	}

	var pub publisher.Publisher = publisher.NoopPublisher{}
	if cfg.Kafka != nil && cfg.Kafka.Enabled {
		kafkaPub, err := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
		if err != nil {
			logger.Fatalf("创建Kafka发布器失败: %v", err)
		}
		pub = kafkaPub
		gs.Register("Kafka发布器", shutdown.OrderClosePublisher, func(_ context.Context) error {
			return kafkaPub.Close()
		})
	}

	engine := indexer.NewEngine(chain, db, pub, logger)
	server := indexer.NewServer(engine, cfg.Indexer.Port, logger)

	gs.Register("Indexer ingress", shutdown.OrderStopHTTPServer, server.Stop)
	gs.Start()

	go func() {
		if err := server.Start(); err != nil {
			logger.Errorf("Indexer ingress异常退出: %v", err)
			gs.Shutdown()
		}
	}()

	gs.Wait()
	logger.Info("Indexer服务已关闭")
}
