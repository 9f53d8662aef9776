package indexer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"explorer/internal/codec"
	"explorer/pkg/models"
)

// Server Indexer ingress HTTP服务
// 接收调度器投递的区块payload并同步执行索引
type Server struct {
	engine *Engine
	logger *logrus.Logger
	server *http.Server
	port   int
}

// NewServer 创建ingress服务
func NewServer(engine *Engine, port int, logger *logrus.Logger) *Server {
	return &Server{
		engine: engine,
		logger: logger,
		port:   port,
	}
}

// Start 启动ingress服务，阻塞到服务关闭
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	s.logger.Infof("Indexer ingress启动在端口 %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 优雅停止ingress服务，等待在途的索引请求完成
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.healthCheck)

	indexer := router.Group("/indexer")
	{
		indexer.POST("/process-block", s.processBlock)
		indexer.GET("/status", s.getStatus)
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "explorer-indexer",
	})
}

// processBlock 处理区块投递请求，请求体为完整的链上区块payload
// 索引失败以200 + Success=false返回，让调度器区分传输失败和处理失败
func (s *Server) processBlock(c *gin.Context) {
	var block models.ChainBlock
	if err := c.ShouldBindJSON(&block); err != nil || block.Hash == "" || block.Number == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的区块payload"})
		return
	}

	number, err := codec.HexToUint64(block.Number)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("无效的区块高度: %s", block.Number)})
		return
	}

	if err := s.engine.IndexBlock(c.Request.Context(), &block); err != nil {
		s.logger.Errorf("区块 #%d 索引失败: %v", number, err)
		c.JSON(http.StatusOK, models.IndexResult{
			Success:     false,
			BlockNumber: number,
			Error:       err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.IndexResult{
		Success:     true,
		BlockNumber: number,
	})
}

// getStatus 返回索引进度（调度器的权威进度来源）
func (s *Server) getStatus(c *gin.Context) {
	number, found, err := s.engine.LastIndexed(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !found {
		c.JSON(http.StatusOK, gin.H{"lastIndexedBlock": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lastIndexedBlock": number})
}
