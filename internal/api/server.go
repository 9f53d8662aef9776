package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"explorer/internal/config"
	"explorer/internal/errors"
	"explorer/internal/store"
	"explorer/pkg/models"
)

// Reader 读API对索引库的查询依赖
type Reader interface {
	ListBlocks(ctx context.Context, limit, offset int) ([]*models.Block, error)
	BlockByNumber(ctx context.Context, number uint64) (*models.Block, error)
	BlockByHash(ctx context.Context, hash string) (*models.Block, error)
	CountBlocks(ctx context.Context) (uint64, error)
	LastIndexedBlockNumber(ctx context.Context) (uint64, bool, error)

	ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error)
	CountTransactions(ctx context.Context) (uint64, error)
	TransactionByHash(ctx context.Context, hash string) (*models.Transaction, error)
	ReceiptByTransactionHash(ctx context.Context, txHash string) (*models.TransactionReceipt, error)
	TransactionsByBlockHash(ctx context.Context, blockHash string) ([]*models.Transaction, error)
	TransactionsByAddress(ctx context.Context, address string, limit, offset int) ([]*models.Transaction, error)

	AccountByAddress(ctx context.Context, address string) (*models.Account, error)
	ContractByAddress(ctx context.Context, address string) (*models.Contract, error)
	ListContracts(ctx context.Context, limit, offset int) ([]*models.Contract, error)
	UpdateContractBytecode(ctx context.Context, address, bytecode string) error
}

// Chain 读API对链节点的实时查询与状态变更依赖
type Chain interface {
	Account(ctx context.Context, address string) (*models.ChainAccount, error)
	Stats(ctx context.Context) (*models.ChainStats, error)
	ContractBytecode(ctx context.Context, address string) (string, error)
	DeployContract(ctx context.Context, bytecode string) (*models.ChainTxResult, error)
	ExecuteContract(ctx context.Context, to, data string) (*models.ChainTxResult, error)
	CallContract(ctx context.Context, to, data, from string) (*models.ChainCallResult, error)
}

// ABIService 合约ABI管理与调用编解码依赖
type ABIService interface {
	UpdateMetadata(ctx context.Context, address string, meta *store.ContractMetadata) error
	Methods(ctx context.Context, address string) ([]*models.ContractMethod, error)
	EncodeCall(ctx context.Context, address, method string, args []interface{}) (string, error)
	DecodeResult(ctx context.Context, address, method, result string) interface{}
}

// Server 浏览器读API服务
type Server struct {
	reader       Reader
	chain        Chain
	abi          ABIService
	logger       *logrus.Logger
	server       *http.Server
	port         int
	defaultLimit int
	maxLimit     int
}

// NewServer 创建读API服务
func NewServer(reader Reader, chain Chain, abi ABIService, cfg *config.APIConfig, logger *logrus.Logger) *Server {
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}

	return &Server{
		reader:       reader,
		chain:        chain,
		abi:          abi,
		logger:       logger,
		port:         cfg.Port,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Start 启动API服务器，阻塞到服务关闭
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS中间件
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	s.logger.Infof("读API服务器启动在端口 %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 优雅停止API服务器
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.healthCheck)

	api := router.Group("/api/v1")
	{
		blocks := api.Group("/blocks")
		{
			blocks.GET("", s.listBlocks)
			blocks.GET("/latest", s.getLatestBlock)
			blocks.GET("/number/:number", s.getBlockByNumber)
			blocks.GET("/hash/:hash", s.getBlockByHash)
		}

		txs := api.Group("/transactions")
		{
			txs.GET("", s.listTransactions)
			txs.GET("/:hash", s.getTransaction)
		}

		accounts := api.Group("/accounts")
		{
			accounts.GET("/:address", s.getAccount)
			accounts.GET("/:address/transactions", s.getAccountTransactions)
		}

		contracts := api.Group("/contracts")
		{
			contracts.GET("", s.listContracts)
			contracts.POST("/deploy", s.deployContract)
			contracts.GET("/:address", s.getContract)
			contracts.PUT("/:address/abi", s.updateContractABI)
			contracts.GET("/:address/methods", s.getContractMethods)
			contracts.POST("/:address/execute", s.executeContract)
			contracts.POST("/:address/call", s.callContract)
		}

		api.GET("/stats", s.getStats)
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "explorer-api",
	})
}

// pagination 解析并钳制分页参数
func (s *Server) pagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(s.defaultLimit)))
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	return page, limit, (page - 1) * limit
}

// respondError 把错误类别映射为HTTP状态码
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsKind(err, errors.KindBadRequest), errors.IsKind(err, errors.KindInvalidEncoding):
		status = http.StatusBadRequest
	case errors.IsKind(err, errors.KindNotFound):
		status = http.StatusNotFound
	case errors.IsKind(err, errors.KindChainUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Errorf("请求处理失败: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// listBlocks 分页列出区块（最新在前）
func (s *Server) listBlocks(c *gin.Context) {
	page, limit, offset := s.pagination(c)

	blocks, err := s.reader.ListBlocks(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := s.reader.CountBlocks(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": blocks,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// getLatestBlock 返回最高已索引区块
func (s *Server) getLatestBlock(c *gin.Context) {
	number, found, err := s.reader.LastIndexedBlockNumber(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !found {
		s.respondError(c, errors.NewNotFound("区块", "latest"))
		return
	}

	block, err := s.reader.BlockByNumber(c.Request.Context(), number)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, block)
}

// getBlockByNumber 按高度查询区块
func (s *Server) getBlockByNumber(c *gin.Context) {
	number, err := strconv.ParseUint(c.Param("number"), 10, 64)
	if err != nil {
		s.respondError(c, errors.NewBadRequest(fmt.Sprintf("无效的区块高度: %s", c.Param("number"))))
		return
	}

	block, err := s.reader.BlockByNumber(c.Request.Context(), number)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if block == nil {
		s.respondError(c, errors.NewNotFound("区块", c.Param("number")))
		return
	}

	txs, err := s.reader.TransactionsByBlockHash(c.Request.Context(), block.Hash)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": block, "transactions": txs})
}

// getBlockByHash 按哈希查询区块
func (s *Server) getBlockByHash(c *gin.Context) {
	block, err := s.reader.BlockByHash(c.Request.Context(), c.Param("hash"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if block == nil {
		s.respondError(c, errors.NewNotFound("区块", c.Param("hash")))
		return
	}
	c.JSON(http.StatusOK, block)
}

// listTransactions 分页列出交易
func (s *Server) listTransactions(c *gin.Context) {
	page, limit, offset := s.pagination(c)

	txs, err := s.reader.ListTransactions(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := s.reader.CountTransactions(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": txs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// getTransaction 查询交易，回执存在时一并返回
func (s *Server) getTransaction(c *gin.Context) {
	hash := c.Param("hash")

	tx, err := s.reader.TransactionByHash(c.Request.Context(), hash)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if tx == nil {
		s.respondError(c, errors.NewNotFound("交易", hash))
		return
	}

	receipt, err := s.reader.ReceiptByTransactionHash(c.Request.Context(), hash)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx, "receipt": receipt})
}
