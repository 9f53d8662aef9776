package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"explorer/internal/codec"
	"explorer/internal/errors"
	"explorer/internal/store"
	"explorer/pkg/models"
)

// getAccount 查询账户
// 余额/nonce实时取自链节点，交易计数来自派生账户缓存
func (s *Server) getAccount(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		s.respondError(c, errors.NewBadRequest(fmt.Sprintf("无效的地址: %s", address)))
		return
	}

	chainAccount, err := s.chain.Account(c.Request.Context(), address)
	if err != nil {
		s.respondError(c, err)
		return
	}

	balance, err := codec.HexToDecimalString(chainAccount.Balance)
	if err != nil {
		s.respondError(c, err)
		return
	}
	nonce, err := codec.HexToUint64(chainAccount.Nonce)
	if err != nil {
		s.respondError(c, err)
		return
	}
	balanceDstn, err := codec.WeiToDstn(balance, 18)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var txCount uint64
	if cached, err := s.reader.AccountByAddress(c.Request.Context(), address); err != nil {
		s.respondError(c, err)
		return
	} else if cached != nil {
		txCount = cached.TxCount
	}

	c.JSON(http.StatusOK, gin.H{
		"address":     address,
		"balance":     balance,
		"balanceDstn": balanceDstn,
		"nonce":       nonce,
		"txCount":     txCount,
	})
}

// getAccountTransactions 列出地址参与的交易（作为发送方或接收方）
func (s *Server) getAccountTransactions(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		s.respondError(c, errors.NewBadRequest(fmt.Sprintf("无效的地址: %s", address)))
		return
	}

	page, limit, offset := s.pagination(c)

	txs, err := s.reader.TransactionsByAddress(c.Request.Context(), address, limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": txs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
		},
	})
}

// getStats 链统计信息透传，附加索引进度
func (s *Server) getStats(c *gin.Context) {
	stats, err := s.chain.Stats(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	indexed, found, err := s.reader.LastIndexedBlockNumber(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	response := gin.H{
		"chain": stats,
	}
	if found {
		response["lastIndexedBlock"] = indexed
	} else {
		response["lastIndexedBlock"] = nil
	}
	c.JSON(http.StatusOK, response)
}

// listContracts 分页列出已发现的合约
func (s *Server) listContracts(c *gin.Context) {
	page, limit, offset := s.pagination(c)

	contracts, err := s.reader.ListContracts(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": contracts,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
		},
	})
}

// getContract 查询合约详情
// 索引时未取到的字节码在此best-effort回填
func (s *Server) getContract(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		s.respondError(c, errors.NewBadRequest(fmt.Sprintf("无效的地址: %s", address)))
		return
	}

	contract, err := s.reader.ContractByAddress(c.Request.Context(), address)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if contract == nil {
		s.respondError(c, errors.NewNotFound("合约", address))
		return
	}

	if contract.Bytecode == nil {
		s.backfillBytecode(c.Request.Context(), contract)
	}
	c.JSON(http.StatusOK, contract)
}

// backfillBytecode 补抓部署时获取失败的合约字节码并落库
// 任何失败只告警，合约照常返回
func (s *Server) backfillBytecode(ctx context.Context, contract *models.Contract) {
	bytecode, err := s.chain.ContractBytecode(ctx, contract.Address)
	if err != nil {
		s.logger.Warnf("回填合约 %s 字节码失败: %v", contract.Address, err)
		return
	}
	if bytecode == "" {
		return
	}

	if err := s.reader.UpdateContractBytecode(ctx, contract.Address, bytecode); err != nil {
		s.logger.Warnf("保存合约 %s 字节码失败: %v", contract.Address, err)
		return
	}
	contract.Bytecode = &bytecode
}

// deployContract 代理合约部署请求到链节点
func (s *Server) deployContract(c *gin.Context) {
	var req struct {
		Bytecode string `json:"bytecode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Bytecode == "" {
		s.respondError(c, errors.NewBadRequest("缺少bytecode字段"))
		return
	}
	if !strings.HasPrefix(req.Bytecode, "0x") {
		s.respondError(c, errors.NewBadRequest("bytecode必须以0x开头"))
		return
	}

	result, err := s.chain.DeployContract(c.Request.Context(), req.Bytecode)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// updateContractABI 带外提交合约ABI与验证信息，并重建方法缓存
func (s *Server) updateContractABI(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		s.respondError(c, errors.NewBadRequest(fmt.Sprintf("无效的地址: %s", address)))
		return
	}

	var req struct {
		ABI             json.RawMessage `json:"abi"`
		SourceCode      *string         `json:"source_code"`
		Name            *string         `json:"name"`
		CompilerVersion *string         `json:"compiler_version"`
		Optimization    *bool           `json:"optimization"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.NewBadRequest("无效的请求体"))
		return
	}
	if len(req.ABI) == 0 {
		s.respondError(c, errors.NewBadRequest("缺少abi字段"))
		return
	}

	err := s.abi.UpdateMetadata(c.Request.Context(), address, &store.ContractMetadata{
		ABI:             req.ABI,
		SourceCode:      req.SourceCode,
		Name:            req.Name,
		CompilerVersion: req.CompilerVersion,
		Optimization:    req.Optimization,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "合约元数据已更新"})
}

// getContractMethods 列出合约的缓存方法
func (s *Server) getContractMethods(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		s.respondError(c, errors.NewBadRequest(fmt.Sprintf("无效的地址: %s", address)))
		return
	}

	methods, err := s.abi.Methods(c.Request.Context(), address)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": methods})
}

// contractCallRequest 合约调用/执行的公共请求体
type contractCallRequest struct {
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
	From   string        `json:"from"`
}

// executeContract 编码参数后代理状态变更交易到链节点
func (s *Server) executeContract(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		s.respondError(c, errors.NewBadRequest(fmt.Sprintf("无效的地址: %s", address)))
		return
	}

	var req contractCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Method == "" {
		s.respondError(c, errors.NewBadRequest("缺少method字段"))
		return
	}

	data, err := s.abi.EncodeCall(c.Request.Context(), address, req.Method, req.Args)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.chain.ExecuteContract(c.Request.Context(), address, data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// callContract 编码参数后代理只读调用，返回值best-effort解码
func (s *Server) callContract(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		s.respondError(c, errors.NewBadRequest(fmt.Sprintf("无效的地址: %s", address)))
		return
	}

	var req contractCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Method == "" {
		s.respondError(c, errors.NewBadRequest("缺少method字段"))
		return
	}

	data, err := s.abi.EncodeCall(c.Request.Context(), address, req.Method, req.Args)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.chain.CallContract(c.Request.Context(), address, data, req.From)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":  result.Result,
		"decoded": s.abi.DecodeResult(c.Request.Context(), address, req.Method, result.Result),
		"gasUsed": result.GasUsed,
	})
}
