// Package chainclient 封装Dustin-Chain节点的HTTP接口
//
// 每个方法与一个远程端点1:1对应。客户端自身不做任何重试/退避，
// 重试责任属于调用方（同步调度器的下一个tick）。
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"explorer/internal/config"
	"explorer/internal/errors"
	"explorer/pkg/models"
)

// 默认超时时间
const (
	DefaultReadTimeout  = 10 * time.Second // 读接口
	DefaultWriteTimeout = 30 * time.Second // 状态变更接口（deploy/execute）
)

// Client Dustin-Chain RPC客户端
type Client struct {
	baseURL     string
	readClient  *http.Client
	writeClient *http.Client
	logger      *logrus.Logger
}

// New 创建链节点客户端
func New(cfg *config.ChainConfig, logger *logrus.Logger) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("链节点地址不能为空")
	}

	readTimeout := parseTimeout(cfg.ReadTimeout, DefaultReadTimeout, logger)
	writeTimeout := parseTimeout(cfg.WriteTimeout, DefaultWriteTimeout, logger)

	logger.Infof("链节点客户端已初始化: %s", cfg.URL)

	return &Client{
		baseURL:     cfg.URL,
		readClient:  &http.Client{Timeout: readTimeout},
		writeClient: &http.Client{Timeout: writeTimeout},
		logger:      logger,
	}, nil
}

// parseTimeout 解析超时配置，失败时回退到默认值
func parseTimeout(value string, fallback time.Duration, logger *logrus.Logger) time.Duration {
	if value == "" {
		return fallback
	}
	timeout, err := time.ParseDuration(value)
	if err != nil {
		logger.Warnf("解析超时时间 '%s' 失败，使用默认值 %v: %v", value, fallback, err)
		return fallback
	}
	return timeout
}

// LatestBlock 获取最新区块
//
// GET /block/latest
func (c *Client) LatestBlock(ctx context.Context) (*models.ChainBlock, error) {
	var block models.ChainBlock
	if err := c.getJSON(ctx, "/block/latest", &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// BlockByNumber 按区块号获取区块
//
// GET /block/number/{n}
//
// 404表示区块尚未产出，返回(nil, nil)而非错误——
// 这是追上链顶后的预期稳态，由调用方安静等待下一个tick
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*models.ChainBlock, error) {
	path := fmt.Sprintf("/block/number/%d", number)

	body, status, err := c.doGet(ctx, c.readClient, path)
	if err != nil {
		return nil, errors.NewChainUnavailable(path, err)
	}

	if status == http.StatusNotFound {
		c.logger.Debugf("区块 #%d 尚未产出", number)
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, errors.NewChainUnavailable(path, fmt.Errorf("非预期状态码: %d", status))
	}

	var block models.ChainBlock
	if err := json.Unmarshal(body, &block); err != nil {
		return nil, errors.NewChainUnavailable(path, err)
	}
	return &block, nil
}

// BlockByHash 按哈希获取区块
//
// GET /block/hash/{h}
func (c *Client) BlockByHash(ctx context.Context, hash string) (*models.ChainBlock, error) {
	var block models.ChainBlock
	if err := c.getJSON(ctx, "/block/hash/"+hash, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// Stats 获取链统计信息（该接口返回十进制数字）
//
// GET /block/stats
func (c *Client) Stats(ctx context.Context) (*models.ChainStats, error) {
	var stats models.ChainStats
	if err := c.getJSON(ctx, "/block/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Transaction 按哈希获取交易
//
// GET /transaction/{hash}
func (c *Client) Transaction(ctx context.Context, hash string) (*models.ChainTransaction, error) {
	var tx models.ChainTransaction
	if err := c.getJSON(ctx, "/transaction/"+hash, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Receipt 按交易哈希获取回执
//
// GET /transaction/{hash}/receipt
//
// 节点对pending交易返回null body，此时返回(nil, nil)
func (c *Client) Receipt(ctx context.Context, txHash string) (*models.ChainReceipt, error) {
	path := "/transaction/" + txHash + "/receipt"

	body, status, err := c.doGet(ctx, c.readClient, path)
	if err != nil {
		return nil, errors.NewChainUnavailable(path, err)
	}
	if status < 200 || status >= 300 {
		return nil, errors.NewChainUnavailable(path, fmt.Errorf("非预期状态码: %d", status))
	}

	// null body表示交易尚未被执行（pending）
	var receipt *models.ChainReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, errors.NewChainUnavailable(path, err)
	}
	if receipt == nil {
		c.logger.Debugf("交易 %s 暂无回执 (pending)", txHash)
	}
	return receipt, nil
}

// Account 按地址获取账户状态
//
// GET /account/{address}
func (c *Client) Account(ctx context.Context, address string) (*models.ChainAccount, error) {
	var account models.ChainAccount
	if err := c.getJSON(ctx, "/account/"+address, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ContractBytecode 获取已部署合约的字节码
//
// GET /contract/{address}/bytecode
func (c *Client) ContractBytecode(ctx context.Context, address string) (string, error) {
	var result struct {
		Bytecode string `json:"bytecode"`
	}
	if err := c.getJSON(ctx, "/contract/"+address+"/bytecode", &result); err != nil {
		return "", err
	}
	return result.Bytecode, nil
}

// DeployContract 部署合约（状态变更）
//
// POST /contract/deploy
func (c *Client) DeployContract(ctx context.Context, bytecode string) (*models.ChainTxResult, error) {
	var result models.ChainTxResult
	payload := map[string]string{"bytecode": bytecode}
	if err := c.postJSON(ctx, "/contract/deploy", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExecuteContract 执行合约方法（状态变更）
//
// POST /contract/execute
func (c *Client) ExecuteContract(ctx context.Context, to, data string) (*models.ChainTxResult, error) {
	var result models.ChainTxResult
	payload := map[string]string{"to": to, "data": data}
	if err := c.postJSON(ctx, "/contract/execute", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallContract 只读调用合约方法（模拟执行，无交易）
//
// POST /contract/call
func (c *Client) CallContract(ctx context.Context, to, data, from string) (*models.ChainCallResult, error) {
	var result models.ChainCallResult
	payload := map[string]string{"to": to, "data": data}
	if from != "" {
		payload["from"] = from
	}
	if err := c.postJSON(ctx, "/contract/call", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// doGet 执行GET请求，返回body与状态码
func (c *Client) doGet(ctx context.Context, client *http.Client, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return body, resp.StatusCode, nil
}

// getJSON 执行GET请求并解码JSON响应，非2xx即视为链节点不可用
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, status, err := c.doGet(ctx, c.readClient, path)
	if err != nil {
		return errors.NewChainUnavailable(path, err)
	}
	if status < 200 || status >= 300 {
		return errors.NewChainUnavailable(path, fmt.Errorf("非预期状态码: %d", status))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewChainUnavailable(path, err)
	}
	return nil
}

// postJSON 执行POST请求并解码JSON响应（使用写超时客户端）
func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.NewChainUnavailable(path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return errors.NewChainUnavailable(path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.writeClient.Do(req)
	if err != nil {
		return errors.NewChainUnavailable(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewChainUnavailable(path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewChainUnavailable(path, fmt.Errorf("非预期状态码: %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewChainUnavailable(path, err)
	}
	return nil
}
