package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"explorer/internal/errors"
	"explorer/pkg/models"
)

// IndexerClient 指向索引服务的HTTP投递客户端
type IndexerClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewIndexerClient 创建索引服务客户端
// 索引一个区块包含逐笔回执抓取，超时给足余量
func NewIndexerClient(baseURL string, pushTimeout time.Duration, logger *logrus.Logger) (*IndexerClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("索引服务地址不能为空")
	}
	if pushTimeout <= 0 {
		pushTimeout = 30 * time.Second
	}

	return &IndexerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: pushTimeout},
		logger:  logger,
	}, nil
}

// ProcessBlock 把完整区块payload投递给索引服务处理
// 传输层失败返回DeliveryFailure；indexer受理但处理失败体现在IndexResult里
func (c *IndexerClient) ProcessBlock(ctx context.Context, number uint64, block *models.ChainBlock) (*models.IndexResult, error) {
	payload, err := json.Marshal(block)
	if err != nil {
		return nil, errors.NewDeliveryFailure(number, fmt.Errorf("序列化区块payload失败: %w", err))
	}

	url := fmt.Sprintf("%s/indexer/process-block", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewDeliveryFailure(number, fmt.Errorf("构造投递请求失败: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewDeliveryFailure(number, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewDeliveryFailure(number, fmt.Errorf("读取索引服务响应失败: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewDeliveryFailure(number,
			fmt.Errorf("索引服务返回非预期状态码: %d", resp.StatusCode))
	}

	var result models.IndexResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewDeliveryFailure(number, fmt.Errorf("解析索引结果失败: %w", err))
	}
	return &result, nil
}

// LastIndexed 查询索引服务已落库的最高区块高度
// 这是调度器的权威进度来源
func (c *IndexerClient) LastIndexed(ctx context.Context) (number uint64, found bool, err error) {
	url := fmt.Sprintf("%s/indexer/status", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.KindDeliveryFailure, "DELIVERY_FAILURE", "构造进度查询请求失败")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.KindDeliveryFailure, "DELIVERY_FAILURE", "查询索引进度失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false, errors.New(errors.KindDeliveryFailure, "DELIVERY_FAILURE",
			fmt.Sprintf("索引服务返回非预期状态码: %d", resp.StatusCode))
	}

	var status struct {
		LastIndexedBlock *uint64 `json:"lastIndexedBlock"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return 0, false, errors.Wrap(err, errors.KindDeliveryFailure, "DELIVERY_FAILURE", "解析索引进度失败")
	}
	if status.LastIndexedBlock == nil {
		// 索引库为空，从创世块开始
		return 0, false, nil
	}
	return *status.LastIndexedBlock, true, nil
}
