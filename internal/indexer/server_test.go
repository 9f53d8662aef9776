package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explorer/pkg/models"
)

func newTestServer(t *testing.T, chain *fakeChain, storage *memStore) *gin.Engine {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	server := NewServer(NewEngine(chain, storage, nil, logger), 0, logger)
	server.setupRoutes(router)
	return router
}

func postBlock(t *testing.T, router *gin.Engine, block *models.ChainBlock) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(block)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/indexer/process-block", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestProcessBlockEndpoint(t *testing.T) {
	chain := newFakeChain()
	chain.blocks[1] = testBlock(1, "0xb1",
		testTx("0xt1", "0xalice", "0xbob", "0x1", 0))
	chain.receipts["0xt1"] = testReceipt("0xt1", "0xalice", "0xbob", 1)

	storage := newMemStore()
	router := newTestServer(t, chain, storage)

	w := postBlock(t, router, chain.blocks[1])
	require.Equal(t, http.StatusOK, w.Code)

	var result models.IndexResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, uint64(1), result.BlockNumber)
	assert.NotNil(t, storage.state.blocks["0xb1"])
}

// 索引失败返回200 + Success=false，与传输层失败区分
func TestProcessBlockEndpointIndexingFailure(t *testing.T) {
	chain := newFakeChain()
	chain.blocks[9] = testBlock(9, "0xb9",
		testTx("0xt1", "0xalice", "0xbob", "0x1", 0))
	// 回执抓取失败中止整个区块
	chain.receiptErr["0xt1"] = assert.AnError

	router := newTestServer(t, chain, newMemStore())

	w := postBlock(t, router, chain.blocks[9])
	require.Equal(t, http.StatusOK, w.Code)

	var result models.IndexResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, uint64(9), result.BlockNumber)
	assert.NotEmpty(t, result.Error)
}

func TestProcessBlockEndpointBadRequest(t *testing.T) {
	router := newTestServer(t, newFakeChain(), newMemStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/indexer/process-block",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	chain := newFakeChain()
	chain.blocks[0] = testBlock(0, "0xb0")

	storage := newMemStore()
	router := newTestServer(t, chain, storage)

	// 空索引库返回null
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/indexer/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lastIndexedBlock":null}`, w.Body.String())

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	engine := NewEngine(chain, storage, nil, logger)
	require.NoError(t, engine.IndexBlock(context.Background(), chain.blocks[0]))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/indexer/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lastIndexedBlock":0}`, w.Body.String())
}
