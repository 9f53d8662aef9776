package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explorer/internal/errors"
	"explorer/pkg/models"
)

func newTestIndexerClient(t *testing.T, handler http.HandlerFunc) *IndexerClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	client, err := NewIndexerClient(server.URL, 0, logger)
	require.NoError(t, err)
	return client
}

func TestIndexerClientRequiresURL(t *testing.T) {
	logger := logrus.New()
	_, err := NewIndexerClient("", 0, logger)
	require.Error(t, err)
}

func TestProcessBlockDeliversPayload(t *testing.T) {
	var received models.ChainBlock
	client := newTestIndexerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/indexer/process-block", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(models.IndexResult{Success: true, BlockNumber: 7})
	})

	block := &models.ChainBlock{Hash: "0xb7", Number: "0x7"}
	result, err := client.ProcessBlock(context.Background(), 7, block)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, uint64(7), result.BlockNumber)

	// 投递的是完整区块payload
	assert.Equal(t, "0xb7", received.Hash)
	assert.Equal(t, "0x7", received.Number)
}

// indexer受理但处理失败：200 + Success=false原样返回，不算传输错误
func TestProcessBlockIndexingFailurePassthrough(t *testing.T) {
	client := newTestIndexerClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.IndexResult{
			Success:     false,
			BlockNumber: 7,
			Error:       "链节点不可用",
		})
	})

	result, err := client.ProcessBlock(context.Background(), 7, &models.ChainBlock{Hash: "0xb7", Number: "0x7"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "链节点不可用", result.Error)
}

func TestProcessBlockTransportFailure(t *testing.T) {
	client := newTestIndexerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ProcessBlock(context.Background(), 7, &models.ChainBlock{Hash: "0xb7", Number: "0x7"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDeliveryFailure))
	assert.True(t, errors.IsRetryable(err))
}

func TestLastIndexedEmpty(t *testing.T) {
	client := newTestIndexerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexer/status", r.URL.Path)
		w.Write([]byte(`{"lastIndexedBlock":null}`))
	})

	_, found, err := client.LastIndexed(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLastIndexed(t *testing.T) {
	client := newTestIndexerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lastIndexedBlock":41}`))
	})

	number, found, err := client.LastIndexed(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(41), number)
}

func TestLastIndexedUnavailable(t *testing.T) {
	client := newTestIndexerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := client.LastIndexed(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDeliveryFailure))
}
