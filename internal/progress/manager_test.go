package progress

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	manager, err := NewManager(filepath.Join(t.TempDir(), "progress.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestRecordAndInfo(t *testing.T) {
	manager := newTestManager(t)

	assert.Equal(t, uint64(0), manager.Info().LastDeliveredBlock)

	manager.Record(5)
	manager.Record(6)

	info := manager.Info()
	assert.Equal(t, uint64(6), info.LastDeliveredBlock)
	assert.Equal(t, uint64(2), info.DeliveredCount)
	assert.False(t, info.StartTime.IsZero())
	assert.False(t, info.LastDeliveryTime.IsZero())
}

// 快照必须跨进程重启存活
func TestSnapshotPersistence(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	dbPath := filepath.Join(t.TempDir(), "progress.db")

	manager, err := NewManager(dbPath, logger)
	require.NoError(t, err)
	manager.Record(42)
	require.NoError(t, manager.Close())

	reopened, err := NewManager(dbPath, logger)
	require.NoError(t, err)
	defer reopened.Close()

	info := reopened.Info()
	assert.Equal(t, uint64(42), info.LastDeliveredBlock)
	assert.Equal(t, uint64(1), info.DeliveredCount)
}

func TestReset(t *testing.T) {
	manager := newTestManager(t)

	manager.Record(10)
	require.NoError(t, manager.Reset())

	info := manager.Info()
	assert.Equal(t, uint64(0), info.LastDeliveredBlock)
	assert.Equal(t, uint64(0), info.DeliveredCount)

	// 重置后可继续记录
	manager.Record(11)
	assert.Equal(t, uint64(11), manager.Info().LastDeliveredBlock)
}
