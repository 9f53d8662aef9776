package progress

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	// 默认数据库路径
	DefaultDBPath = "./data/sync_progress.db"

	// 存储桶名称
	SnapshotBucket = "snapshot"

	// 快照键
	LastDeliveredBlockKey = "last_delivered_block"
	StartTimeKey          = "start_time"
	LastDeliveryTimeKey   = "last_delivery_time"
	DeliveredCountKey     = "delivered_count"
)

// Snapshot 同步进度快照
// 仅用于观测（status子命令），权威进度始终来自索引库的最高区块高度
type Snapshot struct {
	LastDeliveredBlock uint64    `json:"last_delivered_block"`
	DeliveredCount     uint64    `json:"delivered_count"`
	StartTime          time.Time `json:"start_time"`
	LastDeliveryTime   time.Time `json:"last_delivery_time"`
}

// Manager 进度快照管理器
type Manager struct {
	db     *bolt.DB
	logger *logrus.Logger
	dbPath string
	mu     sync.RWMutex

	// 内存缓存
	cache *Snapshot
}

// NewManager 创建进度快照管理器
func NewManager(dbPath string, logger *logrus.Logger) (*Manager, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开进度数据库失败: %w", err)
	}

	manager := &Manager{
		db:     db,
		logger: logger,
		dbPath: dbPath,
		cache:  &Snapshot{},
	}

	if err := manager.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化进度数据库失败: %w", err)
	}

	if err := manager.loadCache(); err != nil {
		logger.Warnf("加载进度快照失败: %v", err)
	}

	logger.Infof("进度快照管理器已初始化，数据库路径: %s", dbPath)
	return manager, nil
}

// initDB 初始化数据库结构
func (m *Manager) initDB() error {
	return m.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(SnapshotBucket)); err != nil {
			return fmt.Errorf("创建快照存储桶失败: %w", err)
		}
		return nil
	})
}

// loadCache 从数据库加载快照到内存
func (m *Manager) loadCache() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(SnapshotBucket))
		if bucket == nil {
			return nil
		}

		if data := bucket.Get([]byte(LastDeliveredBlockKey)); data != nil {
			m.cache.LastDeliveredBlock = binary.BigEndian.Uint64(data)
		}
		if data := bucket.Get([]byte(DeliveredCountKey)); data != nil {
			m.cache.DeliveredCount = binary.BigEndian.Uint64(data)
		}
		if data := bucket.Get([]byte(StartTimeKey)); data != nil {
			var startTime time.Time
			if err := json.Unmarshal(data, &startTime); err == nil {
				m.cache.StartTime = startTime
			}
		}
		if data := bucket.Get([]byte(LastDeliveryTimeKey)); data != nil {
			var lastDelivery time.Time
			if err := json.Unmarshal(data, &lastDelivery); err == nil {
				m.cache.LastDeliveryTime = lastDelivery
			}
		}
		return nil
	})
}

// Record 记录一次成功投递
// 写入失败只告警，不影响同步主流程
func (m *Manager) Record(blockNumber uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.cache.LastDeliveredBlock = blockNumber
	m.cache.DeliveredCount++
	m.cache.LastDeliveryTime = now
	if m.cache.StartTime.IsZero() {
		m.cache.StartTime = now
	}

	err := m.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(SnapshotBucket))

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, blockNumber)
		if err := bucket.Put([]byte(LastDeliveredBlockKey), buf); err != nil {
			return err
		}

		countBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(countBuf, m.cache.DeliveredCount)
		if err := bucket.Put([]byte(DeliveredCountKey), countBuf); err != nil {
			return err
		}

		startData, _ := json.Marshal(m.cache.StartTime)
		if err := bucket.Put([]byte(StartTimeKey), startData); err != nil {
			return err
		}

		nowData, _ := json.Marshal(now)
		return bucket.Put([]byte(LastDeliveryTimeKey), nowData)
	})
	if err != nil {
		m.logger.Warnf("写入进度快照失败: %v", err)
	}
}

// Info 返回当前快照副本
func (m *Manager) Info() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := *m.cache
	return &snapshot
}

// Reset 清空快照
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(SnapshotBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(SnapshotBucket))
		return err
	})
	if err != nil {
		return fmt.Errorf("重置进度快照失败: %w", err)
	}

	m.cache = &Snapshot{}
	return nil
}

// Close 关闭进度数据库
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
