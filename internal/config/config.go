package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"explorer/internal/logging"
)

// Config 主配置
type Config struct {
	Chain    *ChainConfig       `mapstructure:"chain"`
	Sync     *SyncConfig        `mapstructure:"sync"`
	Indexer  *IndexerConfig     `mapstructure:"indexer"`
	API      *APIConfig         `mapstructure:"api"`
	Database *DatabaseConfig    `mapstructure:"database"`
	Kafka    *KafkaConfig       `mapstructure:"kafka"`
	Logging  *logging.LogConfig `mapstructure:"logging"`
}

// ChainConfig 链节点配置
type ChainConfig struct {
	URL          string `mapstructure:"url"`           // Dustin-Chain节点地址
	ReadTimeout  string `mapstructure:"read_timeout"`  // 读接口超时
	WriteTimeout string `mapstructure:"write_timeout"` // 状态变更接口超时
}

// SyncConfig 同步调度器配置
type SyncConfig struct {
	Interval     string `mapstructure:"interval"`      // tick间隔
	IndexerURL   string `mapstructure:"indexer_url"`   // Indexer ingress地址
	PushTimeout  string `mapstructure:"push_timeout"`  // 区块投递超时
	ProgressPath string `mapstructure:"progress_path"` // bbolt进度快照路径
}

// IndexerConfig Indexer服务配置
type IndexerConfig struct {
	Port int `mapstructure:"port"`
}

// APIConfig 读API服务配置
type APIConfig struct {
	Port         int `mapstructure:"port"`
	DefaultLimit int `mapstructure:"default_limit"` // 默认分页大小
	MaxLimit     int `mapstructure:"max_limit"`     // 分页大小上限
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// KafkaConfig Kafka事件发布配置
type KafkaConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// LoadConfig 加载配置（YAML文件 + 环境变量覆盖）
func LoadConfig(configPath string) (*Config, error) {
	config := GetDefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}

		if err := viper.Unmarshal(config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	// 环境变量覆盖关键配置项
	if dsn := os.Getenv("EXPLORER_DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if chainURL := os.Getenv("EXPLORER_CHAIN_URL"); chainURL != "" {
		config.Chain.URL = chainURL
	}
	if indexerURL := os.Getenv("EXPLORER_INDEXER_URL"); indexerURL != "" {
		config.Sync.IndexerURL = indexerURL
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = strings.Split(brokers, ",")
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validate 校验配置完整性
func validate(config *Config) error {
	if config.Chain == nil || config.Chain.URL == "" {
		return fmt.Errorf("链节点地址不能为空（chain.url 或 EXPLORER_CHAIN_URL）")
	}
	if config.Database == nil || config.Database.DSN == "" {
		return fmt.Errorf("数据库DSN不能为空（database.dsn 或 EXPLORER_DB_DSN）")
	}
	if config.Sync == nil || config.Sync.IndexerURL == "" {
		return fmt.Errorf("Indexer地址不能为空（sync.indexer_url 或 EXPLORER_INDEXER_URL）")
	}
	return nil
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Chain: &ChainConfig{
			URL:          "", // 需要在YAML配置或环境变量中指定
			ReadTimeout:  "10s",
			WriteTimeout: "30s",
		},
		Sync: &SyncConfig{
			Interval:     "1s",
			IndexerURL:   "http://localhost:4001",
			PushTimeout:  "30s",
			ProgressPath: "./data/sync-progress.db",
		},
		Indexer: &IndexerConfig{
			Port: 4001,
		},
		API: &APIConfig{
			Port:         4000,
			DefaultLimit: 20,
			MaxLimit:     100,
		},
		Database: &DatabaseConfig{
			DSN:          "",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Kafka: &KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topics: map[string]string{
				"blocks":       "explorer_blocks",
				"transactions": "explorer_transactions",
				"contracts":    "explorer_contracts",
			},
		},
		Logging: &logging.LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}
