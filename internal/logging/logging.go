package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`    // 日志级别 (debug, info, warn, error)
	Format string `json:"format" yaml:"format" mapstructure:"format"` // 日志格式 (json, text)
	Output string `json:"output" yaml:"output" mapstructure:"output"` // 输出路径 (stdout, stderr, 文件路径)
}

// DefaultLogConfig 默认日志配置
var DefaultLogConfig = &LogConfig{
	Level:  "info",
	Format: "text",
	Output: "stdout",
}

// NewLogger 根据配置创建logrus日志器
func NewLogger(config *LogConfig) (*logrus.Logger, error) {
	if config == nil {
		config = DefaultLogConfig
	}

	logger := logrus.New()

	// 解析日志级别
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 '%s': %w", config.Level, err)
	}
	logger.SetLevel(level)

	// 设置格式
	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		return nil, fmt.Errorf("不支持的日志格式: %s", config.Format)
	}

	// 设置输出
	writer, err := getLogWriter(config)
	if err != nil {
		return nil, fmt.Errorf("创建日志输出失败: %w", err)
	}
	logger.SetOutput(writer)

	return logger, nil
}

// getLogWriter 获取日志输出
func getLogWriter(config *LogConfig) (io.Writer, error) {
	switch config.Output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		// 文件输出
		dir := filepath.Dir(config.Output)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}

		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}

		return file, nil
	}
}
