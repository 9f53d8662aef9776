package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"explorer/pkg/models"
)

// Publisher 索引事件发布接口
// 事件在索引事务提交后发布，失败只记录告警，不回滚索引结果
type Publisher interface {
	PublishBlock(block *models.Block) error
	PublishTransaction(tx *models.Transaction) error
	PublishContract(contract *models.Contract) error
	Close() error
}

// KafkaPublisher 基于Kafka的索引事件发布器
type KafkaPublisher struct {
	logger   *logrus.Logger
	topics   map[string]string // 事件类型到topic的映射
	producer sarama.SyncProducer
}

// NewKafkaPublisher 创建Kafka事件发布器
func NewKafkaPublisher(brokers []string, topics map[string]string, logger *logrus.Logger) (*KafkaPublisher, error) {
	logger.Infof("初始化Kafka事件发布器，brokers: %v", brokers)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	logger.Info("Kafka生产者已创建")

	return &KafkaPublisher{
		logger:   logger,
		topics:   topics,
		producer: producer,
	}, nil
}

// newKafkaPublisherWithProducer 测试注入用
func newKafkaPublisherWithProducer(producer sarama.SyncProducer, topics map[string]string, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		logger:   logger,
		topics:   topics,
		producer: producer,
	}
}

// publish 序列化并发送事件，key用于同一实体的分区有序
func (p *KafkaPublisher) publish(topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送事件到Kafka失败: %w", err)
	}

	p.logger.Debugf("事件已发布到topic '%s' (partition: %d, offset: %d)", topic, partition, offset)
	return nil
}

// topicFor 查找事件类型对应的topic，未配置时使用默认名
func (p *KafkaPublisher) topicFor(eventType, fallback string) string {
	if topic, exists := p.topics[eventType]; exists {
		return topic
	}
	return fallback
}

// PublishBlock 发布区块索引完成事件
func (p *KafkaPublisher) PublishBlock(block *models.Block) error {
	if block == nil {
		return nil
	}
	return p.publish(p.topicFor("blocks", "explorer_blocks"), block.Hash, block)
}

// PublishTransaction 发布交易索引完成事件
func (p *KafkaPublisher) PublishTransaction(tx *models.Transaction) error {
	if tx == nil {
		return nil
	}
	return p.publish(p.topicFor("transactions", "explorer_transactions"), tx.Hash, tx)
}

// PublishContract 发布合约发现事件
func (p *KafkaPublisher) PublishContract(contract *models.Contract) error {
	if contract == nil {
		return nil
	}
	return p.publish(p.topicFor("contracts", "explorer_contracts"), contract.Address, contract)
}

// Close 关闭Kafka连接
func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher Kafka未启用时的空实现
type NoopPublisher struct{}

func (NoopPublisher) PublishBlock(*models.Block) error             { return nil }
func (NoopPublisher) PublishTransaction(*models.Transaction) error { return nil }
func (NoopPublisher) PublishContract(*models.Contract) error       { return nil }
func (NoopPublisher) Close() error                                 { return nil }
