package publisher

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explorer/pkg/models"
)

func newMockPublisher(t *testing.T) (*KafkaPublisher, *mocks.SyncProducer) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	producer := mocks.NewSyncProducer(t, nil)
	topics := map[string]string{
		"blocks":       "explorer_blocks",
		"transactions": "explorer_transactions",
		"contracts":    "explorer_contracts",
	}
	return newKafkaPublisherWithProducer(producer, topics, logger), producer
}

func TestPublishBlock(t *testing.T) {
	publisher, producer := newMockPublisher(t)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var block models.Block
		if err := json.Unmarshal(value, &block); err != nil {
			return err
		}
		assert.Equal(t, "0xb1", block.Hash)
		assert.Equal(t, uint64(1), block.Number)
		return nil
	})

	err := publisher.PublishBlock(&models.Block{Hash: "0xb1", Number: 1})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestPublishTransactionFailure(t *testing.T) {
	publisher, producer := newMockPublisher(t)

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := publisher.PublishTransaction(&models.Transaction{Hash: "0xt1"})
	assert.Error(t, err)
	require.NoError(t, producer.Close())
}

func TestPublishContract(t *testing.T) {
	publisher, producer := newMockPublisher(t)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var contract models.Contract
		if err := json.Unmarshal(value, &contract); err != nil {
			return err
		}
		assert.Equal(t, "0xcafe", contract.Address)
		return nil
	})

	err := publisher.PublishContract(&models.Contract{Address: "0xcafe", Deployer: "0xd"})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

// nil实体直接忽略，不产生消息
func TestPublishNil(t *testing.T) {
	publisher, producer := newMockPublisher(t)

	require.NoError(t, publisher.PublishBlock(nil))
	require.NoError(t, publisher.PublishTransaction(nil))
	require.NoError(t, publisher.PublishContract(nil))
	require.NoError(t, producer.Close())
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}

	assert.NoError(t, p.PublishBlock(&models.Block{Hash: "0xb"}))
	assert.NoError(t, p.PublishTransaction(&models.Transaction{Hash: "0xt"}))
	assert.NoError(t, p.PublishContract(&models.Contract{Address: "0xc"}))
	assert.NoError(t, p.Close())
}
