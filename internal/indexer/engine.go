package indexer

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/sirupsen/logrus"

	"explorer/internal/codec"
	"explorer/internal/errors"
	"explorer/internal/publisher"
	"explorer/internal/store"
	"explorer/pkg/models"
)

// ChainSource 索引引擎对链节点的依赖（回执与字节码补充抓取）
type ChainSource interface {
	Receipt(ctx context.Context, txHash string) (*models.ChainReceipt, error)
	ContractBytecode(ctx context.Context, address string) (string, error)
}

// Storage 索引引擎对持久层的依赖
type Storage interface {
	InTransaction(ctx context.Context, fn func(store.Ledger) error) error
	LastIndexedBlockNumber(ctx context.Context) (number uint64, found bool, err error)
}

// Engine 区块索引引擎
// 每个区块的全部写入在单个数据库事务中完成，按哈希幂等
type Engine struct {
	chain     ChainSource
	storage   Storage
	publisher publisher.Publisher
	logger    *logrus.Logger
}

// NewEngine 创建索引引擎
func NewEngine(chain ChainSource, storage Storage, pub publisher.Publisher, logger *logrus.Logger) *Engine {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	return &Engine{
		chain:     chain,
		storage:   storage,
		publisher: pub,
		logger:    logger,
	}
}

// LastIndexed 返回索引库中的最高区块高度
func (e *Engine) LastIndexed(ctx context.Context) (uint64, bool, error) {
	return e.storage.LastIndexedBlockNumber(ctx)
}

// IndexBlock 索引调度器投递的单个区块payload
// 已索引的区块直接成功返回（no-op），事务内任何失败整体回滚
func (e *Engine) IndexBlock(ctx context.Context, chainBlock *models.ChainBlock) error {
	block, err := parseBlock(chainBlock)
	if err != nil {
		return err
	}
	number := block.Number

	// 事务提交后发布的事件
	var publishedTxs []*models.Transaction
	var publishedContracts []*models.Contract
	indexed := false

	err = e.storage.InTransaction(ctx, func(ledger store.Ledger) error {
		exists, err := ledger.BlockExists(ctx, block.Hash)
		if err != nil {
			return errors.NewIndexingError(number, err)
		}
		if exists {
			e.logger.Infof("区块 #%d (%s) 已索引，跳过", number, block.Hash)
			return nil
		}

		if err := ledger.InsertBlock(ctx, block); err != nil {
			return errors.NewIndexingError(number, err)
		}

		// 按链上顺序逐笔处理
		for _, chainTx := range chainBlock.Transactions {
			tx, err := parseTransaction(chainTx, block)
			if err != nil {
				return err
			}
			if err := ledger.InsertTransaction(ctx, tx); err != nil {
				return errors.NewIndexingError(number, err).WithTxHash(tx.Hash)
			}
			publishedTxs = append(publishedTxs, tx)

			contract, err := e.indexReceipt(ctx, ledger, tx)
			if err != nil {
				return err
			}
			if contract != nil {
				publishedContracts = append(publishedContracts, contract)
			}
		}

		indexed = true
		return nil
	})
	if err != nil {
		return err
	}

	if indexed {
		e.logger.Infof("区块 #%d 索引完成，交易数 %d", number, block.TransactionCount)
		e.publishEvents(block, publishedTxs, publishedContracts)
	}
	return nil
}

// indexReceipt 抓取并落库单笔交易的回执，返回本次新发现的合约
// 回执缺失(pending)只告警跳过；抓取失败中止整个区块
func (e *Engine) indexReceipt(ctx context.Context, ledger store.Ledger, tx *models.Transaction) (*models.Contract, error) {
	chainReceipt, err := e.chain.Receipt(ctx, tx.Hash)
	if err != nil {
		return nil, err
	}
	if chainReceipt == nil {
		e.logger.Warnf("交易 %s 无回执，跳过余额变更", tx.Hash)
		return nil, nil
	}

	receipt, err := parseReceipt(chainReceipt, tx)
	if err != nil {
		return nil, err
	}
	if err := ledger.InsertReceipt(ctx, receipt); err != nil {
		return nil, errors.NewIndexingError(tx.BlockNumber, err).WithTxHash(tx.Hash)
	}

	// 余额变更严格以成功回执为准
	if receipt.Status == 1 {
		if err := e.applyTransfer(ctx, ledger, tx); err != nil {
			return nil, err
		}
	}

	// 合约发现只看contractAddress，不受回执状态约束
	if receipt.ContractAddress != "" {
		return e.registerContract(ctx, ledger, tx, receipt)
	}
	return nil, nil
}

// applyTransfer 把成功交易的余额/nonce/计数变更写入账户缓存
func (e *Engine) applyTransfer(ctx context.Context, ledger store.Ledger, tx *models.Transaction) error {
	value, ok := new(big.Int).SetString(tx.Value, 10)
	if !ok {
		return errors.NewInvalidEncoding(tx.Value).WithTxHash(tx.Hash)
	}
	hasValue := value.Sign() > 0 && tx.To != ""

	from, err := ledger.AccountForUpdate(ctx, tx.From)
	if err != nil {
		return errors.NewIndexingError(tx.BlockNumber, err).WithTxHash(tx.Hash)
	}
	if hasValue {
		balance, ok := new(big.Int).SetString(from.Balance, 10)
		if !ok {
			return errors.NewInvalidEncoding(from.Balance)
		}
		from.Balance = balance.Sub(balance, value).String()
	}
	from.Nonce = tx.Nonce + 1
	from.TxCount++
	if err := ledger.SaveAccount(ctx, from); err != nil {
		return errors.NewIndexingError(tx.BlockNumber, err).WithTxHash(tx.Hash)
	}

	if tx.To == "" {
		return nil
	}

	to, err := ledger.AccountForUpdate(ctx, tx.To)
	if err != nil {
		return errors.NewIndexingError(tx.BlockNumber, err).WithTxHash(tx.Hash)
	}
	if hasValue {
		balance, ok := new(big.Int).SetString(to.Balance, 10)
		if !ok {
			return errors.NewInvalidEncoding(to.Balance)
		}
		to.Balance = balance.Add(balance, value).String()
	}
	to.TxCount++
	if err := ledger.SaveAccount(ctx, to); err != nil {
		return errors.NewIndexingError(tx.BlockNumber, err).WithTxHash(tx.Hash)
	}
	return nil
}

// registerContract 登记新发现的合约部署，按地址幂等
// 字节码best-effort获取，失败不阻塞索引
func (e *Engine) registerContract(ctx context.Context, ledger store.Ledger, tx *models.Transaction, receipt *models.TransactionReceipt) (*models.Contract, error) {
	exists, err := ledger.ContractExists(ctx, receipt.ContractAddress)
	if err != nil {
		return nil, errors.NewIndexingError(tx.BlockNumber, err)
	}
	if exists {
		return nil, nil
	}

	contract := &models.Contract{
		Address:         receipt.ContractAddress,
		Deployer:        tx.From,
		TransactionHash: tx.Hash,
		BlockNumber:     tx.BlockNumber,
		BlockHash:       tx.BlockHash,
		Timestamp:       tx.Timestamp,
	}

	if bytecode, err := e.chain.ContractBytecode(ctx, receipt.ContractAddress); err != nil {
		e.logger.Warnf("获取合约 %s 字节码失败，留空待补: %v", receipt.ContractAddress, err)
	} else if bytecode != "" {
		contract.Bytecode = &bytecode
	}

	if err := ledger.InsertContract(ctx, contract); err != nil {
		return nil, errors.NewIndexingError(tx.BlockNumber, err)
	}

	e.logger.Infof("发现新合约 %s，部署者 %s", contract.Address, contract.Deployer)
	return contract, nil
}

// publishEvents 事务提交后发布索引事件
// 发布失败只告警，不影响已提交的索引结果
func (e *Engine) publishEvents(block *models.Block, txs []*models.Transaction, contracts []*models.Contract) {
	if err := e.publisher.PublishBlock(block); err != nil {
		e.logger.Warnf("发布区块事件失败: %v", err)
	}
	for _, tx := range txs {
		if err := e.publisher.PublishTransaction(tx); err != nil {
			e.logger.Warnf("发布交易事件失败: %v", err)
		}
	}
	for _, contract := range contracts {
		if err := e.publisher.PublishContract(contract); err != nil {
			e.logger.Warnf("发布合约事件失败: %v", err)
		}
	}
}

// parseBlock 把链上区块转换为存储实体，Hex字段全部解码
func parseBlock(chainBlock *models.ChainBlock) (*models.Block, error) {
	number, err := codec.HexToUint64(chainBlock.Number)
	if err != nil {
		return nil, err
	}
	timestamp, err := codec.HexToUint64(chainBlock.Timestamp)
	if err != nil {
		return nil, err
	}
	txCount, err := codec.HexToUint64(chainBlock.TransactionCount)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(chainBlock)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "INTERNAL", "序列化原始区块失败")
	}

	return &models.Block{
		Hash:             chainBlock.Hash,
		Number:           number,
		Timestamp:        timestamp,
		ParentHash:       chainBlock.ParentHash,
		Proposer:         chainBlock.Proposer,
		TransactionCount: int(txCount),
		StateRoot:        chainBlock.StateRoot,
		TransactionsRoot: chainBlock.TransactionsRoot,
		ReceiptsRoot:     chainBlock.ReceiptsRoot,
		Raw:              raw,
	}, nil
}

// parseTransaction 把链上交易转换为存储实体
// Value从Hex解码为任意精度十进制字符串，绝不经过浮点数
func parseTransaction(chainTx *models.ChainTransaction, block *models.Block) (*models.Transaction, error) {
	value, err := codec.HexToDecimalString(chainTx.Value)
	if err != nil {
		return nil, err
	}
	nonce, err := codec.HexToUint64(chainTx.Nonce)
	if err != nil {
		return nil, err
	}

	// 交易自带时间戳优先，缺省回退到所在区块
	timestamp := block.Timestamp
	if chainTx.Timestamp != "" {
		timestamp, err = codec.HexToUint64(chainTx.Timestamp)
		if err != nil {
			return nil, err
		}
	}

	raw, err := json.Marshal(chainTx)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "INTERNAL", "序列化原始交易失败")
	}

	return &models.Transaction{
		Hash:        chainTx.Hash,
		BlockHash:   block.Hash,
		BlockNumber: block.Number,
		From:        chainTx.From,
		To:          chainTx.To,
		Value:       value,
		Nonce:       nonce,
		Timestamp:   timestamp,
		Raw:         raw,
	}, nil
}

// hexOrZero 解码可缺省的Hex数字字段
func hexOrZero(hex string) (string, error) {
	if hex == "" {
		return "0", nil
	}
	return codec.HexToDecimalString(hex)
}

// parseReceipt 把链上回执转换为存储实体
func parseReceipt(chainReceipt *models.ChainReceipt, tx *models.Transaction) (*models.TransactionReceipt, error) {
	status, err := codec.HexToUint64(chainReceipt.Status)
	if err != nil {
		return nil, err
	}
	gasUsed, err := hexOrZero(chainReceipt.GasUsed)
	if err != nil {
		return nil, err
	}
	cumulativeGasUsed, err := hexOrZero(chainReceipt.CumulativeGasUsed)
	if err != nil {
		return nil, err
	}

	txIndex := 0
	if chainReceipt.TransactionIndex != "" {
		index, err := codec.HexToUint64(chainReceipt.TransactionIndex)
		if err != nil {
			return nil, err
		}
		txIndex = int(index)
	}

	logs, err := json.Marshal(chainReceipt.Logs)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "INTERNAL", "序列化回执日志失败")
	}

	return &models.TransactionReceipt{
		TransactionHash:   tx.Hash,
		TransactionIndex:  txIndex,
		BlockHash:         tx.BlockHash,
		BlockNumber:       tx.BlockNumber,
		From:              chainReceipt.From,
		To:                chainReceipt.To,
		Status:            int(status),
		GasUsed:           gasUsed,
		CumulativeGasUsed: cumulativeGasUsed,
		ContractAddress:   chainReceipt.ContractAddress,
		Logs:              logs,
		LogsBloom:         chainReceipt.LogsBloom,
	}, nil
}
