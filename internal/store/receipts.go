package store

import (
	"context"
	"database/sql"
	"fmt"

	"explorer/pkg/models"
)

// InsertReceipt 写入交易回执
func (q *queries) InsertReceipt(ctx context.Context, receipt *models.TransactionReceipt) error {
	var contractAddress interface{}
	if receipt.ContractAddress != "" {
		contractAddress = receipt.ContractAddress
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transaction_receipts (transaction_hash, transaction_index,
			block_hash, block_number, "from", "to", status, gas_used,
			cumulative_gas_used, contract_address, logs, logs_bloom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		receipt.TransactionHash, receipt.TransactionIndex, receipt.BlockHash,
		receipt.BlockNumber, receipt.From, receipt.To, receipt.Status,
		receipt.GasUsed, receipt.CumulativeGasUsed, contractAddress,
		nullableJSON(receipt.Logs), receipt.LogsBloom)
	if err != nil {
		return fmt.Errorf("写入回执失败: %w", err)
	}
	return nil
}

// ReceiptByTransactionHash 按交易哈希查询回执，未找到时返回(nil, nil)
func (q *queries) ReceiptByTransactionHash(ctx context.Context, txHash string) (*models.TransactionReceipt, error) {
	var receipt models.TransactionReceipt
	var contractAddress, logs sql.NullString

	err := q.db.QueryRowContext(ctx, `
		SELECT transaction_hash, transaction_index, block_hash, block_number,
			"from", "to", status, gas_used, cumulative_gas_used,
			contract_address, logs, logs_bloom
		FROM transaction_receipts WHERE transaction_hash = $1`, txHash).Scan(
		&receipt.TransactionHash, &receipt.TransactionIndex, &receipt.BlockHash,
		&receipt.BlockNumber, &receipt.From, &receipt.To, &receipt.Status,
		&receipt.GasUsed, &receipt.CumulativeGasUsed, &contractAddress,
		&logs, &receipt.LogsBloom)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询回执失败: %w", err)
	}

	if contractAddress.Valid {
		receipt.ContractAddress = contractAddress.String
	}
	if logs.Valid {
		receipt.Logs = []byte(logs.String)
	}
	return &receipt, nil
}
