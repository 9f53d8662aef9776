package store

import (
	"context"
	"database/sql"
	"fmt"

	"explorer/pkg/models"
)

// InsertTransaction 写入交易
func (q *queries) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (hash, block_hash, block_number, "from", "to",
			value, nonce, timestamp, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.Hash, tx.BlockHash, tx.BlockNumber, tx.From, tx.To,
		tx.Value, tx.Nonce, tx.Timestamp, nullableJSON(tx.Raw))
	if err != nil {
		return fmt.Errorf("写入交易失败: %w", err)
	}
	return nil
}

const txColumns = `hash, block_hash, block_number, "from", "to", value, nonce, timestamp, raw, created_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*models.Transaction, error) {
	var tx models.Transaction
	var raw sql.NullString
	err := row.Scan(&tx.Hash, &tx.BlockHash, &tx.BlockNumber, &tx.From, &tx.To,
		&tx.Value, &tx.Nonce, &tx.Timestamp, &raw, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	if raw.Valid {
		tx.Raw = []byte(raw.String)
	}
	return &tx, nil
}

// TransactionByHash 按哈希查询交易，未找到时返回(nil, nil)
func (q *queries) TransactionByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE hash = $1`, hash)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询交易失败: %w", err)
	}
	return tx, nil
}

// TransactionsByBlockHash 列出指定区块内的全部交易，保持链上顺序
func (q *queries) TransactionsByBlockHash(ctx context.Context, blockHash string) ([]*models.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE block_hash = $1 ORDER BY created_at, hash`,
		blockHash)
	if err != nil {
		return nil, fmt.Errorf("查询区块交易失败: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// TransactionsByAddress 列出地址作为发送方或接收方的交易，按区块高度倒序
func (q *queries) TransactionsByAddress(ctx context.Context, address string, limit, offset int) ([]*models.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE "from" = $1 OR "to" = $1
		 ORDER BY block_number DESC, hash LIMIT $2 OFFSET $3`,
		address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("查询账户交易失败: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListTransactions 按区块高度倒序分页列出交易
func (q *queries) ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions ORDER BY block_number DESC, hash LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("查询交易列表失败: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// CountTransactions 返回已索引交易总数
func (q *queries) CountTransactions(ctx context.Context) (uint64, error) {
	var count uint64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计交易数失败: %w", err)
	}
	return count, nil
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("解析交易行失败: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
