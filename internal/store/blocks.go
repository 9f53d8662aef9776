package store

import (
	"context"
	"database/sql"
	"fmt"

	"explorer/pkg/models"
)

// BlockExists 判断区块是否已索引（幂等重放守卫）
func (q *queries) BlockExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocks WHERE hash = $1)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("查询区块是否存在失败: %w", err)
	}
	return exists, nil
}

// InsertBlock 写入区块
func (q *queries) InsertBlock(ctx context.Context, block *models.Block) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO blocks (hash, number, timestamp, parent_hash, proposer,
			transaction_count, state_root, transactions_root, receipts_root, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		block.Hash, block.Number, block.Timestamp, block.ParentHash, block.Proposer,
		block.TransactionCount, block.StateRoot, block.TransactionsRoot,
		block.ReceiptsRoot, nullableJSON(block.Raw))
	if err != nil {
		return fmt.Errorf("写入区块失败: %w", err)
	}
	return nil
}

const blockColumns = `hash, number, timestamp, parent_hash, proposer,
	transaction_count, state_root, transactions_root, receipts_root, raw, created_at`

func scanBlock(row interface{ Scan(...interface{}) error }) (*models.Block, error) {
	var block models.Block
	var raw sql.NullString
	err := row.Scan(&block.Hash, &block.Number, &block.Timestamp, &block.ParentHash,
		&block.Proposer, &block.TransactionCount, &block.StateRoot,
		&block.TransactionsRoot, &block.ReceiptsRoot, &raw, &block.CreatedAt)
	if err != nil {
		return nil, err
	}
	if raw.Valid {
		block.Raw = []byte(raw.String)
	}
	return &block, nil
}

// BlockByHash 按哈希查询区块，未找到时返回(nil, nil)
func (q *queries) BlockByHash(ctx context.Context, hash string) (*models.Block, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE hash = $1`, hash)
	block, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询区块失败: %w", err)
	}
	return block, nil
}

// BlockByNumber 按高度查询区块，未找到时返回(nil, nil)
func (q *queries) BlockByNumber(ctx context.Context, number uint64) (*models.Block, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE number = $1`, number)
	block, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询区块失败: %w", err)
	}
	return block, nil
}

// ListBlocks 按高度倒序分页列出区块
func (q *queries) ListBlocks(ctx context.Context, limit, offset int) ([]*models.Block, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM blocks ORDER BY number DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("查询区块列表失败: %w", err)
	}
	defer rows.Close()

	var blocks []*models.Block
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("解析区块行失败: %w", err)
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// CountBlocks 返回已索引区块总数
func (q *queries) CountBlocks(ctx context.Context) (uint64, error) {
	var count uint64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计区块数失败: %w", err)
	}
	return count, nil
}

// LastIndexedBlockNumber 返回最高已索引区块高度
// 数据库为空时found为false，同步器由此从创世块开始
func (q *queries) LastIndexedBlockNumber(ctx context.Context) (number uint64, found bool, err error) {
	var max sql.NullInt64
	if err := q.db.QueryRowContext(ctx, `SELECT MAX(number) FROM blocks`).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("查询最高区块高度失败: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return uint64(max.Int64), true, nil
}

// nullableJSON 空的JSON payload写入NULL而非空串
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
