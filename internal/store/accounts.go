package store

import (
	"context"
	"database/sql"
	"fmt"

	"explorer/pkg/models"
)

const accountColumns = `address, balance, nonce, tx_count, last_updated, created_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.Account, error) {
	var account models.Account
	err := row.Scan(&account.Address, &account.Balance, &account.Nonce,
		&account.TxCount, &account.LastUpdated, &account.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// AccountByAddress 按地址查询账户缓存，未找到时返回(nil, nil)
func (q *queries) AccountByAddress(ctx context.Context, address string) (*models.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE address = $1`, address)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}
	return account, nil
}

// AccountForUpdate 锁定账户行用于余额变更，不存在时延迟创建零余额行
// 只应在索引事务内调用
func (q *queries) AccountForUpdate(ctx context.Context, address string) (*models.Account, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (address, balance, nonce, tx_count)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (address) DO NOTHING`, address)
	if err != nil {
		return nil, fmt.Errorf("创建账户失败: %w", err)
	}

	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE address = $1 FOR UPDATE`, address)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("锁定账户失败: %w", err)
	}
	return account, nil
}

// SaveAccount 持久化账户的余额/nonce/交易计数变更
func (q *queries) SaveAccount(ctx context.Context, account *models.Account) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $2, nonce = $3, tx_count = $4, last_updated = CURRENT_TIMESTAMP
		WHERE address = $1`,
		account.Address, account.Balance, account.Nonce, account.TxCount)
	if err != nil {
		return fmt.Errorf("更新账户失败: %w", err)
	}
	return nil
}
