package store

import (
	"context"
	"fmt"
)

// 建表语句按依赖顺序排列，全部幂等
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS blocks (
		hash VARCHAR(66) PRIMARY KEY,
		number BIGINT NOT NULL UNIQUE,
		timestamp BIGINT NOT NULL,
		parent_hash VARCHAR(66) NOT NULL,
		proposer VARCHAR(42) NOT NULL,
		transaction_count INTEGER NOT NULL DEFAULT 0,
		state_root VARCHAR(66) NOT NULL DEFAULT '',
		transactions_root VARCHAR(66) NOT NULL DEFAULT '',
		receipts_root VARCHAR(66) NOT NULL DEFAULT '',
		raw JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_number ON blocks (number DESC)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		hash VARCHAR(66) PRIMARY KEY,
		block_hash VARCHAR(66) NOT NULL REFERENCES blocks(hash),
		block_number BIGINT NOT NULL,
		"from" VARCHAR(42) NOT NULL,
		"to" VARCHAR(42) NOT NULL DEFAULT '',
		value NUMERIC(78,0) NOT NULL DEFAULT 0,
		nonce BIGINT NOT NULL DEFAULT 0,
		timestamp BIGINT NOT NULL,
		raw JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_block_hash ON transactions (block_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions ("from")`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions ("to")`,

	`CREATE TABLE IF NOT EXISTS transaction_receipts (
		transaction_hash VARCHAR(66) PRIMARY KEY REFERENCES transactions(hash),
		transaction_index INTEGER NOT NULL DEFAULT 0,
		block_hash VARCHAR(66) NOT NULL,
		block_number BIGINT NOT NULL,
		"from" VARCHAR(42) NOT NULL,
		"to" VARCHAR(42) NOT NULL DEFAULT '',
		status INTEGER NOT NULL,
		gas_used NUMERIC(78,0) NOT NULL DEFAULT 0,
		cumulative_gas_used NUMERIC(78,0) NOT NULL DEFAULT 0,
		contract_address VARCHAR(42),
		logs JSONB,
		logs_bloom TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS accounts (
		address VARCHAR(42) PRIMARY KEY,
		balance NUMERIC(78,0) NOT NULL DEFAULT 0,
		nonce BIGINT NOT NULL DEFAULT 0,
		tx_count BIGINT NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS contracts (
		address VARCHAR(42) PRIMARY KEY,
		deployer VARCHAR(42) NOT NULL,
		transaction_hash VARCHAR(66) NOT NULL,
		block_number BIGINT NOT NULL,
		block_hash VARCHAR(66) NOT NULL,
		bytecode TEXT,
		abi JSONB,
		source_code TEXT,
		name VARCHAR(255),
		compiler_version VARCHAR(64),
		optimization BOOLEAN,
		timestamp BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS contract_methods (
		contract_address VARCHAR(42) NOT NULL REFERENCES contracts(address),
		method_name VARCHAR(255) NOT NULL,
		method_signature VARCHAR(10) NOT NULL,
		inputs JSONB,
		type VARCHAR(32) NOT NULL DEFAULT 'function',
		state_mutability VARCHAR(32) NOT NULL DEFAULT '',
		PRIMARY KEY (contract_address, method_name)
	)`,
}

// EnsureSchema 幂等创建全部数据表与索引
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("初始化数据表失败: %w", err)
		}
	}
	s.logger.Info("数据表结构就绪")
	return nil
}
