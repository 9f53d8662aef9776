package store

import (
	"context"
	"database/sql"
	"fmt"

	"explorer/pkg/models"
)

// ContractExists 判断合约是否已登记（按地址幂等）
func (q *queries) ContractExists(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contracts WHERE address = $1)`, address).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("查询合约是否存在失败: %w", err)
	}
	return exists, nil
}

// InsertContract 登记新发现的合约
func (q *queries) InsertContract(ctx context.Context, contract *models.Contract) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO contracts (address, deployer, transaction_hash, block_number,
			block_hash, bytecode, abi, source_code, name, compiler_version,
			optimization, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (address) DO NOTHING`,
		contract.Address, contract.Deployer, contract.TransactionHash,
		contract.BlockNumber, contract.BlockHash, contract.Bytecode,
		nullableJSON(contract.ABI), contract.SourceCode, contract.Name,
		contract.CompilerVersion, contract.Optimization, contract.Timestamp)
	if err != nil {
		return fmt.Errorf("写入合约失败: %w", err)
	}
	return nil
}

const contractColumns = `address, deployer, transaction_hash, block_number, block_hash,
	bytecode, abi, source_code, name, compiler_version, optimization, timestamp, created_at`

func scanContract(row interface{ Scan(...interface{}) error }) (*models.Contract, error) {
	var contract models.Contract
	var abi sql.NullString
	err := row.Scan(&contract.Address, &contract.Deployer, &contract.TransactionHash,
		&contract.BlockNumber, &contract.BlockHash, &contract.Bytecode, &abi,
		&contract.SourceCode, &contract.Name, &contract.CompilerVersion,
		&contract.Optimization, &contract.Timestamp, &contract.CreatedAt)
	if err != nil {
		return nil, err
	}
	if abi.Valid {
		contract.ABI = []byte(abi.String)
	}
	return &contract, nil
}

// ContractByAddress 按地址查询合约，未找到时返回(nil, nil)
func (q *queries) ContractByAddress(ctx context.Context, address string) (*models.Contract, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE address = $1`, address)
	contract, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询合约失败: %w", err)
	}
	return contract, nil
}

// ListContracts 按发现时间倒序分页列出合约
func (q *queries) ListContracts(ctx context.Context, limit, offset int) ([]*models.Contract, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts ORDER BY block_number DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("查询合约列表失败: %w", err)
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("解析合约行失败: %w", err)
		}
		contracts = append(contracts, contract)
	}
	return contracts, rows.Err()
}

// ContractMetadata 带外管理接口提交的合约元数据
type ContractMetadata struct {
	ABI             []byte
	SourceCode      *string
	Name            *string
	CompilerVersion *string
	Optimization    *bool
}

// UpdateContractMetadata 更新合约的ABI与验证信息
// 返回是否确实存在该合约
func (q *queries) UpdateContractMetadata(ctx context.Context, address string, meta *ContractMetadata) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE contracts
		SET abi = COALESCE($2, abi),
			source_code = COALESCE($3, source_code),
			name = COALESCE($4, name),
			compiler_version = COALESCE($5, compiler_version),
			optimization = COALESCE($6, optimization)
		WHERE address = $1`,
		address, nullableJSON(meta.ABI), meta.SourceCode, meta.Name,
		meta.CompilerVersion, meta.Optimization)
	if err != nil {
		return false, fmt.Errorf("更新合约元数据失败: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("读取更新结果失败: %w", err)
	}
	return affected > 0, nil
}

// UpdateContractBytecode 补充延迟获取到的字节码
func (q *queries) UpdateContractBytecode(ctx context.Context, address, bytecode string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE contracts SET bytecode = $2 WHERE address = $1`, address, bytecode)
	if err != nil {
		return fmt.Errorf("更新合约字节码失败: %w", err)
	}
	return nil
}
