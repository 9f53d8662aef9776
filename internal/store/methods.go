package store

import (
	"context"
	"database/sql"
	"fmt"

	"explorer/pkg/models"
)

// ReplaceContractMethods 整体重建合约的方法缓存
// ABI更新后旧缓存立即失效，删除重建保证两者一致
func (q *queries) ReplaceContractMethods(ctx context.Context, address string, methods []*models.ContractMethod) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM contract_methods WHERE contract_address = $1`, address); err != nil {
		return fmt.Errorf("清除方法缓存失败: %w", err)
	}

	for _, method := range methods {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO contract_methods (contract_address, method_name,
				method_signature, inputs, type, state_mutability)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			address, method.MethodName, method.MethodSignature,
			nullableJSON(method.Inputs), method.Type, method.StateMutability)
		if err != nil {
			return fmt.Errorf("写入方法缓存失败: %w", err)
		}
	}
	return nil
}

const methodColumns = `contract_address, method_name, method_signature, inputs, type, state_mutability`

func scanMethod(row interface{ Scan(...interface{}) error }) (*models.ContractMethod, error) {
	var method models.ContractMethod
	var inputs sql.NullString
	err := row.Scan(&method.ContractAddress, &method.MethodName,
		&method.MethodSignature, &inputs, &method.Type, &method.StateMutability)
	if err != nil {
		return nil, err
	}
	if inputs.Valid {
		method.Inputs = []byte(inputs.String)
	}
	return &method, nil
}

// MethodsByContract 列出合约的全部缓存方法
func (q *queries) MethodsByContract(ctx context.Context, address string) ([]*models.ContractMethod, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+methodColumns+` FROM contract_methods WHERE contract_address = $1 ORDER BY method_name`,
		address)
	if err != nil {
		return nil, fmt.Errorf("查询方法缓存失败: %w", err)
	}
	defer rows.Close()

	var methods []*models.ContractMethod
	for rows.Next() {
		method, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("解析方法行失败: %w", err)
		}
		methods = append(methods, method)
	}
	return methods, rows.Err()
}

// MethodByName 按方法名查询缓存项，未找到时返回(nil, nil)
func (q *queries) MethodByName(ctx context.Context, address, name string) (*models.ContractMethod, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+methodColumns+` FROM contract_methods WHERE contract_address = $1 AND method_name = $2`,
		address, name)
	method, err := scanMethod(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询方法失败: %w", err)
	}
	return method, nil
}
