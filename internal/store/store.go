package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"explorer/internal/config"
	"explorer/internal/retry"
	"explorer/pkg/models"
)

// Ledger 索引事务中可用的写入与查询操作集合
// 由Store（自动提交）与事务内的Tx共同实现
type Ledger interface {
	BlockExists(ctx context.Context, hash string) (bool, error)
	InsertBlock(ctx context.Context, block *models.Block) error
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	InsertReceipt(ctx context.Context, receipt *models.TransactionReceipt) error

	AccountForUpdate(ctx context.Context, address string) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error

	ContractExists(ctx context.Context, address string) (bool, error)
	InsertContract(ctx context.Context, contract *models.Contract) error
}

// dbtx 抽象*sql.DB与*sql.Tx的公共查询接口
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries 具体SQL实现，绑定到DB连接或事务
type queries struct {
	db dbtx
}

var _ Ledger = (*queries)(nil)

// Store 持久化存储管理器
type Store struct {
	queries
	db     *sql.DB
	logger *logrus.Logger
}

// Open 建立数据库连接并完成启动探活
// 数据库尚未就绪时按启动重试策略等待
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *logrus.Logger) (*Store, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("数据库DSN不能为空")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	retrier := retry.NewRetrier(retry.StartupRetryConfig, logger)
	if err := retrier.Execute(ctx, "数据库连接探活", func() error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info("数据库连接成功")

	return &Store{
		queries: queries{db: db},
		db:      db,
		logger:  logger,
	}, nil
}

// InTransaction 在单个数据库事务中执行fn
// fn返回错误时整体回滚，否则提交
func (s *Store) InTransaction(ctx context.Context, fn func(Ledger) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}

	if err := fn(&queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Errorf("事务回滚失败: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
