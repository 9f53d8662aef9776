package models

import (
	"encoding/json"
	"time"
)

// Block 区块实体（已索引，不可变）
// hash与number均唯一，number从创世块起连续递增
type Block struct {
	Hash             string          `json:"hash"`
	Number           uint64          `json:"number"`
	Timestamp        uint64          `json:"timestamp"` // 链上时间戳（秒）
	ParentHash       string          `json:"parent_hash"`
	Proposer         string          `json:"proposer"`
	TransactionCount int             `json:"transaction_count"`
	StateRoot        string          `json:"state_root"`
	TransactionsRoot string          `json:"transactions_root"`
	ReceiptsRoot     string          `json:"receipts_root"`
	Raw              json.RawMessage `json:"raw,omitempty"` // 原始payload，保留用于调试/重处理
	CreatedAt        time.Time       `json:"created_at"`    // DB写入时间，区别于链上时间戳
}

// Transaction 交易实体，归属于唯一区块
// Value为十进制字符串，任意精度，绝不使用浮点数
type Transaction struct {
	Hash        string          `json:"hash"`
	BlockHash   string          `json:"block_hash"`
	BlockNumber uint64          `json:"block_number"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       string          `json:"value"`
	Nonce       uint64          `json:"nonce"`
	Timestamp   uint64          `json:"timestamp"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransactionReceipt 交易回执，与交易0或1对应
type TransactionReceipt struct {
	TransactionHash   string          `json:"transaction_hash"`
	TransactionIndex  int             `json:"transaction_index"`
	BlockHash         string          `json:"block_hash"`
	BlockNumber       uint64          `json:"block_number"`
	From              string          `json:"from"`
	To                string          `json:"to"`
	Status            int             `json:"status"` // 1成功 / 0失败 (EIP-658)
	GasUsed           string          `json:"gas_used"`
	CumulativeGasUsed string          `json:"cumulative_gas_used"`
	ContractAddress   string          `json:"contract_address,omitempty"` // 仅合约创建时非空
	Logs              json.RawMessage `json:"logs"`
	LogsBloom         string          `json:"logs_bloom"`
}

// Account 派生账户缓存，仅由Indexer在处理成功转账时更新
// 首次引用时延迟创建零余额行
type Account struct {
	Address     string    `json:"address"`
	Balance     string    `json:"balance"` // 十进制字符串 (Wei)
	Nonce       uint64    `json:"nonce"`
	TxCount     uint64    `json:"tx_count"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// Contract 合约实体，在首次发现部署回执时创建一次
// ABI/源码等元数据由带外管理接口后续补充
type Contract struct {
	Address         string          `json:"address"`
	Deployer        string          `json:"deployer"`
	TransactionHash string          `json:"transaction_hash"`
	BlockNumber     uint64          `json:"block_number"`
	BlockHash       string          `json:"block_hash"`
	Bytecode        *string         `json:"bytecode,omitempty"` // best-effort获取，可能为空
	ABI             json.RawMessage `json:"abi,omitempty"`
	SourceCode      *string         `json:"source_code,omitempty"`
	Name            *string         `json:"name,omitempty"`
	CompilerVersion *string         `json:"compiler_version,omitempty"`
	Optimization    *bool           `json:"optimization,omitempty"`
	Timestamp       uint64          `json:"timestamp"` // 所在区块的链上时间戳
	CreatedAt       time.Time       `json:"created_at"`
}

// ContractMethod 合约方法缓存，ABI解析结果的记忆化
// 随ABI更新整体删除重建，始终可由Contract.ABI重新构造
type ContractMethod struct {
	ContractAddress string          `json:"contract_address"`
	MethodName      string          `json:"method_name"`
	MethodSignature string          `json:"method_signature"` // 4字节函数选择器
	Inputs          json.RawMessage `json:"inputs"`           // 参数类型列表
	Type            string          `json:"type"`
	StateMutability string          `json:"state_mutability"`
}

// MethodInput 方法参数描述
type MethodInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
