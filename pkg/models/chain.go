package models

import "encoding/json"

// ChainBlock Dustin-Chain节点返回的区块数据
// 所有数字字段均为0x前缀的Hex String
type ChainBlock struct {
	Number           string              `json:"number"`
	Hash             string              `json:"hash"`
	ParentHash       string              `json:"parentHash"`
	Timestamp        string              `json:"timestamp"`
	Proposer         string              `json:"proposer"`
	TransactionCount string              `json:"transactionCount"`
	Transactions     []*ChainTransaction `json:"transactions"`
	StateRoot        string              `json:"stateRoot"`
	TransactionsRoot string              `json:"transactionsRoot"`
	ReceiptsRoot     string              `json:"receiptsRoot"`
}

// ChainTransaction 链上交易数据
type ChainTransaction struct {
	Hash             string `json:"hash"`
	From             string `json:"from"`
	To               string `json:"to"`
	Value            string `json:"value"` // Hex String (Wei)
	Nonce            string `json:"nonce"`
	V                string `json:"v"`
	R                string `json:"r"`
	S                string `json:"s"`
	Timestamp        string `json:"timestamp"`
	BlockNumber      string `json:"blockNumber,omitempty"`
	BlockHash        string `json:"blockHash,omitempty"`
	TransactionIndex string `json:"transactionIndex,omitempty"`
}

// ChainReceipt 交易执行回执
// ContractAddress仅在合约创建交易中非空
type ChainReceipt struct {
	TransactionHash   string            `json:"transactionHash"`
	TransactionIndex  string            `json:"transactionIndex"`
	BlockHash         string            `json:"blockHash"`
	BlockNumber       string            `json:"blockNumber"`
	From              string            `json:"from"`
	To                string            `json:"to"`
	Status            string            `json:"status"` // 0x1成功 / 0x0失败
	GasUsed           string            `json:"gasUsed"`
	CumulativeGasUsed string            `json:"cumulativeGasUsed"`
	ContractAddress   string            `json:"contractAddress"`
	Logs              []json.RawMessage `json:"logs"`
	LogsBloom         string            `json:"logsBloom"`
}

// ChainAccount 链上账户状态
type ChainAccount struct {
	Address string `json:"address"`
	Balance string `json:"balance"` // Hex String (Wei)
	Nonce   string `json:"nonce"`
}

// ChainStats 链统计信息（该接口返回十进制数字，非Hex）
type ChainStats struct {
	Height            uint64 `json:"height"`
	LatestBlockNumber uint64 `json:"latestBlockNumber"`
	LatestBlockHash   string `json:"latestBlockHash"`
	TotalTransactions uint64 `json:"totalTransactions"`
	GenesisProposer   string `json:"genesisProposer"`
}

// ChainTxResult 合约部署/执行的提交结果
type ChainTxResult struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

// ChainCallResult 合约只读调用结果
type ChainCallResult struct {
	Result  string `json:"result"`
	GasUsed string `json:"gasUsed"`
}

// IndexResult Indexer ingress的处理结果响应
type IndexResult struct {
	Success     bool   `json:"success"`
	BlockNumber uint64 `json:"blockNumber"`
	Error       string `json:"error,omitempty"`
}
