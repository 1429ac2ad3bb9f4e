package ethrpc

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Quantity is an Ethereum numeric value, encoded on the wire as a
// 0x-prefixed hexadecimal string.
type Quantity uint64

func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", uint64(q)))
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw := strings.TrimPrefix(s, "0x")
	if raw == "" || raw == s {
		return fmt.Errorf("invalid quantity %q", s)
	}
	v, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	*q = Quantity(v)
	return nil
}

// Hash is a 0x-prefixed 32-byte hash.
type Hash string

// Address is a 0x-prefixed 20-byte account address.
type Address string

// BlockSpec designates a block either by number or by symbolic tag.
type BlockSpec struct {
	Number Quantity
	Tag    string // "latest", "finalized" or "safe"; empty means by number
}

func BlockByNumber(n Quantity) BlockSpec { return BlockSpec{Number: n} }
func BlockByTag(tag string) BlockSpec    { return BlockSpec{Tag: tag} }

func (s BlockSpec) MarshalJSON() ([]byte, error) {
	if s.Tag != "" {
		return json.Marshal(s.Tag)
	}
	return s.Number.MarshalJSON()
}

func (s BlockSpec) String() string {
	if s.Tag != "" {
		return s.Tag
	}
	return fmt.Sprintf("0x%x", uint64(s.Number))
}

// Block is the subset of an eth_getBlockByNumber response the gateway
// cross-checks. All fields are comparable, so blocks compare with ==.
type Block struct {
	Number        Quantity `json:"number"`
	Hash          Hash     `json:"hash"`
	ParentHash    Hash     `json:"parentHash"`
	Timestamp     Quantity `json:"timestamp"`
	BaseFeePerGas Quantity `json:"baseFeePerGas"`
}

// LogEntry is one eth_getLogs event.
type LogEntry struct {
	Address          Address  `json:"address"`
	Topics           []Hash   `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      Quantity `json:"blockNumber"`
	BlockHash        Hash     `json:"blockHash"`
	TransactionHash  Hash     `json:"transactionHash"`
	TransactionIndex Quantity `json:"transactionIndex"`
	LogIndex         Quantity `json:"logIndex"`
	Removed          bool     `json:"removed"`
}

func (l LogEntry) Equal(other LogEntry) bool {
	return l.Address == other.Address &&
		slices.Equal(l.Topics, other.Topics) &&
		l.Data == other.Data &&
		l.BlockNumber == other.BlockNumber &&
		l.BlockHash == other.BlockHash &&
		l.TransactionHash == other.TransactionHash &&
		l.TransactionIndex == other.TransactionIndex &&
		l.LogIndex == other.LogIndex &&
		l.Removed == other.Removed
}

// LogsEqual reports full equality of two eth_getLogs responses,
// including order.
func LogsEqual(a, b []LogEntry) bool {
	return slices.EqualFunc(a, b, LogEntry.Equal)
}

// FilterQuery is the parameter object of eth_getLogs.
type FilterQuery struct {
	FromBlock BlockSpec `json:"fromBlock"`
	ToBlock   BlockSpec `json:"toBlock"`
	Addresses []Address `json:"address"`
	Topics    [][]Hash  `json:"topics,omitempty"`
}

// FeeHistoryParams is the positional parameter list of eth_feeHistory.
type FeeHistoryParams struct {
	BlockCount        Quantity
	HighestBlock      BlockSpec
	RewardPercentiles []float64
}

func (p FeeHistoryParams) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.BlockCount, p.HighestBlock, p.RewardPercentiles})
}

// FeeHistory is the eth_feeHistory response.
type FeeHistory struct {
	OldestBlock   Quantity     `json:"oldestBlock"`
	BaseFeePerGas []Quantity   `json:"baseFeePerGas"`
	GasUsedRatio  []float64    `json:"gasUsedRatio"`
	Reward        [][]Quantity `json:"reward"`
}

func (f FeeHistory) Equal(other FeeHistory) bool {
	return f.OldestBlock == other.OldestBlock &&
		slices.Equal(f.BaseFeePerGas, other.BaseFeePerGas) &&
		slices.Equal(f.GasUsedRatio, other.GasUsedRatio) &&
		slices.EqualFunc(f.Reward, other.Reward, slices.Equal)
}

// TransactionReceipt is the subset of an eth_getTransactionReceipt
// response the gateway cross-checks. A nil *TransactionReceipt means
// the transaction is not yet mined; providers must agree on that too.
type TransactionReceipt struct {
	TransactionHash   Hash     `json:"transactionHash"`
	BlockHash         Hash     `json:"blockHash"`
	BlockNumber       Quantity `json:"blockNumber"`
	EffectiveGasPrice Quantity `json:"effectiveGasPrice"`
	GasUsed           Quantity `json:"gasUsed"`
	Status            Quantity `json:"status"`
}

// ReceiptsEqual compares two possibly-nil receipts.
func ReceiptsEqual(a, b *TransactionReceipt) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
