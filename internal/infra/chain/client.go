// Package chain binds the generic retrieval engine to a concrete EVM-style
// JSON-RPC provider: head block lookups, block timestamps, and range-scoped
// log queries.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MoonletLabs/tempo-analytics/internal/core/domain"
	"github.com/MoonletLabs/tempo-analytics/internal/infra/rpc"
	"github.com/MoonletLabs/tempo-analytics/internal/metrics"
)

// LogFilter narrows a log query to a contract address and/or topics. Empty
// fields are omitted from the query.
type LogFilter struct {
	Address string
	Topics  []string
}

// Client exposes the provider operations the retrieval engine needs.
type Client struct {
	provider rpc.Provider
}

// NewClient creates a chain client over the given provider.
func NewClient(p rpc.Provider) *Client {
	return &Client{provider: p}
}

// HeadBlock returns the most recently produced block number known to the
// provider.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	result, err := c.provider.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	var blockHex string
	if err := json.Unmarshal(result, &blockHex); err != nil {
		return 0, fmt.Errorf("invalid block number response: %w", err)
	}

	head, err := parseHexUint(blockHex)
	if err != nil {
		return 0, err
	}

	metrics.ChainHead.Set(float64(head))
	return head, nil
}

// BlockTimestamp returns the unix timestamp of the given block.
func (c *Client) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	params := []any{hexUint(blockNumber), false}
	result, err := c.provider.Call(ctx, "eth_getBlockByNumber", params)
	if err != nil {
		return 0, fmt.Errorf("eth_getBlockByNumber failed: %w", err)
	}
	if len(result) == 0 || string(result) == "null" {
		return 0, fmt.Errorf("block %d not found", blockNumber)
	}

	var block struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(result, &block); err != nil {
		return 0, fmt.Errorf("invalid block response: %w", err)
	}

	return parseHexUint(block.Timestamp)
}

// Logs fetches all logs matching the filter inside the inclusive block range.
// Overscanned ranges, rate limits, and provider-corrected ranges surface as
// errors for the retrieval engine to classify.
func (c *Client) Logs(ctx context.Context, r domain.BlockRange, filter LogFilter) ([]domain.Record, error) {
	query := map[string]any{
		"fromBlock": hexUint(r.From),
		"toBlock":   hexUint(r.To),
	}
	if filter.Address != "" {
		query["address"] = strings.ToLower(filter.Address)
	}
	if len(filter.Topics) > 0 {
		query["topics"] = filter.Topics
	}

	result, err := c.provider.Call(ctx, "eth_getLogs", []any{query})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs %s failed: %w", r, err)
	}

	var rawLogs []json.RawMessage
	if err := json.Unmarshal(result, &rawLogs); err != nil {
		return nil, fmt.Errorf("invalid logs response: %w", err)
	}

	records := make([]domain.Record, 0, len(rawLogs))
	for i, raw := range rawLogs {
		rec, err := parseLog(raw)
		if err != nil {
			return nil, fmt.Errorf("parse log %d in %s: %w", i, r, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseLog(raw json.RawMessage) (domain.Record, error) {
	var log struct {
		TransactionHash string `json:"transactionHash"`
		LogIndex        string `json:"logIndex"`
		BlockNumber     string `json:"blockNumber"`
	}
	if err := json.Unmarshal(raw, &log); err != nil {
		return domain.Record{}, err
	}
	if log.TransactionHash == "" {
		return domain.Record{}, fmt.Errorf("log missing transaction hash")
	}

	logIndex, err := parseHexUint(log.LogIndex)
	if err != nil {
		return domain.Record{}, fmt.Errorf("log index: %w", err)
	}
	blockNumber, err := parseHexUint(log.BlockNumber)
	if err != nil {
		return domain.Record{}, fmt.Errorf("block number: %w", err)
	}

	return domain.Record{
		TxHash:      log.TransactionHash,
		LogIndex:    uint32(logIndex),
		BlockNumber: blockNumber,
		Payload:     raw,
	}, nil
}

func hexUint(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

func parseHexUint(hexStr string) (uint64, error) {
	s := strings.TrimPrefix(hexStr, "0x")
	if s == "" {
		return 0, fmt.Errorf("invalid hex: %q", hexStr)
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex %q: %w", hexStr, err)
	}
	return n, nil
}
