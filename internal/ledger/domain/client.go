// Package domain defines the narrow interface to the external ledger. The
// engine treats every call as an opaque network operation with
// vendor-specific latency and failure modes; nothing beyond the typed
// results is assumed.
package domain

import (
	"context"
	"errors"
	"time"
)

type DeployResult struct {
	ContractAddress string `json:"contract_address"`
	TxHash          string `json:"tx_hash"`
}

type RoundResult struct {
	RoundID string `json:"round_id"`
	TxHash  string `json:"tx_hash"`
}

type SubmitResult struct {
	TxHash        string  `json:"tx_hash"`
	BlockNumber   uint64  `json:"block_number"`
	GasUsed       uint64  `json:"gas_used"`
	GasPriceGwei  float64 `json:"gas_price_gwei"`
	AcceptedCount int     `json:"accepted_count"`
}

type RoundEvent struct {
	RoundID     string    `json:"round_id"`
	MetadataURI string    `json:"metadata_uri"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type VoteEvent struct {
	RoundID     string    `json:"round_id"`
	VoteID      string    `json:"vote_id"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Client is the ledger collaborator. SubmitBatch takes three parallel
// arrays whose indexes correspond: round identifiers, public vote
// identifiers, and user signatures.
type Client interface {
	DeployContract(ctx context.Context) (*DeployResult, error)
	CreateRound(ctx context.Context, contractAddress, metadataURI string) (*RoundResult, error)
	SubmitBatch(ctx context.Context, contractAddress string, roundIDs, voteIDs, signatures []string) (*SubmitResult, error)
	GetRoundEvents(ctx context.Context, contractAddress string) ([]RoundEvent, error)
	GetVoteEvents(ctx context.Context, contractAddress string) ([]VoteEvent, error)
}

// ErrLedgerUnavailable wraps network, funds, and contract-revert failures.
// Callers may retry: a failed submission mutates nothing on our side.
var ErrLedgerUnavailable = errors.New("ledger_unavailable")
