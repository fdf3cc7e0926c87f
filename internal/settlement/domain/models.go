package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/votechain/internal/batching"
	"github.com/smallbiznis/votechain/internal/costing"
	"gorm.io/datatypes"
)

// SelectionCriteria narrows which pending votes a batch attempt considers.
// Explicit VoteIDs win over ProposalID; with neither, the whole pending
// queue is eligible, oldest first.
type SelectionCriteria struct {
	VoteIDs      []string `json:"vote_ids"`
	ProposalID   string   `json:"proposal_id"`
	ForceProcess bool     `json:"force_process"`
	// MaxVotes caps the batch below the tenant's max batch size; zero
	// means use the policy cap.
	MaxVotes int `json:"max_votes"`
}

// FailedVote reports one intent that was selected but did not qualify. The
// row stays unprocessed.
type FailedVote struct {
	VoteID string   `json:"vote_id"`
	Errors []string `json:"errors"`
}

// BatchResult is the audit record of one settlement attempt that reached
// the ledger and succeeded. Failures persist nothing.
type BatchResult struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	BusinessID snowflake.ID `gorm:"index:idx_batch_results_business" json:"business_id"`
	BatchID    string       `gorm:"uniqueIndex:idx_batch_results_batch_id" json:"batch_id"`

	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`

	TotalVotes     int `json:"total_votes"`
	ProcessedCount int `json:"processed_count"`
	FailedCount    int `json:"failed_count"`
	// SkippedCount is valid votes left behind by the batch size cap.
	SkippedCount int `json:"skipped_count"`

	ProcessedVotes datatypes.JSONSlice[string]     `json:"processed_votes"`
	FailedVotes    datatypes.JSONSlice[FailedVote] `json:"failed_votes"`

	GasPriceGwei   float64 `json:"gas_price_gwei"`
	TotalCostGwei  float64 `json:"total_cost_gwei"`
	SavingsGwei    float64 `json:"savings_gwei"`
	SavingsPercent float64 `json:"savings_percent"`

	CreatedAt time.Time `json:"created_at"`
}

func (BatchResult) TableName() string {
	return "batch_results"
}

// VoteValidation is the dry-run eligibility report for one intent.
type VoteValidation struct {
	VoteID   string   `json:"vote_id"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	CanFix   bool     `json:"can_fix"`
	Priority int      `json:"priority"`
}

// QueueStatus is the dashboard view of a tenant's settlement queue.
type QueueStatus struct {
	PendingCount      int64               `json:"pending_count"`
	ValidCount        int                 `json:"valid_count"`
	Evaluation        batching.Evaluation `json:"evaluation"`
	RecommendedAction string              `json:"recommended_action"`
	Estimate          costing.Estimate    `json:"estimate"`
}

// AutoProcessResult reports whether a scheduled pass flushed a batch.
type AutoProcessResult struct {
	Triggered bool         `json:"triggered"`
	Reason    string       `json:"reason,omitempty"`
	Result    *BatchResult `json:"result,omitempty"`
}

// NotReadyError is returned when a non-forced batch attempt finds the queue
// below policy. It carries the evaluation so callers can report the gap.
type NotReadyError struct {
	Evaluation batching.Evaluation
}

func (e *NotReadyError) Error() string {
	if e.Evaluation.Reason != "" {
		return fmt.Sprintf("batch_not_ready: %s", e.Evaluation.Reason)
	}
	return "batch_not_ready"
}
