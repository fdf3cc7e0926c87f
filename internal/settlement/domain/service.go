package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/votechain/internal/costing"
	"github.com/smallbiznis/votechain/pkg/db/pagination"
)

type ListBatchesRequest struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type ListBatchesResponse struct {
	pagination.PageInfo
	Batches []BatchResult `json:"batches"`
}

type Service interface {
	// ProcessBatch runs one settlement attempt for the business in
	// context. Settlement is all-or-nothing: the ledger call either
	// succeeds and the batch's intents flip to processed, or it fails
	// and nothing changes.
	ProcessBatch(ctx context.Context, criteria SelectionCriteria) (*BatchResult, error)

	// EstimateSavings compares individual versus batched settlement for
	// voteCount votes; zero means the current pending queue size.
	EstimateSavings(ctx context.Context, voteCount int) (costing.Estimate, error)

	// ValidateVotes dry-runs eligibility over the given vote IDs, or over
	// the whole pending queue when the list is empty.
	ValidateVotes(ctx context.Context, voteIDs []string) ([]VoteValidation, error)

	Status(ctx context.Context) (QueueStatus, error)

	ListBatches(ctx context.Context, req ListBatchesRequest) (ListBatchesResponse, error)

	// AutoProcess is the scheduler entry point: it flushes the queue only
	// when the tenant opted in and the policy evaluation says ready.
	AutoProcess(ctx context.Context) (AutoProcessResult, error)
}

// ErrSettlementBusy means another batch attempt holds the tenant's
// settlement slot. Safe to retry after it finishes.
var ErrSettlementBusy = errors.New("settlement_busy")
