package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Submit accepts a vote intent after eligibility and quota checks.
	// Duplicate (business, user, proposal) submissions return
	// ErrDuplicateVote so the caller can react.
	Submit(ctx context.Context, req SubmitVoteRequest) (*VoteIntent, error)
	List(ctx context.Context, req ListVotesRequest) (ListVotesResponse, error)
	Get(ctx context.Context, voteID string) (*VoteIntent, error)
	// Delete removes an unprocessed intent. Processed intents are the
	// permanent audit trail and cannot be deleted.
	Delete(ctx context.Context, voteID string) error
	Stats(ctx context.Context) (VoteStats, error)
	// Sweep deletes unprocessed intents older than maxAge across all
	// tenants. Processed records are never touched.
	Sweep(ctx context.Context, maxAge time.Duration) (int64, error)
}

var (
	ErrInvalidProposal      = errors.New("invalid_proposal_id")
	ErrInvalidUser          = errors.New("invalid_user_id")
	ErrInvalidProduct       = errors.New("invalid_product_id")
	ErrDuplicateVote        = errors.New("duplicate_vote")
	ErrVoteNotFound         = errors.New("vote_not_found")
	ErrVoteAlreadyProcessed = errors.New("vote_already_processed")
	ErrVotingLimitExceeded  = errors.New("voting_limit_exceeded")
)
