// Package domain contains persistence models for vote intents awaiting
// on-chain settlement.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/votechain/pkg/db/pagination"
	"gorm.io/datatypes"
)

// VoteIntent records one user's chosen product for one selection round of one
// business. Exactly one intent may exist per (business, user, proposal); the
// unique index backs the atomic duplicate rejection at intake.
type VoteIntent struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	BusinessID snowflake.ID `gorm:"not null;uniqueIndex:idx_vote_intents_ballot;index:idx_vote_intents_pending" json:"business_id"`
	ProposalID string       `gorm:"type:text;not null;uniqueIndex:idx_vote_intents_ballot" json:"proposal_id"`
	UserID     string       `gorm:"type:text;not null;uniqueIndex:idx_vote_intents_ballot" json:"user_id"`

	// VoteID is the external/public identifier submitted on-chain.
	VoteID string `gorm:"type:text;not null;index" json:"vote_id"`

	SelectedProductID string  `gorm:"type:text;not null" json:"selected_product_id"`
	ProductName       *string `gorm:"type:text" json:"product_name,omitempty"`
	ProductImageURL   *string `gorm:"type:text" json:"product_image_url,omitempty"`
	SelectionReason   *string `gorm:"type:text" json:"selection_reason,omitempty"`
	UserSignature     *string `gorm:"type:text" json:"user_signature,omitempty"`

	IsVerified  bool       `gorm:"not null;default:false" json:"is_verified"`
	IsProcessed bool       `gorm:"not null;default:false;index:idx_vote_intents_pending" json:"is_processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
}

// TableName sets the database table name.
func (VoteIntent) TableName() string { return "vote_intents" }

// Age returns how long the intent has been queued, as of now.
func (v VoteIntent) Age(now time.Time) time.Duration {
	return now.Sub(v.CreatedAt)
}

type SubmitVoteRequest struct {
	ProposalID        string         `json:"proposal_id"`
	UserID            string         `json:"user_id"`
	VoteID            string         `json:"vote_id"`
	SelectedProductID string         `json:"selected_product_id"`
	ProductName       string         `json:"product_name"`
	ProductImageURL   string         `json:"product_image_url"`
	SelectionReason   string         `json:"selection_reason"`
	UserSignature     string         `json:"user_signature"`
	IsVerified        bool           `json:"is_verified"`
	Metadata          map[string]any `json:"metadata"`
}

type ListVotesRequest struct {
	ProposalID string `form:"proposal_id"`
	UserID     string `form:"user_id"`
	Processed  *bool  `form:"processed"`
	SortBy     string `form:"sort_by"`
	Desc       bool   `form:"desc"`
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
}

type ListVotesResponse struct {
	pagination.PageInfo
	Votes []VoteIntent `json:"votes"`
}

// VoteStats summarizes the tenant's vote queue for dashboards.
type VoteStats struct {
	TotalVotes        int64      `json:"total_votes"`
	PendingVotes      int64      `json:"pending_votes"`
	ProcessedVotes    int64      `json:"processed_votes"`
	VerifiedPending   int64      `json:"verified_pending"`
	OldestPendingAt   *time.Time `json:"oldest_pending_at,omitempty"`
	PendingByProposal map[string]int64 `json:"pending_by_proposal"`
}
