package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// Insert stores the intent unless one already exists for the same
	// (business, user, proposal). The uniqueness check and the insert are
	// a single atomic statement; inserted reports whether the row landed.
	Insert(ctx context.Context, intent *VoteIntent) (inserted bool, err error)

	Get(ctx context.Context, businessID snowflake.ID, voteID string) (*VoteIntent, error)

	// FindPending returns unprocessed intents oldest-first. proposalID
	// narrows to one selection round when non-empty; limit caps the set.
	FindPending(ctx context.Context, businessID snowflake.ID, proposalID string, limit int) ([]*VoteIntent, error)

	// FindByVoteIDs returns the tenant's intents matching the given public
	// vote identifiers, oldest-first.
	FindByVoteIDs(ctx context.Context, businessID snowflake.ID, voteIDs []string) ([]*VoteIntent, error)

	CountPending(ctx context.Context, businessID snowflake.ID) (int64, error)

	// MarkProcessed flips is_processed for the given intents in one update
	// conditioned on is_processed = false, so a concurrent double-submit
	// cannot double-mark. Returns the number of rows actually flipped.
	MarkProcessed(ctx context.Context, businessID snowflake.ID, ids []snowflake.ID, processedAt time.Time) (int64, error)

	// DeleteUnprocessed removes one unprocessed intent; returns false when
	// the row was absent or already processed.
	DeleteUnprocessed(ctx context.Context, businessID snowflake.ID, voteID string) (bool, error)

	// DeleteStale removes unprocessed intents created before the cutoff,
	// across all tenants. Processed rows are never deleted.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
