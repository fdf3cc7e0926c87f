package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// Create persists one audit record. Best-effort from the caller's
	// point of view: settlement never unwinds on audit failure.
	Create(ctx context.Context, result *BatchResult) error

	Get(ctx context.Context, businessID snowflake.ID, batchID string) (*BatchResult, error)

	// List returns the tenant's audit records newest-first with cursor
	// pagination.
	List(ctx context.Context, businessID snowflake.ID, req ListBatchesRequest) (ListBatchesResponse, error)
}
