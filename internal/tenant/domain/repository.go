package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Get(ctx context.Context, businessID snowflake.ID) (*TenantSettings, error)
	// EnsureDefault inserts a default settings row if none exists and
	// returns the current row either way.
	EnsureDefault(ctx context.Context, settings *TenantSettings) (*TenantSettings, error)
	Update(ctx context.Context, settings *TenantSettings) error
	// ListAutoProcessEnabled returns the business IDs with auto processing
	// turned on, for the background trigger.
	ListAutoProcessEnabled(ctx context.Context) ([]snowflake.ID, error)
}
