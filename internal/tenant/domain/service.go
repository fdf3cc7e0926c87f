package domain

import (
	"context"
	"errors"
)

type Service interface {
	// GetSettings returns the settings row for the business in context,
	// creating a default row on first access.
	GetSettings(ctx context.Context) (*TenantSettings, error)
	// GetPolicy returns the batching policy for the business in context.
	GetPolicy(ctx context.Context) (BatchingPolicy, error)
	// UpdatePolicy applies an explicit policy configuration update and
	// invalidates any cached copy.
	UpdatePolicy(ctx context.Context, req UpdatePolicyRequest) (BatchingPolicy, error)
	// ContractAddress returns the deployed settlement contract for the
	// business in context, or ErrNoContract.
	ContractAddress(ctx context.Context) (string, error)
	// SetContractAddress records a freshly deployed contract.
	SetContractAddress(ctx context.Context, address string) error
}

var (
	ErrInvalidBusiness   = errors.New("invalid_business")
	ErrTenantNotFound    = errors.New("tenant_not_found")
	ErrNoContract        = errors.New("no_deployed_contract")
	ErrInvalidThreshold  = errors.New("invalid_batch_threshold")
	ErrInvalidBatchSize  = errors.New("invalid_max_batch_size")
	ErrInvalidDelay      = errors.New("invalid_processing_delay")
)
