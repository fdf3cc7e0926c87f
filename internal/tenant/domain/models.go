// Package domain contains persistence models for per-tenant settlement settings.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TenantSettings stores the deployed contract and batching policy for one business.
type TenantSettings struct {
	BusinessID      snowflake.ID `gorm:"primaryKey" json:"business_id"`
	ContractAddress string       `gorm:"type:text" json:"contract_address"`
	PlanCode        string       `gorm:"type:text;not null;default:free" json:"plan_code"`

	BatchThreshold         int  `gorm:"not null;default:20" json:"batch_threshold"`
	AutoProcessEnabled     bool `gorm:"not null;default:false" json:"auto_process_enabled"`
	MaxBatchSize           int  `gorm:"not null;default:100" json:"max_batch_size"`
	ProcessingDelaySeconds int  `gorm:"not null;default:0" json:"processing_delay_seconds"`

	PolicyUpdatedAt time.Time `gorm:"not null" json:"policy_updated_at"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TenantSettings) TableName() string { return "tenant_settings" }

// BatchingPolicy is the tenant-owned flush policy read by the settlement engine.
type BatchingPolicy struct {
	BatchThreshold     int           `json:"batch_threshold"`
	AutoProcessEnabled bool          `json:"auto_process_enabled"`
	MaxBatchSize       int           `json:"max_batch_size"`
	ProcessingDelay    time.Duration `json:"processing_delay_seconds"`
	LastUpdatedAt      time.Time     `json:"last_updated_at"`
}

// Policy projects the policy columns out of the settings row.
func (t TenantSettings) Policy() BatchingPolicy {
	return BatchingPolicy{
		BatchThreshold:     t.BatchThreshold,
		AutoProcessEnabled: t.AutoProcessEnabled,
		MaxBatchSize:       t.MaxBatchSize,
		ProcessingDelay:    time.Duration(t.ProcessingDelaySeconds) * time.Second,
		LastUpdatedAt:      t.PolicyUpdatedAt,
	}
}

// UpdatePolicyRequest carries an explicit policy configuration update.
// Nil fields keep their current value.
type UpdatePolicyRequest struct {
	BatchThreshold         *int  `json:"batch_threshold"`
	AutoProcessEnabled     *bool `json:"auto_process_enabled"`
	MaxBatchSize           *int  `json:"max_batch_size"`
	ProcessingDelaySeconds *int  `json:"processing_delay_seconds"`
}
