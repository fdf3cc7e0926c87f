package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) tenantdomain.Repository {
	return &repo{db: db}
}

func (r *repo) Get(ctx context.Context, businessID snowflake.ID) (*tenantdomain.TenantSettings, error) {
	var settings tenantdomain.TenantSettings
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *repo) EnsureDefault(ctx context.Context, settings *tenantdomain.TenantSettings) (*tenantdomain.TenantSettings, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "business_id"}},
			DoNothing: true,
		}).
		Create(settings).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, settings.BusinessID)
}

func (r *repo) Update(ctx context.Context, settings *tenantdomain.TenantSettings) error {
	return r.db.WithContext(ctx).
		Model(&tenantdomain.TenantSettings{}).
		Where("business_id = ?", settings.BusinessID).
		Updates(map[string]any{
			"contract_address":         settings.ContractAddress,
			"plan_code":                settings.PlanCode,
			"batch_threshold":          settings.BatchThreshold,
			"auto_process_enabled":     settings.AutoProcessEnabled,
			"max_batch_size":           settings.MaxBatchSize,
			"processing_delay_seconds": settings.ProcessingDelaySeconds,
			"policy_updated_at":        settings.PolicyUpdatedAt,
			"updated_at":               settings.UpdatedAt,
		}).Error
}

func (r *repo) ListAutoProcessEnabled(ctx context.Context) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).
		Model(&tenantdomain.TenantSettings{}).
		Where("auto_process_enabled = ?", true).
		Order("business_id").
		Pluck("business_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
