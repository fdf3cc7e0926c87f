package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) voteintentdomain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, intent *voteintentdomain.VoteIntent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "business_id"},
				{Name: "proposal_id"},
				{Name: "user_id"},
			},
			DoNothing: true,
		}).
		Create(intent)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Get(ctx context.Context, businessID snowflake.ID, voteID string) (*voteintentdomain.VoteIntent, error) {
	var intent voteintentdomain.VoteIntent
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND vote_id = ?", businessID, voteID).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repo) FindPending(ctx context.Context, businessID snowflake.ID, proposalID string, limit int) ([]*voteintentdomain.VoteIntent, error) {
	stmt := r.db.WithContext(ctx).
		Where("business_id = ? AND is_processed = ?", businessID, false)
	if proposalID != "" {
		stmt = stmt.Where("proposal_id = ?", proposalID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var intents []*voteintentdomain.VoteIntent
	err := stmt.Order("created_at ASC, id ASC").Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repo) FindByVoteIDs(ctx context.Context, businessID snowflake.ID, voteIDs []string) ([]*voteintentdomain.VoteIntent, error) {
	if len(voteIDs) == 0 {
		return nil, nil
	}
	var intents []*voteintentdomain.VoteIntent
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND vote_id IN ?", businessID, voteIDs).
		Order("created_at ASC, id ASC").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repo) CountPending(ctx context.Context, businessID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&voteintentdomain.VoteIntent{}).
		Where("business_id = ? AND is_processed = ?", businessID, false).
		Count(&count).Error
	return count, err
}

func (r *repo) MarkProcessed(ctx context.Context, businessID snowflake.ID, ids []snowflake.ID, processedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Exec(
		`UPDATE vote_intents
		 SET is_processed = ?, processed_at = ?
		 WHERE business_id = ? AND id IN ? AND is_processed = ?`,
		true,
		processedAt,
		businessID,
		ids,
		false,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) DeleteUnprocessed(ctx context.Context, businessID snowflake.ID, voteID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("business_id = ? AND vote_id = ? AND is_processed = ?", businessID, voteID, false).
		Delete(&voteintentdomain.VoteIntent{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("is_processed = ? AND created_at < ?", false, before).
		Delete(&voteintentdomain.VoteIntent{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
