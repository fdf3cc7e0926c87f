package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	"github.com/smallbiznis/votechain/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) settlementdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, result *settlementdomain.BatchResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *repository) Get(ctx context.Context, businessID snowflake.ID, batchID string) (*settlementdomain.BatchResult, error) {
	var result settlementdomain.BatchResult
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND batch_id = ?", businessID, batchID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *repository) List(ctx context.Context, businessID snowflake.ID, req settlementdomain.ListBatchesRequest) (settlementdomain.ListBatchesResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	stmt := r.db.WithContext(ctx).
		Model(&settlementdomain.BatchResult{}).
		Where("business_id = ?", businessID)
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err == nil && cursor.CreatedAt != "" && cursor.ID != "" {
			stmt = stmt.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var items []*settlementdomain.BatchResult
	err := stmt.Order("created_at DESC, id DESC").
		Limit(pageSize + 1).
		Find(&items).Error
	if err != nil {
		return settlementdomain.ListBatchesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(result *settlementdomain.BatchResult) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        result.ID.String(),
			CreatedAt: result.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	batches := make([]settlementdomain.BatchResult, 0, len(items))
	for _, item := range items {
		batches = append(batches, *item)
	}

	resp := settlementdomain.ListBatchesResponse{Batches: batches}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
