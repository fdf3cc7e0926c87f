package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/votechain/internal/clock"
	"github.com/smallbiznis/votechain/internal/eligibility"
	"github.com/smallbiznis/votechain/internal/limits"
	"github.com/smallbiznis/votechain/internal/notify"
	obsmetrics "github.com/smallbiznis/votechain/internal/observability/metrics"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"github.com/smallbiznis/votechain/pkg/db/option"
	"github.com/smallbiznis/votechain/pkg/db/pagination"
	"github.com/smallbiznis/votechain/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     voteintentdomain.Repository
	Limits   limits.Service
	Notifier notify.Notifier
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     voteintentdomain.Repository
	limits   limits.Service
	notifier notify.Notifier
	metrics  *obsmetrics.Metrics
}

func NewService(p ServiceParam) voteintentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("voteintent.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		limits:   p.Limits,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) Submit(ctx context.Context, req voteintentdomain.SubmitVoteRequest) (*voteintentdomain.VoteIntent, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, tenantdomain.ErrInvalidBusiness
	}

	proposalID := strings.TrimSpace(req.ProposalID)
	userID := strings.TrimSpace(req.UserID)
	productID := strings.TrimSpace(req.SelectedProductID)
	if err := mapFieldErrors(eligibility.FieldErrors(proposalID, userID, productID)); err != nil {
		return nil, err
	}

	decision, err := s.limits.CheckVotingLimit(ctx, businessID, 1)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.log.Warn("voting limit exceeded",
			zap.String("business_id", businessID.String()),
			zap.Int64("limit", decision.Limit),
			zap.Int64("overage", decision.Overage),
		)
		return nil, voteintentdomain.ErrVotingLimitExceeded
	}

	now := s.clock.Now()
	voteID := strings.TrimSpace(req.VoteID)
	if voteID == "" {
		voteID = ulid.Make().String()
	}

	intent := &voteintentdomain.VoteIntent{
		ID:                s.genID.Generate(),
		BusinessID:        businessID,
		ProposalID:        proposalID,
		UserID:            userID,
		VoteID:            voteID,
		SelectedProductID: productID,
		ProductName:       optionalString(req.ProductName),
		ProductImageURL:   optionalString(req.ProductImageURL),
		SelectionReason:   optionalString(req.SelectionReason),
		UserSignature:     optionalString(req.UserSignature),
		IsVerified:        req.IsVerified,
		CreatedAt:         now,
	}
	if req.Metadata != nil {
		intent.Metadata = datatypes.JSONMap(req.Metadata)
	}

	inserted, err := s.repo.Insert(ctx, intent)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Exactly one intent per (business, user, proposal): a losing
		// concurrent submission surfaces here, not as a silent merge.
		if s.metrics != nil {
			s.metrics.DuplicateVotes.WithLabelValues(businessID.String()).Inc()
		}
		return nil, voteintentdomain.ErrDuplicateVote
	}

	if s.metrics != nil {
		s.metrics.VotesIngested.WithLabelValues(businessID.String()).Inc()
	}
	s.notifier.NotifyVoteRecorded(businessID, proposalID)

	return intent, nil
}

func (s *Service) List(ctx context.Context, req voteintentdomain.ListVotesRequest) (voteintentdomain.ListVotesResponse, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return voteintentdomain.ListVotesResponse{}, tenantdomain.ErrInvalidBusiness
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	stmt := s.db.WithContext(ctx).
		Model(&voteintentdomain.VoteIntent{}).
		Where("business_id = ?", businessID)
	if proposal := strings.TrimSpace(req.ProposalID); proposal != "" {
		stmt = stmt.Where("proposal_id = ?", proposal)
	}
	if user := strings.TrimSpace(req.UserID); user != "" {
		stmt = stmt.Where("user_id = ?", user)
	}
	if req.Processed != nil {
		stmt = stmt.Where("is_processed = ?", *req.Processed)
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			Field: req.SortBy,
			Desc:  req.Desc,
			Allow: map[string]bool{"created_at": true, "processed_at": true},
		}),
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var items []*voteintentdomain.VoteIntent
	if err := stmt.Find(&items).Error; err != nil {
		return voteintentdomain.ListVotesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(intent *voteintentdomain.VoteIntent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        intent.ID.String(),
			CreatedAt: intent.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	votes := make([]voteintentdomain.VoteIntent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		votes = append(votes, *item)
	}

	resp := voteintentdomain.ListVotesResponse{Votes: votes}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, voteID string) (*voteintentdomain.VoteIntent, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, tenantdomain.ErrInvalidBusiness
	}
	intent, err := s.repo.Get(ctx, businessID, strings.TrimSpace(voteID))
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, voteintentdomain.ErrVoteNotFound
	}
	return intent, nil
}

func (s *Service) Delete(ctx context.Context, voteID string) error {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return tenantdomain.ErrInvalidBusiness
	}

	deleted, err := s.repo.DeleteUnprocessed(ctx, businessID, strings.TrimSpace(voteID))
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}

	// Distinguish "gone" from "already settled" for the caller.
	intent, err := s.repo.Get(ctx, businessID, strings.TrimSpace(voteID))
	if err != nil {
		return err
	}
	if intent == nil {
		return voteintentdomain.ErrVoteNotFound
	}
	return voteintentdomain.ErrVoteAlreadyProcessed
}

func (s *Service) Stats(ctx context.Context) (voteintentdomain.VoteStats, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return voteintentdomain.VoteStats{}, tenantdomain.ErrInvalidBusiness
	}

	var stats voteintentdomain.VoteStats
	base := s.db.WithContext(ctx).Model(&voteintentdomain.VoteIntent{})

	if err := base.Session(&gorm.Session{}).
		Where("business_id = ?", businessID).
		Count(&stats.TotalVotes).Error; err != nil {
		return stats, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("business_id = ? AND is_processed = ?", businessID, false).
		Count(&stats.PendingVotes).Error; err != nil {
		return stats, err
	}
	stats.ProcessedVotes = stats.TotalVotes - stats.PendingVotes
	if err := base.Session(&gorm.Session{}).
		Where("business_id = ? AND is_processed = ? AND is_verified = ?", businessID, false, true).
		Count(&stats.VerifiedPending).Error; err != nil {
		return stats, err
	}

	var oldest voteintentdomain.VoteIntent
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND is_processed = ?", businessID, false).
		Order("created_at ASC").
		First(&oldest).Error
	if err == nil {
		createdAt := oldest.CreatedAt
		stats.OldestPendingAt = &createdAt
	}

	type proposalCount struct {
		ProposalID string
		Count      int64
	}
	var rows []proposalCount
	err = s.db.WithContext(ctx).
		Model(&voteintentdomain.VoteIntent{}).
		Select("proposal_id, COUNT(1) AS count").
		Where("business_id = ? AND is_processed = ?", businessID, false).
		Group("proposal_id").
		Scan(&rows).Error
	if err != nil {
		return stats, err
	}
	stats.PendingByProposal = make(map[string]int64, len(rows))
	for _, row := range rows {
		stats.PendingByProposal[row.ProposalID] = row.Count
	}

	return stats, nil
}

func (s *Service) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = eligibility.DefaultMaxAge
	}
	cutoff := s.clock.Now().Add(-maxAge)
	deleted, err := s.repo.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		if s.metrics != nil {
			s.metrics.StaleVotesSwept.Add(float64(deleted))
		}
		s.log.Info("swept stale vote intents",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}

func mapFieldErrors(errs []string) error {
	for _, e := range errs {
		switch e {
		case eligibility.ReasonMissingProposal:
			return voteintentdomain.ErrInvalidProposal
		case eligibility.ReasonMissingUser:
			return voteintentdomain.ErrInvalidUser
		case eligibility.ReasonInvalidProduct:
			return voteintentdomain.ErrInvalidProduct
		}
	}
	return nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
