// Package limits is the quota collaborator consulted before accepting
// intake and before settling a batch whose size could cross plan limits.
package limits

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"github.com/smallbiznis/votechain/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decision reports whether the requested vote volume fits the plan.
type Decision struct {
	Allowed bool  `json:"allowed"`
	Limit   int64 `json:"limit"`
	Used    int64 `json:"used"`
	Overage int64 `json:"overage"`
}

type Service interface {
	// CheckVotingLimit checks whether count additional votes fit the
	// tenant's plan. Limit -1 means unlimited.
	CheckVotingLimit(ctx context.Context, businessID snowflake.ID, count int) (Decision, error)
}

// Plan caps on total stored vote intents. Unknown plans fall back to free.
var planVoteLimits = map[string]int64{
	"free":       1_000,
	"pro":        100_000,
	"enterprise": -1,
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	TenantRepo tenantdomain.Repository
}

type service struct {
	votes      repository.Repository[voteintentdomain.VoteIntent]
	log        *zap.Logger
	tenantRepo tenantdomain.Repository
}

func NewService(p ServiceParam) Service {
	return &service{
		votes:      repository.ProvideStore[voteintentdomain.VoteIntent](p.DB),
		log:        p.Log.Named("limits.service"),
		tenantRepo: p.TenantRepo,
	}
}

func (s *service) CheckVotingLimit(ctx context.Context, businessID snowflake.ID, count int) (Decision, error) {
	plan := "free"
	settings, err := s.tenantRepo.Get(ctx, businessID)
	if err != nil {
		return Decision{}, err
	}
	if settings != nil && settings.PlanCode != "" {
		plan = settings.PlanCode
	}

	limit, ok := planVoteLimits[plan]
	if !ok {
		limit = planVoteLimits["free"]
	}
	if limit < 0 {
		return Decision{Allowed: true, Limit: -1}, nil
	}

	used, err := s.votes.Count(ctx, &voteintentdomain.VoteIntent{BusinessID: businessID})
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		Limit: limit,
		Used:  used,
	}
	if used+int64(count) <= limit {
		decision.Allowed = true
		return decision, nil
	}

	decision.Overage = used + int64(count) - limit
	return decision, nil
}

var Module = fx.Module("limits.service",
	fx.Provide(NewService),
)
