package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/votechain/internal/cache"
	"github.com/smallbiznis/votechain/internal/clock"
	"github.com/smallbiznis/votechain/internal/config"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	"github.com/smallbiznis/votechain/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log           *zap.Logger
	Repo          tenantdomain.Repository
	Clock         clock.Clock
	ResolverCache cache.TenantResolverCache
	SettlementCfg *config.SettlementConfigHolder
}

type Service struct {
	log           *zap.Logger
	repo          tenantdomain.Repository
	clock         clock.Clock
	resolverCache cache.TenantResolverCache
	settlementCfg *config.SettlementConfigHolder
}

func NewService(p ServiceParam) tenantdomain.Service {
	return &Service{
		log:           p.Log.Named("tenant.service"),
		repo:          p.Repo,
		clock:         p.Clock,
		resolverCache: p.ResolverCache,
		settlementCfg: p.SettlementCfg,
	}
}

func (s *Service) GetSettings(ctx context.Context) (*tenantdomain.TenantSettings, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, tenantdomain.ErrInvalidBusiness
	}

	if s.resolverCache != nil {
		if cached, hit := s.resolverCache.GetSettings(businessID.String()); hit {
			return cached, nil
		}
	}

	defaults := s.settlementCfg.Get()
	now := s.clock.Now()
	settings, err := s.repo.EnsureDefault(ctx, &tenantdomain.TenantSettings{
		BusinessID:             businessID,
		PlanCode:               "free",
		BatchThreshold:         defaults.DefaultBatchThreshold,
		MaxBatchSize:           defaults.DefaultMaxBatchSize,
		ProcessingDelaySeconds: defaults.DefaultProcessingDelaySeconds,
		PolicyUpdatedAt:        now,
		CreatedAt:              now,
		UpdatedAt:              now,
	})
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, tenantdomain.ErrTenantNotFound
	}

	if s.resolverCache != nil {
		s.resolverCache.SetSettings(businessID.String(), settings)
	}
	return settings, nil
}

func (s *Service) GetPolicy(ctx context.Context) (tenantdomain.BatchingPolicy, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return tenantdomain.BatchingPolicy{}, tenantdomain.ErrInvalidBusiness
	}

	if s.resolverCache != nil {
		if cached, hit := s.resolverCache.GetPolicy(businessID.String()); hit {
			return cached, nil
		}
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return tenantdomain.BatchingPolicy{}, err
	}
	policy := settings.Policy()

	if s.resolverCache != nil {
		s.resolverCache.SetPolicy(businessID.String(), policy)
	}
	return policy, nil
}

func (s *Service) UpdatePolicy(ctx context.Context, req tenantdomain.UpdatePolicyRequest) (tenantdomain.BatchingPolicy, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return tenantdomain.BatchingPolicy{}, err
	}

	if req.BatchThreshold != nil {
		if *req.BatchThreshold < 1 {
			return tenantdomain.BatchingPolicy{}, tenantdomain.ErrInvalidThreshold
		}
		settings.BatchThreshold = *req.BatchThreshold
	}
	if req.MaxBatchSize != nil {
		if *req.MaxBatchSize < 1 {
			return tenantdomain.BatchingPolicy{}, tenantdomain.ErrInvalidBatchSize
		}
		settings.MaxBatchSize = *req.MaxBatchSize
	}
	if req.ProcessingDelaySeconds != nil {
		if *req.ProcessingDelaySeconds < 0 {
			return tenantdomain.BatchingPolicy{}, tenantdomain.ErrInvalidDelay
		}
		settings.ProcessingDelaySeconds = *req.ProcessingDelaySeconds
	}
	if req.AutoProcessEnabled != nil {
		settings.AutoProcessEnabled = *req.AutoProcessEnabled
	}

	// A cap below the threshold would leave the tenant permanently short
	// of a full batch; reject the merged combination.
	if settings.MaxBatchSize < settings.BatchThreshold {
		return tenantdomain.BatchingPolicy{}, tenantdomain.ErrInvalidBatchSize
	}

	now := s.clock.Now()
	settings.PolicyUpdatedAt = now
	settings.UpdatedAt = now
	if err := s.repo.Update(ctx, settings); err != nil {
		return tenantdomain.BatchingPolicy{}, err
	}

	if s.resolverCache != nil {
		s.resolverCache.Invalidate(settings.BusinessID.String())
	}
	s.log.Info("batching policy updated",
		zap.String("business_id", settings.BusinessID.String()),
		zap.Int("batch_threshold", settings.BatchThreshold),
		zap.Bool("auto_process_enabled", settings.AutoProcessEnabled),
	)
	return settings.Policy(), nil
}

func (s *Service) ContractAddress(ctx context.Context) (string, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	address := strings.TrimSpace(settings.ContractAddress)
	if address == "" {
		return "", tenantdomain.ErrNoContract
	}
	return address, nil
}

func (s *Service) SetContractAddress(ctx context.Context, address string) error {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}
	settings.ContractAddress = strings.TrimSpace(address)
	settings.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, settings); err != nil {
		return err
	}
	if s.resolverCache != nil {
		s.resolverCache.Invalidate(settings.BusinessID.String())
	}
	return nil
}
