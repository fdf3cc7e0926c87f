package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/votechain/internal/batching"
	"github.com/smallbiznis/votechain/internal/clock"
	"github.com/smallbiznis/votechain/internal/config"
	"github.com/smallbiznis/votechain/internal/costing"
	"github.com/smallbiznis/votechain/internal/eligibility"
	"github.com/smallbiznis/votechain/internal/lease"
	ledgerdomain "github.com/smallbiznis/votechain/internal/ledger/domain"
	"github.com/smallbiznis/votechain/internal/limits"
	"github.com/smallbiznis/votechain/internal/notify"
	obsmetrics "github.com/smallbiznis/votechain/internal/observability/metrics"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"github.com/smallbiznis/votechain/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	settleLeaseTTL     = 2 * time.Minute
	ledgerCallTimeout  = 30 * time.Second
	settleLeasePattern = "votechain:settle:%s"
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     voteintentdomain.Repository
	Batches  settlementdomain.Repository
	Tenants  tenantdomain.Service
	Ledger   ledgerdomain.Client
	Locker   *lease.Locker `optional:"true"`
	Cfg      *config.SettlementConfigHolder
	Costing  *costing.Estimator
	Limits   limits.Service
	Notifier notify.Notifier
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     voteintentdomain.Repository
	batches  settlementdomain.Repository
	tenants  tenantdomain.Service
	ledger   ledgerdomain.Client
	locker   *lease.Locker
	cfg      *config.SettlementConfigHolder
	costing  *costing.Estimator
	limits   limits.Service
	notifier notify.Notifier
	metrics  *obsmetrics.Metrics

	// Serializes settlement per tenant within this process; the redis
	// lease extends the same guarantee across instances.
	mu    sync.Mutex
	slots map[snowflake.ID]*sync.Mutex
}

func NewService(p ServiceParam) settlementdomain.Service {
	return &Service{
		log:      p.Log.Named("settlement.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		batches:  p.Batches,
		tenants:  p.Tenants,
		ledger:   p.Ledger,
		locker:   p.Locker,
		cfg:      p.Cfg,
		costing:  p.Costing,
		limits:   p.Limits,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		slots:    make(map[snowflake.ID]*sync.Mutex),
	}
}

func (s *Service) slot(businessID snowflake.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.slots[businessID]
	if !ok {
		m = &sync.Mutex{}
		s.slots[businessID] = m
	}
	return m
}

func (s *Service) ProcessBatch(ctx context.Context, criteria settlementdomain.SelectionCriteria) (*settlementdomain.BatchResult, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, tenantdomain.ErrInvalidBusiness
	}

	slot := s.slot(businessID)
	if !slot.TryLock() {
		return nil, settlementdomain.ErrSettlementBusy
	}
	defer slot.Unlock()

	leaseKey := fmt.Sprintf(settleLeasePattern, businessID.String())
	token, acquired, err := s.locker.TryAcquire(ctx, leaseKey, settleLeaseTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, settlementdomain.ErrSettlementBusy
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, leaseKey, token); err != nil {
			s.log.Warn("settlement lease release failed", zap.Error(err))
		}
	}()

	started := s.clock.Now()
	result, err := s.processLocked(ctx, businessID, criteria)
	if s.metrics != nil {
		s.metrics.SettlementDuration.Observe(s.clock.Now().Sub(started).Seconds())
	}
	return result, err
}

func (s *Service) processLocked(ctx context.Context, businessID snowflake.ID, criteria settlementdomain.SelectionCriteria) (*settlementdomain.BatchResult, error) {
	policy, err := s.tenants.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}
	settleCfg := s.cfg.Get()
	maxAge := time.Duration(settleCfg.IntentMaxAgeHours) * time.Hour

	sel, err := s.selectCandidates(ctx, businessID, criteria, policy.MaxBatchSize, policy.BatchThreshold, maxAge)
	if err != nil {
		return nil, err
	}

	// Explicit vote selection bypasses the threshold gate; the caller has
	// already chosen the batch. Readiness is judged on the full valid
	// count; the batch size cap only bounds how many settle this round.
	if len(criteria.VoteIDs) == 0 {
		eval := batching.Evaluate(policy, sel.validTotal, sel.thresholdCrossedAt, s.clock.Now())
		if !batching.CanProcessNow(eval, criteria.ForceProcess) {
			return nil, &settlementdomain.NotReadyError{Evaluation: eval}
		}
	}

	if len(sel.valid) == 0 {
		// Nothing qualifies: report the failures and touch nothing.
		return &settlementdomain.BatchResult{
			BusinessID:  businessID,
			BatchID:     ulid.Make().String(),
			TotalVotes:  len(sel.failed),
			FailedCount: len(sel.failed),
			FailedVotes: datatypes.NewJSONSlice(sel.failed),
			CreatedAt:   s.clock.Now(),
		}, nil
	}

	decision, err := s.limits.CheckVotingLimit(ctx, businessID, len(sel.valid))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.log.Warn("settlement blocked by plan limit",
			zap.String("business_id", businessID.String()),
			zap.Int64("limit", decision.Limit),
			zap.Int64("overage", decision.Overage),
		)
		return nil, voteintentdomain.ErrVotingLimitExceeded
	}

	contractAddress, err := s.tenants.ContractAddress(ctx)
	if err != nil {
		return nil, err
	}

	roundIDs := make([]string, 0, len(sel.valid))
	voteIDs := make([]string, 0, len(sel.valid))
	signatures := make([]string, 0, len(sel.valid))
	ids := make([]snowflake.ID, 0, len(sel.valid))
	for _, intent := range sel.valid {
		roundIDs = append(roundIDs, intent.ProposalID)
		voteIDs = append(voteIDs, intent.VoteID)
		signature := ""
		if intent.UserSignature != nil {
			signature = *intent.UserSignature
		}
		signatures = append(signatures, signature)
		ids = append(ids, intent.ID)
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, ledgerCallTimeout)
	defer cancel()
	submit, err := s.ledger.SubmitBatch(ledgerCtx, contractAddress, roundIDs, voteIDs, signatures)
	if err != nil {
		// All-or-nothing: a ledger failure (timeouts included) leaves
		// every intent unprocessed and the attempt retryable.
		if s.metrics != nil {
			s.metrics.BatchFailures.WithLabelValues(businessID.String()).Inc()
		}
		s.log.Error("batch submission failed",
			zap.String("business_id", businessID.String()),
			zap.Int("vote_count", len(sel.valid)),
			zap.Error(err),
		)
		return nil, err
	}

	processedAt := s.clock.Now()
	flipped, err := s.repo.MarkProcessed(ctx, businessID, ids, processedAt)
	if err != nil {
		s.log.Error("batch settled on ledger but state update failed",
			zap.String("business_id", businessID.String()),
			zap.String("tx_hash", submit.TxHash),
			zap.Error(err),
		)
		return nil, err
	}

	estimate := s.costing.Estimate(int(flipped))
	if s.metrics != nil {
		s.metrics.BatchesSubmitted.WithLabelValues(businessID.String()).Inc()
		s.metrics.VotesSettled.WithLabelValues(businessID.String()).Add(float64(flipped))
		s.metrics.GasSavedGwei.Add(estimate.SavingsGwei)
	}

	for _, intent := range sel.valid {
		s.notifier.NotifyVoteRecorded(businessID, intent.ProposalID)
	}

	result := &settlementdomain.BatchResult{
		ID:             s.genID.Generate(),
		BusinessID:     businessID,
		BatchID:        ulid.Make().String(),
		TxHash:         submit.TxHash,
		BlockNumber:    submit.BlockNumber,
		GasUsed:        submit.GasUsed,
		TotalVotes:     len(sel.valid) + len(sel.failed) + sel.skipped,
		ProcessedCount: int(flipped),
		FailedCount:    len(sel.failed),
		SkippedCount:   sel.skipped,
		ProcessedVotes: datatypes.NewJSONSlice(voteIDs),
		FailedVotes:    datatypes.NewJSONSlice(sel.failed),
		GasPriceGwei:   estimate.GasPriceGwei,
		TotalCostGwei:  estimate.BatchCostGwei,
		SavingsGwei:    estimate.SavingsGwei,
		SavingsPercent: estimate.SavingsPercent,
		CreatedAt:      processedAt,
	}
	if err := s.batches.Create(ctx, result); err != nil {
		// The settlement already happened; losing the audit row is
		// reported but never unwinds it.
		s.log.Warn("batch result audit write failed",
			zap.String("batch_id", result.BatchID),
			zap.Error(err),
		)
	}

	s.log.Info("batch settled",
		zap.String("business_id", businessID.String()),
		zap.String("batch_id", result.BatchID),
		zap.String("tx_hash", submit.TxHash),
		zap.Int64("processed", flipped),
		zap.Int("failed", len(sel.failed)),
		zap.Float64("savings_gwei", estimate.SavingsGwei),
	)
	return result, nil
}

func (s *Service) EstimateSavings(ctx context.Context, voteCount int) (costing.Estimate, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return costing.Estimate{}, tenantdomain.ErrInvalidBusiness
	}
	if voteCount <= 0 {
		pending, err := s.repo.CountPending(ctx, businessID)
		if err != nil {
			return costing.Estimate{}, err
		}
		voteCount = int(pending)
	}
	return s.costing.Estimate(voteCount), nil
}

func (s *Service) ValidateVotes(ctx context.Context, voteIDs []string) ([]settlementdomain.VoteValidation, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, tenantdomain.ErrInvalidBusiness
	}

	var (
		intents []*voteintentdomain.VoteIntent
		err     error
	)
	if len(voteIDs) > 0 {
		intents, err = s.repo.FindByVoteIDs(ctx, businessID, voteIDs)
	} else {
		policy, perr := s.tenants.GetPolicy(ctx)
		if perr != nil {
			return nil, perr
		}
		intents, err = s.repo.FindPending(ctx, businessID, "", policy.MaxBatchSize*2)
	}
	if err != nil {
		return nil, err
	}

	settleCfg := s.cfg.Get()
	maxAge := time.Duration(settleCfg.IntentMaxAgeHours) * time.Hour
	now := s.clock.Now()

	seen := make(map[string]bool, len(intents))
	report := make([]settlementdomain.VoteValidation, 0, len(intents))
	for _, intent := range intents {
		result := eligibility.Validate(intent, now, maxAge)
		report = append(report, settlementdomain.VoteValidation{
			VoteID:   intent.VoteID,
			Valid:    result.Valid,
			Errors:   result.Errors,
			CanFix:   result.CanFix,
			Priority: eligibility.ProcessingPriority(intent, now),
		})
		seen[intent.VoteID] = true
	}
	// Requested IDs with no matching row are reported, not dropped.
	for _, id := range voteIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		report = append(report, settlementdomain.VoteValidation{
			VoteID: id,
			Errors: []string{"vote not found"},
		})
	}
	return report, nil
}

func (s *Service) Status(ctx context.Context) (settlementdomain.QueueStatus, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return settlementdomain.QueueStatus{}, tenantdomain.ErrInvalidBusiness
	}

	policy, err := s.tenants.GetPolicy(ctx)
	if err != nil {
		return settlementdomain.QueueStatus{}, err
	}
	pending, err := s.repo.CountPending(ctx, businessID)
	if err != nil {
		return settlementdomain.QueueStatus{}, err
	}

	settleCfg := s.cfg.Get()
	maxAge := time.Duration(settleCfg.IntentMaxAgeHours) * time.Hour
	sel, err := s.selectCandidates(ctx, businessID, settlementdomain.SelectionCriteria{}, policy.MaxBatchSize, policy.BatchThreshold, maxAge)
	if err != nil {
		return settlementdomain.QueueStatus{}, err
	}

	eval := batching.Evaluate(policy, sel.validTotal, sel.thresholdCrossedAt, s.clock.Now())
	return settlementdomain.QueueStatus{
		PendingCount:      pending,
		ValidCount:        sel.validTotal,
		Evaluation:        eval,
		RecommendedAction: batching.RecommendedAction(sel.validTotal, policy.BatchThreshold),
		// The estimate covers the next batch, which the size cap bounds.
		Estimate: s.costing.Estimate(len(sel.valid)),
	}, nil
}

func (s *Service) ListBatches(ctx context.Context, req settlementdomain.ListBatchesRequest) (settlementdomain.ListBatchesResponse, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return settlementdomain.ListBatchesResponse{}, tenantdomain.ErrInvalidBusiness
	}
	return s.batches.List(ctx, businessID, req)
}

func (s *Service) AutoProcess(ctx context.Context) (settlementdomain.AutoProcessResult, error) {
	policy, err := s.tenants.GetPolicy(ctx)
	if err != nil {
		return settlementdomain.AutoProcessResult{}, err
	}
	if !policy.AutoProcessEnabled {
		return settlementdomain.AutoProcessResult{Reason: "auto-process disabled"}, nil
	}

	result, err := s.ProcessBatch(ctx, settlementdomain.SelectionCriteria{})
	if err != nil {
		var notReady *settlementdomain.NotReadyError
		if errors.As(err, &notReady) {
			return settlementdomain.AutoProcessResult{Reason: notReady.Evaluation.Reason}, nil
		}
		return settlementdomain.AutoProcessResult{}, err
	}
	return settlementdomain.AutoProcessResult{
		Triggered: result.ProcessedCount > 0,
		Result:    result,
	}, nil
}
