package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/votechain/internal/clock"
	"github.com/smallbiznis/votechain/internal/config"
	"github.com/smallbiznis/votechain/internal/costing"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"github.com/smallbiznis/votechain/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// -- Stubs --

type tenantRepoStub struct {
	enabled []snowflake.ID
}

func (s *tenantRepoStub) Get(ctx context.Context, businessID snowflake.ID) (*tenantdomain.TenantSettings, error) {
	return nil, nil
}
func (s *tenantRepoStub) EnsureDefault(ctx context.Context, settings *tenantdomain.TenantSettings) (*tenantdomain.TenantSettings, error) {
	return settings, nil
}
func (s *tenantRepoStub) Update(ctx context.Context, settings *tenantdomain.TenantSettings) error {
	return nil
}
func (s *tenantRepoStub) ListAutoProcessEnabled(ctx context.Context) ([]snowflake.ID, error) {
	return s.enabled, nil
}

type settlementStub struct {
	seen    []snowflake.ID
	busyFor map[snowflake.ID]bool
}

func (s *settlementStub) AutoProcess(ctx context.Context) (settlementdomain.AutoProcessResult, error) {
	businessID, _ := tenantctx.BusinessIDFromContext(ctx)
	if s.busyFor[businessID] {
		return settlementdomain.AutoProcessResult{}, settlementdomain.ErrSettlementBusy
	}
	s.seen = append(s.seen, businessID)
	return settlementdomain.AutoProcessResult{Triggered: true, Result: &settlementdomain.BatchResult{ProcessedCount: 1}}, nil
}

func (s *settlementStub) ProcessBatch(ctx context.Context, criteria settlementdomain.SelectionCriteria) (*settlementdomain.BatchResult, error) {
	return nil, nil
}
func (s *settlementStub) EstimateSavings(ctx context.Context, voteCount int) (costing.Estimate, error) {
	return costing.Estimate{}, nil
}
func (s *settlementStub) ValidateVotes(ctx context.Context, voteIDs []string) ([]settlementdomain.VoteValidation, error) {
	return nil, nil
}
func (s *settlementStub) Status(ctx context.Context) (settlementdomain.QueueStatus, error) {
	return settlementdomain.QueueStatus{}, nil
}
func (s *settlementStub) ListBatches(ctx context.Context, req settlementdomain.ListBatchesRequest) (settlementdomain.ListBatchesResponse, error) {
	return settlementdomain.ListBatchesResponse{}, nil
}

type voteStub struct {
	sweepMaxAge time.Duration
	swept       int64
}

func (s *voteStub) Submit(ctx context.Context, req voteintentdomain.SubmitVoteRequest) (*voteintentdomain.VoteIntent, error) {
	return nil, nil
}
func (s *voteStub) List(ctx context.Context, req voteintentdomain.ListVotesRequest) (voteintentdomain.ListVotesResponse, error) {
	return voteintentdomain.ListVotesResponse{}, nil
}
func (s *voteStub) Get(ctx context.Context, voteID string) (*voteintentdomain.VoteIntent, error) {
	return nil, nil
}
func (s *voteStub) Delete(ctx context.Context, voteID string) error { return nil }
func (s *voteStub) Stats(ctx context.Context) (voteintentdomain.VoteStats, error) {
	return voteintentdomain.VoteStats{}, nil
}
func (s *voteStub) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	s.sweepMaxAge = maxAge
	s.swept = 5
	return s.swept, nil
}

// -- Tests --

func newTestScheduler(t *testing.T, tenants *tenantRepoStub, settle *settlementStub, votes *voteStub) *Scheduler {
	t.Helper()
	sched, err := New(Params{
		Log:           zaptest.NewLogger(t),
		Config:        config.Config{SweepMaxAgeHours: 168, AutoProcessSchedule: "@every 1m", SweepSchedule: "@every 6h"},
		Clock:         clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		TenantRepo:    tenants,
		SettlementSvc: settle,
		VoteSvc:       votes,
	})
	require.NoError(t, err)
	return sched
}

func TestRunAutoProcess_VisitsEveryOptedInTenant(t *testing.T) {
	tenants := &tenantRepoStub{enabled: []snowflake.ID{100, 200, 300}}
	settle := &settlementStub{}
	sched := newTestScheduler(t, tenants, settle, &voteStub{})

	require.NoError(t, sched.RunAutoProcess(context.Background()))
	assert.Equal(t, []snowflake.ID{100, 200, 300}, settle.seen)
}

func TestRunAutoProcess_SkipsBusyTenant(t *testing.T) {
	tenants := &tenantRepoStub{enabled: []snowflake.ID{100, 200, 300}}
	settle := &settlementStub{busyFor: map[snowflake.ID]bool{200: true}}
	sched := newTestScheduler(t, tenants, settle, &voteStub{})

	require.NoError(t, sched.RunAutoProcess(context.Background()))
	assert.Equal(t, []snowflake.ID{100, 300}, settle.seen)
}

func TestRunSweep_UsesConfiguredRetention(t *testing.T) {
	votes := &voteStub{}
	sched := newTestScheduler(t, &tenantRepoStub{}, &settlementStub{}, votes)

	require.NoError(t, sched.RunSweep(context.Background()))
	assert.Equal(t, 168*time.Hour, votes.sweepMaxAge)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zaptest.NewLogger(t)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
