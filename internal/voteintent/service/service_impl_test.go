package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/votechain/internal/clock"
	"github.com/smallbiznis/votechain/internal/limits"
	"github.com/smallbiznis/votechain/internal/notify"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/votechain/internal/tenant/repository"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"github.com/smallbiznis/votechain/internal/voteintent/repository"
	"github.com/smallbiznis/votechain/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     voteintentdomain.Service
	clock   *clock.FakeClock
	genID   *snowflake.Node
	tenants tenantdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&voteintentdomain.VoteIntent{},
		&tenantdomain.TenantSettings{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tenantRepo := tenantrepository.Provide(db)

	limitsSvc := limits.NewService(limits.ServiceParam{
		DB:         db,
		Log:        log,
		TenantRepo: tenantRepo,
	})

	svc := NewService(ServiceParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Repo:     repository.Provide(db),
		Limits:   limitsSvc,
		Notifier: notify.NoOpNotifier{},
	})

	return &fixture{db: db, svc: svc, clock: fake, genID: node, tenants: tenantRepo}
}

func (f *fixture) ctx(businessID snowflake.ID) context.Context {
	return tenantctx.WithBusinessID(context.Background(), businessID)
}

func TestSubmit_AcceptsVote(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(snowflake.ID(100))

	intent, err := f.svc.Submit(ctx, voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-1",
		UserID:            "user-1",
		SelectedProductID: "product_1",
		IsVerified:        true,
	})
	require.NoError(t, err)
	require.NotNil(t, intent)

	assert.NotZero(t, intent.ID)
	assert.NotEmpty(t, intent.VoteID, "a vote id is minted when the caller omits one")
	assert.False(t, intent.IsProcessed)
	assert.Equal(t, f.clock.Now(), intent.CreatedAt)
}

func TestSubmit_RejectsDuplicateBallot(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(snowflake.ID(100))

	req := voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-1",
		UserID:            "user-1",
		SelectedProductID: "product_1",
	}
	first, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)

	// Same user, same proposal: rejected even with a different product.
	req.SelectedProductID = "product_2"
	_, err = f.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, voteintentdomain.ErrDuplicateVote)

	// The original vote is untouched.
	stored, err := f.svc.Get(ctx, first.VoteID)
	require.NoError(t, err)
	assert.Equal(t, "product_1", stored.SelectedProductID)

	// A different proposal is a fresh ballot.
	req.ProposalID = "proposal-2"
	_, err = f.svc.Submit(ctx, req)
	assert.NoError(t, err)
}

func TestSubmit_ConcurrentDuplicateBallot(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(snowflake.ID(100))

	req := voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-1",
		UserID:            "user-1",
		SelectedProductID: "product_1",
	}

	// Both submissions race past validation; the unique index decides
	// the winner, not a read-then-write check.
	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := f.svc.Submit(ctx, req)
			results <- err
		}()
	}
	close(start)

	var accepted, rejected int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, voteintentdomain.ErrDuplicateVote)
		rejected++
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)

	var stored int64
	require.NoError(t, f.db.Model(&voteintentdomain.VoteIntent{}).
		Where("business_id = ? AND proposal_id = ? AND user_id = ?", snowflake.ID(100), "proposal-1", "user-1").
		Count(&stored).Error)
	assert.Equal(t, int64(1), stored)
}

func TestSubmit_ScopesDuplicatesPerBusiness(t *testing.T) {
	f := newFixture(t)

	req := voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-1",
		UserID:            "user-1",
		SelectedProductID: "product_1",
	}
	_, err := f.svc.Submit(f.ctx(snowflake.ID(100)), req)
	require.NoError(t, err)

	_, err = f.svc.Submit(f.ctx(snowflake.ID(200)), req)
	assert.NoError(t, err, "the same ballot under another business is independent")
}

func TestSubmit_FieldValidation(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx(snowflake.ID(100))

	tests := []struct {
		name string
		req  voteintentdomain.SubmitVoteRequest
		want error
	}{
		{"missing proposal", voteintentdomain.SubmitVoteRequest{UserID: "u", SelectedProductID: "p"}, voteintentdomain.ErrInvalidProposal},
		{"missing user", voteintentdomain.SubmitVoteRequest{ProposalID: "pr", SelectedProductID: "p"}, voteintentdomain.ErrInvalidUser},
		{"bad product", voteintentdomain.SubmitVoteRequest{ProposalID: "pr", UserID: "u", SelectedProductID: "not valid!"}, voteintentdomain.ErrInvalidProduct},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSubmit_RequiresBusinessContext(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-1",
		UserID:            "user-1",
		SelectedProductID: "product_1",
	})
	assert.ErrorIs(t, err, tenantdomain.ErrInvalidBusiness)
}

func TestDelete_RefusesProcessedVote(t *testing.T) {
	f := newFixture(t)
	businessID := snowflake.ID(100)
	ctx := f.ctx(businessID)

	intent, err := f.svc.Submit(ctx, voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-1",
		UserID:            "user-1",
		SelectedProductID: "product_1",
	})
	require.NoError(t, err)

	// Settle it out-of-band.
	processedAt := f.clock.Now()
	require.NoError(t, f.db.Model(&voteintentdomain.VoteIntent{}).
		Where("id = ?", intent.ID).
		Updates(map[string]any{"is_processed": true, "processed_at": processedAt}).Error)

	err = f.svc.Delete(ctx, intent.VoteID)
	assert.ErrorIs(t, err, voteintentdomain.ErrVoteAlreadyProcessed)

	err = f.svc.Delete(ctx, "no-such-vote")
	assert.ErrorIs(t, err, voteintentdomain.ErrVoteNotFound)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	businessID := snowflake.ID(100)
	ctx := f.ctx(businessID)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Submit(ctx, voteintentdomain.SubmitVoteRequest{
			ProposalID:        "proposal-1",
			UserID:            fmt.Sprintf("user-%d", i),
			SelectedProductID: "product_1",
			IsVerified:        i < 2,
		})
		require.NoError(t, err)
	}
	_, err := f.svc.Submit(ctx, voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-2",
		UserID:            "user-9",
		SelectedProductID: "product_1",
	})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalVotes)
	assert.Equal(t, int64(4), stats.PendingVotes)
	assert.Equal(t, int64(0), stats.ProcessedVotes)
	assert.Equal(t, int64(2), stats.VerifiedPending)
	assert.Equal(t, int64(3), stats.PendingByProposal["proposal-1"])
	assert.Equal(t, int64(1), stats.PendingByProposal["proposal-2"])
	require.NotNil(t, stats.OldestPendingAt)
}

func TestSweep_NeverDeletesProcessedRows(t *testing.T) {
	f := newFixture(t)
	businessID := snowflake.ID(100)
	ctx := f.ctx(businessID)

	stale, err := f.svc.Submit(ctx, voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-1",
		UserID:            "user-1",
		SelectedProductID: "product_1",
	})
	require.NoError(t, err)

	settled, err := f.svc.Submit(ctx, voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-1",
		UserID:            "user-2",
		SelectedProductID: "product_1",
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&voteintentdomain.VoteIntent{}).
		Where("id = ?", settled.ID).
		Updates(map[string]any{"is_processed": true, "processed_at": f.clock.Now()}).Error)

	// Both rows are now far past the retention window.
	f.clock.Advance(8 * 24 * time.Hour)

	fresh, err := f.svc.Submit(ctx, voteintentdomain.SubmitVoteRequest{
		ProposalID:        "proposal-2",
		UserID:            "user-1",
		SelectedProductID: "product_1",
	})
	require.NoError(t, err)

	deleted, err := f.svc.Sweep(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// The stale unprocessed row is gone.
	_, err = f.svc.Get(ctx, stale.VoteID)
	assert.ErrorIs(t, err, voteintentdomain.ErrVoteNotFound)

	// The processed row survives as the audit trail; the fresh one is kept.
	kept, err := f.svc.Get(ctx, settled.VoteID)
	require.NoError(t, err)
	assert.True(t, kept.IsProcessed)
	_, err = f.svc.Get(ctx, fresh.VoteID)
	assert.NoError(t, err)
}

func TestList_FiltersAndPagination(t *testing.T) {
	f := newFixture(t)
	businessID := snowflake.ID(100)
	ctx := f.ctx(businessID)

	for i := 0; i < 5; i++ {
		_, err := f.svc.Submit(ctx, voteintentdomain.SubmitVoteRequest{
			ProposalID:        "proposal-1",
			UserID:            fmt.Sprintf("user-%d", i),
			SelectedProductID: "product_1",
		})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	resp, err := f.svc.List(ctx, voteintentdomain.ListVotesRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Votes, 2)
	assert.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextPageToken)

	next, err := f.svc.List(ctx, voteintentdomain.ListVotesRequest{PageSize: 2, PageToken: resp.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, next.Votes, 2)
	assert.NotEqual(t, resp.Votes[0].VoteID, next.Votes[0].VoteID)

	byUser, err := f.svc.List(ctx, voteintentdomain.ListVotesRequest{UserID: "user-3"})
	require.NoError(t, err)
	require.Len(t, byUser.Votes, 1)
	assert.Equal(t, "user-3", byUser.Votes[0].UserID)
}
