package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/votechain/internal/cache"
	"github.com/smallbiznis/votechain/internal/clock"
	"github.com/smallbiznis/votechain/internal/config"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	"github.com/smallbiznis/votechain/internal/tenant/repository"
	"github.com/smallbiznis/votechain/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (tenantdomain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tenantdomain.TenantSettings{}))

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		Log:           zaptest.NewLogger(t),
		Repo:          repository.Provide(db),
		Clock:         fake,
		ResolverCache: cache.NewTenantResolverCache(),
		SettlementCfg: config.NewStaticSettlementConfigHolder(config.DefaultSettlementConfig()),
	})
	return svc, fake
}

func ctxFor(businessID snowflake.ID) context.Context {
	return tenantctx.WithBusinessID(context.Background(), businessID)
}

func TestGetSettings_CreatesDefaultsOnFirstAccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ctxFor(snowflake.ID(100))

	settings, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings)

	assert.Equal(t, snowflake.ID(100), settings.BusinessID)
	assert.Equal(t, "free", settings.PlanCode)
	assert.Equal(t, 20, settings.BatchThreshold)
	assert.Equal(t, 100, settings.MaxBatchSize)
	assert.False(t, settings.AutoProcessEnabled)
}

func TestUpdatePolicy_ValidatesAndPersists(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := ctxFor(snowflake.ID(100))

	bad := 0
	_, err := svc.UpdatePolicy(ctx, tenantdomain.UpdatePolicyRequest{BatchThreshold: &bad})
	assert.ErrorIs(t, err, tenantdomain.ErrInvalidThreshold)
	_, err = svc.UpdatePolicy(ctx, tenantdomain.UpdatePolicyRequest{MaxBatchSize: &bad})
	assert.ErrorIs(t, err, tenantdomain.ErrInvalidBatchSize)
	negative := -1
	_, err = svc.UpdatePolicy(ctx, tenantdomain.UpdatePolicyRequest{ProcessingDelaySeconds: &negative})
	assert.ErrorIs(t, err, tenantdomain.ErrInvalidDelay)

	threshold := 50
	delay := 120
	enabled := true
	fake.Advance(time.Minute)
	policy, err := svc.UpdatePolicy(ctx, tenantdomain.UpdatePolicyRequest{
		BatchThreshold:         &threshold,
		ProcessingDelaySeconds: &delay,
		AutoProcessEnabled:     &enabled,
	})
	require.NoError(t, err)

	assert.Equal(t, 50, policy.BatchThreshold)
	assert.Equal(t, 2*time.Minute, policy.ProcessingDelay)
	assert.True(t, policy.AutoProcessEnabled)
	assert.Equal(t, fake.Now(), policy.LastUpdatedAt)

	// The cache was invalidated: a fresh read sees the new policy.
	reread, err := svc.GetPolicy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, reread.BatchThreshold)
}

func TestUpdatePolicy_RejectsCapBelowThreshold(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ctxFor(snowflake.ID(100))

	// Defaults are threshold 20 / cap 100; shrinking the cap under the
	// threshold would starve every batch.
	small := 10
	_, err := svc.UpdatePolicy(ctx, tenantdomain.UpdatePolicyRequest{MaxBatchSize: &small})
	assert.ErrorIs(t, err, tenantdomain.ErrInvalidBatchSize)

	big := 150
	_, err = svc.UpdatePolicy(ctx, tenantdomain.UpdatePolicyRequest{BatchThreshold: &big})
	assert.ErrorIs(t, err, tenantdomain.ErrInvalidBatchSize)

	// Raising both together is allowed.
	threshold, size := 150, 200
	policy, err := svc.UpdatePolicy(ctx, tenantdomain.UpdatePolicyRequest{
		BatchThreshold: &threshold,
		MaxBatchSize:   &size,
	})
	require.NoError(t, err)
	assert.Equal(t, 150, policy.BatchThreshold)
	assert.Equal(t, 200, policy.MaxBatchSize)
}

func TestContractAddress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ctxFor(snowflake.ID(100))

	_, err := svc.ContractAddress(ctx)
	assert.ErrorIs(t, err, tenantdomain.ErrNoContract)

	require.NoError(t, svc.SetContractAddress(ctx, "0xabc"))
	address, err := svc.ContractAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", address)
}
