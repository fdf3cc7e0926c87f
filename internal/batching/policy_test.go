package batching

import (
	"testing"
	"time"

	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policy(threshold int, delay time.Duration) tenantdomain.BatchingPolicy {
	return tenantdomain.BatchingPolicy{
		BatchThreshold:  threshold,
		MaxBatchSize:    100,
		ProcessingDelay: delay,
	}
}

func TestEvaluate_BelowThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	eval := Evaluate(policy(20, 0), 12, nil, now)

	assert.False(t, eval.Ready)
	assert.Equal(t, 12, eval.PendingCount)
	assert.Equal(t, 20, eval.Threshold)
	assert.Equal(t, 8, eval.VotesNeeded)
	assert.Equal(t, "need 8 more votes", eval.Reason)
}

func TestEvaluate_AtThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	eval := Evaluate(policy(20, 0), 20, nil, now)
	assert.True(t, eval.Ready)
	assert.Zero(t, eval.VotesNeeded)
	assert.Empty(t, eval.Reason)
}

func TestEvaluate_ProcessingDelay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	crossedAt := now.Add(-30 * time.Second)

	// Delay still holding the flush back.
	eval := Evaluate(policy(20, time.Minute), 25, &crossedAt, now)
	require.False(t, eval.Ready)
	require.NotNil(t, eval.ReadyAt)
	assert.Equal(t, crossedAt.Add(time.Minute), *eval.ReadyAt)

	// Delay elapsed.
	later := now.Add(31 * time.Second)
	eval = Evaluate(policy(20, time.Minute), 25, &crossedAt, later)
	assert.True(t, eval.Ready)
	assert.Nil(t, eval.ReadyAt)
}

func TestCanProcessNow_ForceOverride(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eval := Evaluate(policy(20, 0), 3, nil, now)

	assert.False(t, CanProcessNow(eval, false))
	assert.True(t, CanProcessNow(eval, true))
}

func TestRecommendedAction_Tiers(t *testing.T) {
	const threshold = 20

	tests := []struct {
		pending int
		want    string
	}{
		{25, ActionProcessNow},
		{20, ActionProcessNow},
		{19, ActionProcessSoon},
		{16, ActionProcessSoon},
		{15, ActionMonitor},
		{10, ActionMonitor},
		{9, ActionWait},
		{0, ActionWait},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, RecommendedAction(tc.pending, threshold), "pending=%d", tc.pending)
	}
}
