package costing

import (
	"testing"

	"github.com/smallbiznis/votechain/internal/config"
	"github.com/stretchr/testify/assert"
)

func newTestEstimator() *Estimator {
	return NewEstimator(config.NewStaticSettlementConfigHolder(config.DefaultSettlementConfig()))
}

func TestBatchGas_Model(t *testing.T) {
	e := newTestEstimator()

	assert.Equal(t, uint64(0), e.BatchGas(0))
	assert.Equal(t, uint64(125_000), e.BatchGas(1))   // 100k base + 25k
	assert.Equal(t, uint64(600_000), e.BatchGas(20))  // 100k + 25k*20
	assert.Equal(t, uint64(65_000), e.IndividualGas(1))
}

func TestEstimate_SavingsGrowWithVoteCount(t *testing.T) {
	e := newTestEstimator()

	prevBatchGas := uint64(0)
	prevSavings := -1.0
	for n := 1; n <= 200; n++ {
		est := e.Estimate(n)

		assert.GreaterOrEqual(t, est.BatchGas, prevBatchGas, "batch gas must not decrease at n=%d", n)
		assert.GreaterOrEqual(t, est.SavingsGwei, prevSavings, "savings must not decrease at n=%d", n)

		prevBatchGas = est.BatchGas
		prevSavings = est.SavingsGwei
	}
}

func TestEstimate_TwentyVotes(t *testing.T) {
	e := newTestEstimator()
	est := e.Estimate(20)

	assert.Equal(t, 20, est.VoteCount)
	assert.Equal(t, uint64(1_300_000), est.IndividualGas)
	assert.Equal(t, uint64(600_000), est.BatchGas)
	assert.InDelta(t, 26_000_000, est.IndividualCostGwei, 0.01)
	assert.InDelta(t, 12_000_000, est.BatchCostGwei, 0.01)
	assert.InDelta(t, 14_000_000, est.SavingsGwei, 0.01)
	assert.InDelta(t, 53.846, est.SavingsPercent, 0.01)
}

func TestEstimate_SavingsNeverNegative(t *testing.T) {
	// One vote: batch overhead exceeds a single individual call, but the
	// reported savings clamp at zero.
	e := newTestEstimator()
	est := e.Estimate(1)

	assert.Greater(t, est.BatchCostGwei, est.IndividualCostGwei)
	assert.Equal(t, 0.0, est.SavingsGwei)
	assert.Equal(t, 0.0, est.SavingsPercent)
}

func TestEstimate_ZeroVotes(t *testing.T) {
	e := newTestEstimator()
	est := e.Estimate(0)

	assert.Zero(t, est.IndividualGas)
	assert.Zero(t, est.BatchGas)
	assert.Zero(t, est.SavingsGwei)
}
