// Package costing models the gas cost of settling votes individually versus
// batched. The figures drive tenant-facing savings claims and the
// auto-process policy, so the batch estimate must be monotonically
// non-decreasing in the vote count.
package costing

import (
	"github.com/smallbiznis/votechain/internal/config"
)

// Estimate compares settling n votes one-by-one against one batch call.
// Costs are denominated in gwei at the configured unit price.
type Estimate struct {
	VoteCount int `json:"vote_count"`

	IndividualGas uint64 `json:"individual_gas"`
	BatchGas      uint64 `json:"batch_gas"`

	GasPriceGwei       float64 `json:"gas_price_gwei"`
	IndividualCostGwei float64 `json:"individual_cost_gwei"`
	BatchCostGwei      float64 `json:"batch_cost_gwei"`

	SavingsGwei    float64 `json:"savings_gwei"`
	SavingsPercent float64 `json:"savings_percent"`
}

type Estimator struct {
	cfg *config.SettlementConfigHolder
}

func NewEstimator(cfg *config.SettlementConfigHolder) *Estimator {
	return &Estimator{cfg: cfg}
}

// IndividualGas is the fixed per-vote constant; a policy knob, not a chain
// measurement.
func (e *Estimator) IndividualGas(n int) uint64 {
	if n < 0 {
		n = 0
	}
	return e.cfg.Get().IndividualGasPerVote * uint64(n)
}

// BatchGas is baseGas + perVoteGas*n.
func (e *Estimator) BatchGas(n int) uint64 {
	if n <= 0 {
		return 0
	}
	cfg := e.cfg.Get()
	return cfg.BatchBaseGas + cfg.BatchPerVoteGas*uint64(n)
}

// Estimate produces the full comparison for n votes.
func (e *Estimator) Estimate(n int) Estimate {
	if n < 0 {
		n = 0
	}
	cfg := e.cfg.Get()

	individualGas := e.IndividualGas(n)
	batchGas := e.BatchGas(n)

	individualCost := float64(individualGas) * cfg.GasPriceGwei
	batchCost := float64(batchGas) * cfg.GasPriceGwei

	savings := individualCost - batchCost
	if savings < 0 {
		savings = 0
	}
	percent := 0.0
	if individualCost > 0 {
		percent = savings / individualCost * 100
	}

	return Estimate{
		VoteCount:          n,
		IndividualGas:      individualGas,
		BatchGas:           batchGas,
		GasPriceGwei:       cfg.GasPriceGwei,
		IndividualCostGwei: individualCost,
		BatchCostGwei:      batchCost,
		SavingsGwei:        savings,
		SavingsPercent:     percent,
	}
}
