// Package batching decides when a tenant's pending votes should flush into
// an on-chain batch. "Not ready" is an expected state reported as data with
// a human-readable reason, never as an error.
package batching

import (
	"fmt"
	"time"

	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
)

const (
	ActionProcessNow  = "process now"
	ActionProcessSoon = "process soon"
	ActionMonitor     = "monitor"
	ActionWait        = "wait"
)

// Evaluation is the result of checking a tenant's queue against its policy.
type Evaluation struct {
	Ready        bool   `json:"ready"`
	PendingCount int    `json:"pending_count"`
	Threshold    int    `json:"threshold"`
	Reason       string `json:"reason,omitempty"`
	// VotesNeeded is how many more valid votes are required before the
	// queue qualifies; zero once at or above threshold.
	VotesNeeded int `json:"votes_needed"`
	// ReadyAt is when the processing delay elapses, set only while the
	// threshold is crossed but the delay still holds the flush back.
	ReadyAt *time.Time `json:"ready_at,omitempty"`
}

// Evaluate checks pending valid votes against the policy. thresholdCrossedAt
// anchors the processing delay: the flush waits until that instant plus the
// configured delay. A nil thresholdCrossedAt means the delay starts now.
func Evaluate(policy tenantdomain.BatchingPolicy, pendingValid int, thresholdCrossedAt *time.Time, now time.Time) Evaluation {
	eval := Evaluation{
		PendingCount: pendingValid,
		Threshold:    policy.BatchThreshold,
	}

	if pendingValid < policy.BatchThreshold {
		eval.VotesNeeded = policy.BatchThreshold - pendingValid
		eval.Reason = fmt.Sprintf("need %d more votes", eval.VotesNeeded)
		return eval
	}

	if policy.ProcessingDelay > 0 {
		crossedAt := now
		if thresholdCrossedAt != nil {
			crossedAt = *thresholdCrossedAt
		}
		readyAt := crossedAt.Add(policy.ProcessingDelay)
		if now.Before(readyAt) {
			eval.ReadyAt = &readyAt
			eval.Reason = fmt.Sprintf("processing delay active until %s", readyAt.UTC().Format(time.RFC3339))
			return eval
		}
	}

	eval.Ready = true
	return eval
}

// CanProcessNow applies the force override on top of the evaluation.
func CanProcessNow(eval Evaluation, force bool) bool {
	return eval.Ready || force
}

// RecommendedAction is advisory, consumed by dashboards, never by the
// executor.
func RecommendedAction(pendingCount, threshold int) string {
	if threshold <= 0 {
		return ActionProcessNow
	}
	switch {
	case pendingCount >= threshold:
		return ActionProcessNow
	case float64(pendingCount) >= 0.8*float64(threshold):
		return ActionProcessSoon
	case float64(pendingCount) >= 0.5*float64(threshold):
		return ActionMonitor
	default:
		return ActionWait
	}
}
