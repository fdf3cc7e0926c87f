package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/votechain/internal/eligibility"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
)

// selection is the partitioned outcome of candidate gathering: valid intents
// ordered for submission, plus the per-vote failures left in the queue.
type selection struct {
	valid  []*voteintentdomain.VoteIntent
	failed []settlementdomain.FailedVote
	// validTotal is the valid count before the batch size cap; the
	// threshold gate reads this, never the capped slice.
	validTotal int
	// skipped counts valid votes left behind by the batch size cap.
	skipped int
	// thresholdCrossedAt is when the threshold-th oldest valid vote
	// arrived; it anchors the processing delay.
	thresholdCrossedAt *time.Time
}

// selectCandidates gathers intents per the criteria, validates each, and
// orders the survivors by processing priority (ties broken oldest-first).
func (s *Service) selectCandidates(ctx context.Context, businessID snowflake.ID, criteria settlementdomain.SelectionCriteria, maxBatch, threshold int, maxAge time.Duration) (selection, error) {
	var (
		candidates []*voteintentdomain.VoteIntent
		err        error
	)
	switch {
	case len(criteria.VoteIDs) > 0:
		candidates, err = s.repo.FindByVoteIDs(ctx, businessID, criteria.VoteIDs)
	default:
		// Over-fetch so invalid rows do not starve the batch, and never
		// fetch fewer than the threshold needs to evaluate readiness.
		fetch := maxBatch
		if threshold > fetch {
			fetch = threshold
		}
		candidates, err = s.repo.FindPending(ctx, businessID, criteria.ProposalID, fetch*2)
	}
	if err != nil {
		return selection{}, err
	}

	now := s.clock.Now()
	sel := selection{}
	for _, intent := range candidates {
		result := eligibility.Validate(intent, now, maxAge)
		if !result.Valid {
			sel.failed = append(sel.failed, settlementdomain.FailedVote{
				VoteID: intent.VoteID,
				Errors: result.Errors,
			})
			continue
		}
		sel.valid = append(sel.valid, intent)
	}

	sel.validTotal = len(sel.valid)

	// Repositories return oldest-first, so the threshold anchor is a
	// direct index into the valid slice.
	if threshold > 0 && len(sel.valid) >= threshold {
		crossedAt := sel.valid[threshold-1].CreatedAt
		sel.thresholdCrossedAt = &crossedAt
	}

	sort.SliceStable(sel.valid, func(i, j int) bool {
		pi := eligibility.ProcessingPriority(sel.valid[i], now)
		pj := eligibility.ProcessingPriority(sel.valid[j], now)
		if pi != pj {
			return pi > pj
		}
		return sel.valid[i].CreatedAt.Before(sel.valid[j].CreatedAt)
	})

	limit := maxBatch
	if criteria.MaxVotes > 0 && criteria.MaxVotes < limit {
		limit = criteria.MaxVotes
	}
	if limit > 0 && len(sel.valid) > limit {
		sel.skipped = len(sel.valid) - limit
		sel.valid = sel.valid[:limit]
	}
	return sel, nil
}
