// Package eligibility classifies stored vote intents ahead of settlement.
// Everything here is a pure read; "invalid" is an expected, frequent state
// and is reported as data, not as an error.
package eligibility

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
)

// DefaultMaxAge is how long an intent stays eligible after intake. Age is
// checked at validation time, not intake time: an intent can sit unprocessed
// long enough to expire between insert and batch attempt.
const DefaultMaxAge = 24 * time.Hour

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

const (
	ReasonMissingProposal  = "missing proposal id"
	ReasonMissingUser      = "missing user id"
	ReasonInvalidProduct   = "invalid product id"
	ReasonAlreadyProcessed = "vote already processed"
	ReasonNotVerified      = "vote not verified"
	ReasonExpired          = "vote expired"
)

// Result is the outcome of validating one intent.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
	// CanFix is true only when the sole failing rule is verification;
	// every other failure requires re-submission.
	CanFix bool `json:"can_fix"`
}

// FieldErrors checks the intake-level field rules shared with Validate.
func FieldErrors(proposalID, userID, productID string) []string {
	var errs []string
	if strings.TrimSpace(proposalID) == "" {
		errs = append(errs, ReasonMissingProposal)
	}
	if strings.TrimSpace(userID) == "" {
		errs = append(errs, ReasonMissingUser)
	}
	if !productIDPattern.MatchString(productID) {
		errs = append(errs, ReasonInvalidProduct)
	}
	return errs
}

// Validate applies the eligibility rules in order. All must pass.
func Validate(intent *voteintentdomain.VoteIntent, now time.Time, maxAge time.Duration) Result {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	errs := FieldErrors(intent.ProposalID, intent.UserID, intent.SelectedProductID)
	if intent.IsProcessed {
		errs = append(errs, ReasonAlreadyProcessed)
	}
	if !intent.IsVerified {
		errs = append(errs, ReasonNotVerified)
	}
	if intent.Age(now) > maxAge {
		errs = append(errs, fmt.Sprintf("%s: older than %s", ReasonExpired, maxAge))
	}

	result := Result{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
	result.CanFix = len(errs) == 1 && errs[0] == ReasonNotVerified
	return result
}

// ProcessingPriority scores an intent for batch ordering. The score grows
// monotonically with age so older votes drain first; it never affects
// eligibility.
func ProcessingPriority(intent *voteintentdomain.VoteIntent, now time.Time) int {
	priority := 50

	ageHours := int(intent.Age(now).Hours())
	ageBonus := ageHours * 2
	if ageBonus > 30 {
		ageBonus = 30
	}
	if ageBonus > 0 {
		priority += ageBonus
	}

	if intent.IsVerified {
		priority += 10
	}
	return priority
}
