package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/votechain/internal/ledger/domain"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrMissingBusiness = errors.New("missing_business")
	ErrMalformedBody   = errors.New("malformed_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrMissingBusiness),
		errors.Is(err, tenantdomain.ErrInvalidBusiness):
		return http.StatusBadRequest, errorPayload{Type: "invalid_business", Message: "a valid X-Business-ID header is required"}

	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: "request could not be parsed"}

	case errors.Is(err, voteintentdomain.ErrInvalidProposal),
		errors.Is(err, voteintentdomain.ErrInvalidUser),
		errors.Is(err, voteintentdomain.ErrInvalidProduct),
		errors.Is(err, tenantdomain.ErrInvalidThreshold),
		errors.Is(err, tenantdomain.ErrInvalidBatchSize),
		errors.Is(err, tenantdomain.ErrInvalidDelay):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}

	case errors.Is(err, voteintentdomain.ErrDuplicateVote):
		return http.StatusConflict, errorPayload{Type: "duplicate_vote", Message: "a vote for this proposal already exists for this user"}

	case errors.Is(err, voteintentdomain.ErrVoteAlreadyProcessed):
		return http.StatusConflict, errorPayload{Type: "vote_already_processed", Message: "processed votes are immutable"}

	case errors.Is(err, settlementdomain.ErrSettlementBusy):
		return http.StatusConflict, errorPayload{Type: "settlement_busy", Message: "another batch is settling for this business"}

	case errors.Is(err, tenantdomain.ErrNoContract):
		return http.StatusConflict, errorPayload{Type: "no_deployed_contract", Message: "deploy a settlement contract first"}

	case errors.Is(err, voteintentdomain.ErrVotingLimitExceeded):
		return http.StatusTooManyRequests, errorPayload{Type: "voting_limit_exceeded", Message: "plan vote limit reached"}

	case errors.Is(err, voteintentdomain.ErrVoteNotFound),
		errors.Is(err, tenantdomain.ErrTenantNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "resource not found"}

	case errors.Is(err, ledgerdomain.ErrLedgerUnavailable):
		return http.StatusBadGateway, errorPayload{Type: "ledger_unavailable", Message: "ledger submission failed; no votes were modified"}
	}

	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
}
