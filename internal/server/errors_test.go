package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/votechain/internal/ledger/domain"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"malformed body", ErrMalformedBody, http.StatusBadRequest, "validation_error"},
		{"invalid proposal", voteintentdomain.ErrInvalidProposal, http.StatusBadRequest, "validation_error"},
		{"duplicate vote", voteintentdomain.ErrDuplicateVote, http.StatusConflict, "duplicate_vote"},
		{"settlement busy", settlementdomain.ErrSettlementBusy, http.StatusConflict, "settlement_busy"},
		{"limit exceeded", voteintentdomain.ErrVotingLimitExceeded, http.StatusTooManyRequests, "voting_limit_exceeded"},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"ledger down", ledgerdomain.ErrLedgerUnavailable, http.StatusBadGateway, "ledger_unavailable"},
		{"unknown", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantType, payload.Type)
		})
	}
}

func TestSubmitVote_MalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := &Server{}
	engine.POST("/v1/votes", s.SubmitVote)

	// A type mismatch on metadata is a bind failure, not a missing
	// proposal; the response must say so generically.
	body := `{"proposal_id": "proposal-1", "metadata": "not-an-object"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/votes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"validation_error"`)
	assert.NotContains(t, rec.Body.String(), "invalid_proposal")
}
