package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
)

func (s *Server) GetPolicy(c *gin.Context) {
	policy, err := s.tenantSvc.GetPolicy(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (s *Server) UpdatePolicy(c *gin.Context) {
	var req tenantdomain.UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrMalformedBody)
		return
	}

	policy, err := s.tenantSvc.UpdatePolicy(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (s *Server) DeployContract(c *gin.Context) {
	result, err := s.ledgerClient.DeployContract(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.tenantSvc.SetContractAddress(c.Request.Context(), result.ContractAddress); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) CreateRound(c *gin.Context) {
	var req struct {
		MetadataURI string `json:"metadata_uri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrMalformedBody)
		return
	}

	address, err := s.tenantSvc.ContractAddress(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.ledgerClient.CreateRound(c.Request.Context(), address, strings.TrimSpace(req.MetadataURI))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) RoundEvents(c *gin.Context) {
	address, err := s.tenantSvc.ContractAddress(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	events, err := s.ledgerClient.GetRoundEvents(c.Request.Context(), address)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) VoteEvents(c *gin.Context) {
	address, err := s.tenantSvc.ContractAddress(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	events, err := s.ledgerClient.GetVoteEvents(c.Request.Context(), address)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
