package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
)

func (s *Server) SubmitVote(c *gin.Context) {
	var req voteintentdomain.SubmitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrMalformedBody)
		return
	}

	intent, err := s.voteSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

func (s *Server) ListVotes(c *gin.Context) {
	var req voteintentdomain.ListVotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrMalformedBody)
		return
	}

	resp, err := s.voteSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetVote(c *gin.Context) {
	intent, err := s.voteSvc.Get(c.Request.Context(), c.Param("vote_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (s *Server) DeleteVote(c *gin.Context) {
	if err := s.voteSvc.Delete(c.Request.Context(), c.Param("vote_id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) VoteStats(c *gin.Context) {
	stats, err := s.voteSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) ValidateVotes(c *gin.Context) {
	var req struct {
		VoteIDs []string `json:"vote_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, ErrMalformedBody)
		return
	}

	report, err := s.settlementSvc.ValidateVotes(c.Request.Context(), req.VoteIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": report})
}
