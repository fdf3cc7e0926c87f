package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
)

func (s *Server) ProcessBatch(c *gin.Context) {
	var criteria settlementdomain.SelectionCriteria
	if err := c.ShouldBindJSON(&criteria); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, ErrMalformedBody)
		return
	}

	result, err := s.settlementSvc.ProcessBatch(c.Request.Context(), criteria)
	if err != nil {
		var notReady *settlementdomain.NotReadyError
		if errors.As(err, &notReady) {
			c.JSON(http.StatusConflict, gin.H{
				"error": errorPayload{
					Type:    "batch_not_ready",
					Message: notReady.Evaluation.Reason,
				},
				"evaluation": notReady.Evaluation,
			})
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListBatches(c *gin.Context) {
	var req settlementdomain.ListBatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrMalformedBody)
		return
	}

	resp, err := s.settlementSvc.ListBatches(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) BatchStatus(c *gin.Context) {
	status, err := s.settlementSvc.Status(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) EstimateSavings(c *gin.Context) {
	voteCount := 0
	if raw := c.Query("vote_count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, ErrMalformedBody)
			return
		}
		voteCount = parsed
	}

	estimate, err := s.settlementSvc.EstimateSavings(c.Request.Context(), voteCount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, estimate)
}

func (s *Server) AutoProcess(c *gin.Context) {
	result, err := s.settlementSvc.AutoProcess(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
