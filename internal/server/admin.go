package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/promocast/promocast/internal/audit/domain"
	recdomain "github.com/promocast/promocast/internal/reconcile/domain"
)

type forceMatchRequest struct {
	TxHash   string `json:"tx_hash" binding:"required"`
	Operator string `json:"operator" binding:"required"`
}

func (s *Server) ForceMatch(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req forceMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.adminSvc.ForceMatch(c.Request.Context(), req.Operator, orderID, strings.TrimSpace(req.TxHash))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.orderResponse(order))
}

type reclassifyRequest struct {
	Outcome  string `json:"outcome" binding:"required"`
	Operator string `json:"operator" binding:"required"`
}

func (s *Server) Reclassify(c *gin.Context) {
	txHash := strings.TrimSpace(c.Param("hash"))
	if txHash == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req reclassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.adminSvc.Reclassify(c.Request.Context(), req.Operator, txHash, recdomain.Outcome(req.Outcome)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type reprovisionRequest struct {
	Operator string `json:"operator" binding:"required"`
}

func (s *Server) Reprovision(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req reprovisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	campaign, err := s.adminSvc.Reprovision(c.Request.Context(), req.Operator, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	filter := auditdomain.ListFilter{
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
	}
	if raw := strings.TrimSpace(c.Query("start_at")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.StartAt = &t
	}
	if raw := strings.TrimSpace(c.Query("end_at")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.EndAt = &t
	}

	logs, err := s.auditSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}
