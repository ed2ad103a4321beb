package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/payout"
)

// handleBalance returns the caller's commission balance by status
func (s *APIServer) handleBalance(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	balance, err := s.svc.Payout.Balance(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (s *APIServer) handleListCommissions(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	items, err := s.svc.Payout.Commissions(c.Request.Context(), memberID, models.CommissionStatus(c.Query("status")))
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": items})
}

func (s *APIServer) handleListWithdrawals(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)
	resp, err := s.svc.Payout.Withdrawals(c.Request.Context(), memberID, page, pageSize)
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleRequestWithdrawal opens a PIX withdrawal against available commissions
func (s *APIServer) handleRequestWithdrawal(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	var req payout.CreateWithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	w, err := s.svc.Payout.RequestWithdrawal(c.Request.Context(), memberID, &req)
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusCreated, w)
}
