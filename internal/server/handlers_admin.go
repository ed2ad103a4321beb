package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/gamification"
	"github.com/rotaclub/rota/internal/models"
	"github.com/shopspring/decimal"
)

type approveWithdrawalBody struct {
	ProofURL string `json:"proof_url" binding:"required"`
}

type rejectWithdrawalBody struct {
	Reason string `json:"reason" binding:"required"`
}

type recordCommissionBody struct {
	ReferrerID uuid.UUID       `json:"referrer_id" binding:"required"`
	ReferredID uuid.UUID       `json:"referred_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

type validatePostBody struct {
	Approve bool `json:"approve"`
}

type settingBody struct {
	Value *int64 `json:"value" binding:"required"`
}

type awardMedalBody struct {
	Code string `json:"code" binding:"required"`
}

type adjustPointsBody struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

type planBody struct {
	Plan models.Plan `json:"plan" binding:"required"`
}

type statusBody struct {
	Status models.ProfileStatus `json:"status" binding:"required"`
}

func (s *APIServer) handleAdminPendingWithdrawals(c *gin.Context) {
	page, pageSize := pagination(c)
	resp, err := s.svc.Payout.PendingWithdrawals(c.Request.Context(), page, pageSize)
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleAdminApproveWithdrawal pays the withdrawal and every available commission
func (s *APIServer) handleAdminApproveWithdrawal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body approveWithdrawalBody
	if !bindJSON(c, &body) {
		return
	}
	result, err := s.svc.Payout.ApproveWithdrawal(c.Request.Context(), id, body.ProofURL)
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *APIServer) handleAdminRejectWithdrawal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body rejectWithdrawalBody
	if !bindJSON(c, &body) {
		return
	}
	w, err := s.svc.Payout.RejectWithdrawal(c.Request.Context(), id, body.Reason)
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *APIServer) handleAdminRecordCommission(c *gin.Context) {
	var body recordCommissionBody
	if !bindJSON(c, &body) {
		return
	}
	commission, err := s.svc.Payout.RecordCommission(c.Request.Context(), body.ReferrerID, body.ReferredID, body.Amount)
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusCreated, commission)
}

func (s *APIServer) handleAdminReleaseCommission(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	commission, err := s.svc.Payout.ReleaseCommission(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, "payout", err)
		return
	}
	c.JSON(http.StatusOK, commission)
}

// handleAdminActivateAd confirms payment of a paid tier
func (s *APIServer) handleAdminActivateAd(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ad, err := s.svc.Marketplace.ActivateAd(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *APIServer) handleAdminDeleteAd(c *gin.Context) {
	adminID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ad, err := s.svc.Marketplace.DeleteAd(c.Request.Context(), adminID, id, true)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *APIServer) handleAdminExpiryStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Expiry.GetStatus())
}

func (s *APIServer) handleAdminRunExpiry(c *gin.Context) {
	expired, err := s.svc.Expiry.RunNow(c.Request.Context())
	if err != nil {
		respondServiceError(c, "ad_expiry", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

func (s *APIServer) handleAdminPendingPosts(c *gin.Context) {
	page, pageSize := pagination(c)
	resp, err := s.svc.Feed.ListPosts(c.Request.Context(), models.PostFilter{ValidationStatus: models.ValidationPending}, page, pageSize)
	if err != nil {
		respondServiceError(c, "feed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *APIServer) handleAdminValidatePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body validatePostBody
	if !bindJSON(c, &body) {
		return
	}
	post, err := s.svc.Feed.ValidatePost(c.Request.Context(), id, body.Approve)
	if err != nil {
		respondServiceError(c, "feed", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *APIServer) handleAdminDeletePost(c *gin.Context) {
	adminID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.Feed.DeletePost(c.Request.Context(), adminID, id, true); err != nil {
		respondServiceError(c, "feed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *APIServer) handleAdminListSettings(c *gin.Context) {
	values, err := s.svc.Settings.All(c.Request.Context())
	if err != nil {
		respondServiceError(c, "settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

func (s *APIServer) handleAdminPutSetting(c *gin.Context) {
	var body settingBody
	if !bindJSON(c, &body) {
		return
	}
	key := c.Param("key")
	if err := s.svc.Settings.Set(c.Request.Context(), key, strconv.FormatInt(*body.Value, 10)); err != nil {
		respondServiceError(c, "settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": *body.Value})
}

func (s *APIServer) handleAdminListRanks(c *gin.Context) {
	s.handleListRanks(c)
}

func (s *APIServer) handleAdminSaveRank(c *gin.Context) {
	var rank models.Rank
	if !bindJSON(c, &rank) {
		return
	}
	if err := s.svc.Gamification.SaveRank(c.Request.Context(), &rank); err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, rank)
}

func (s *APIServer) handleAdminDeleteRank(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.Gamification.DeleteRank(c.Request.Context(), id); err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleAdminListMedals lists every medal definition, inactive ones included
func (s *APIServer) handleAdminListMedals(c *gin.Context) {
	medals, err := s.svc.Gamification.Medals(c.Request.Context(), false)
	if err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"medals": medals})
}

func (s *APIServer) handleAdminSaveMedal(c *gin.Context) {
	var medal models.Medal
	if !bindJSON(c, &medal) {
		return
	}
	if err := s.svc.Gamification.SaveMedal(c.Request.Context(), &medal); err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, medal)
}

func (s *APIServer) handleAdminAwardMedal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body awardMedalBody
	if !bindJSON(c, &body) {
		return
	}
	awarded, err := s.svc.Gamification.AwardMedal(c.Request.Context(), id, body.Code)
	if err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": awarded})
}

// handleAdminAdjustPoints books a manual ledger entry; negative amounts deduct
func (s *APIServer) handleAdminAdjustPoints(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body adjustPointsBody
	if !bindJSON(c, &body) {
		return
	}
	description := body.Description
	if description == "" {
		description = "Ajuste administrativo"
	}
	adminID, _ := currentMember(c)
	event, err := s.svc.Gamification.AwardPoints(c.Request.Context(), gamification.Award{
		ProfileID:   id,
		Amount:      body.Amount,
		ActionType:  models.ActionAdminAdjustment,
		Description: description,
		Metadata:    map[string]any{"admin_id": adminID.String()},
		Exact:       true,
	})
	if err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (s *APIServer) handleAdminSetPlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body planBody
	if !bindJSON(c, &body) {
		return
	}
	p, err := s.svc.Profiles.SetPlan(c.Request.Context(), id, body.Plan)
	if err != nil {
		respondServiceError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *APIServer) handleAdminSetStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body statusBody
	if !bindJSON(c, &body) {
		return
	}
	p, err := s.svc.Profiles.SetStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		respondServiceError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
