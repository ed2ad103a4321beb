package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rotaclub/rota/internal/profile"
)

type createProfileBody struct {
	DisplayName string  `json:"display_name" binding:"required"`
	Slug        string  `json:"slug"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// handleCreateProfile registers the caller's profile after signup
func (s *APIServer) handleCreateProfile(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	var body createProfileBody
	if !bindJSON(c, &body) {
		return
	}

	p, err := s.svc.Profiles.Create(c.Request.Context(), &profile.CreateRequest{
		ID:          memberID,
		DisplayName: body.DisplayName,
		Slug:        body.Slug,
		AvatarURL:   body.AvatarURL,
	})
	if err != nil {
		respondServiceError(c, "profile", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *APIServer) handleGetMe(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	view, err := s.svc.Profiles.Get(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *APIServer) handleUpdateMe(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	var req profile.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := s.svc.Profiles.Update(c.Request.Context(), memberID, &req)
	if err != nil {
		respondServiceError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *APIServer) handleGetProfileBySlug(c *gin.Context) {
	view, err := s.svc.Profiles.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondServiceError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleSummary returns points, monthly vigor, rank progress and medals
func (s *APIServer) handleSummary(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	summary, err := s.svc.Gamification.Summary(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *APIServer) handleHistory(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)
	history, err := s.svc.Gamification.History(c.Request.Context(), memberID, page, pageSize)
	if err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *APIServer) handleEarnedMedals(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	medals, err := s.svc.Gamification.EarnedMedals(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"medals": medals})
}

func (s *APIServer) handleListRanks(c *gin.Context) {
	ranks, err := s.svc.Gamification.Ranks(c.Request.Context())
	if err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranks": ranks})
}

// handleLeaderboard returns the top members, 10 by default and at most 100
func (s *APIServer) handleLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 10
	}
	entries, err := s.svc.Gamification.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, "gamification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (s *APIServer) handleListNotifications(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 50
	}
	items, err := s.svc.Notifications.List(c.Request.Context(), memberID, c.Query("unread") == "true", limit)
	if err != nil {
		respondServiceError(c, "notification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (s *APIServer) handleMarkNotificationRead(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.Notifications.MarkRead(c.Request.Context(), memberID, id); err != nil {
		respondServiceError(c, "notification", err)
		return
	}
	c.Status(http.StatusNoContent)
}
