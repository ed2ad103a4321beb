package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/rotaclub/rota/internal/errors"
	"github.com/rotaclub/rota/internal/marketplace"
	"github.com/rotaclub/rota/internal/models"
)

type imagesBody struct {
	Images []string `json:"images" binding:"required,min=1"`
}

type imageBody struct {
	Image string `json:"image" binding:"required"`
}

func (s *APIServer) handleListTiers(c *gin.Context) {
	tiers, err := s.svc.Marketplace.Tiers(c.Request.Context())
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

func (s *APIServer) handleListCategories(c *gin.Context) {
	categories, err := s.svc.Marketplace.Categories(c.Request.Context())
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// handleListAds returns active ads ordered by tier boost, filtered by
// category_id and search
func (s *APIServer) handleListAds(c *gin.Context) {
	filter := models.AdFilter{Search: c.Query("search")}
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, apierrors.NewInvalidRequestError("Invalid category_id"))
			return
		}
		filter.CategoryID = &id
	}

	page, pageSize := pagination(c)
	resp, err := s.svc.Marketplace.ListAds(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *APIServer) handleGetAd(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ad, err := s.svc.Marketplace.GetAd(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *APIServer) handleMyAds(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)
	resp, err := s.svc.Marketplace.OwnerAds(c.Request.Context(), memberID, models.AdStatus(c.Query("status")), page, pageSize)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *APIServer) handleCreateAd(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	var req marketplace.CreateAdRequest
	if !bindJSON(c, &req) {
		return
	}
	ad, err := s.svc.Marketplace.CreateAd(c.Request.Context(), memberID, &req)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusCreated, ad)
}

func (s *APIServer) handleUpdateAd(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req marketplace.UpdateAdRequest
	if !bindJSON(c, &req) {
		return
	}
	ad, err := s.svc.Marketplace.UpdateAd(c.Request.Context(), memberID, id, &req)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// handleDeleteAd soft-deletes the caller's ad. Admins may delete any ad here too.
func (s *APIServer) handleDeleteAd(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ad, err := s.svc.Marketplace.DeleteAd(c.Request.Context(), memberID, id, s.isAdmin(c))
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *APIServer) handleAddImages(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body imagesBody
	if !bindJSON(c, &body) {
		return
	}
	ad, err := s.svc.Marketplace.AddImages(c.Request.Context(), memberID, id, body.Images)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *APIServer) handleRemoveImage(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body imageBody
	if !bindJSON(c, &body) {
		return
	}
	ad, err := s.svc.Marketplace.RemoveImage(c.Request.Context(), memberID, id, body.Image)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *APIServer) handleRenewAd(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ad, err := s.svc.Marketplace.RenewAd(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// handleMarkSold closes the ad as sold; rewards are granted on a best-effort basis
func (s *APIServer) handleMarkSold(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ad, err := s.svc.Marketplace.MarkSold(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "marketplace", err)
		return
	}
	c.JSON(http.StatusOK, ad)
}
