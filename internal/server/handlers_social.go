package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/confraria"
	apierrors "github.com/rotaclub/rota/internal/errors"
	"github.com/rotaclub/rota/internal/feed"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/proposal"
)

// handleListFeed returns the public feed, optionally for one author
func (s *APIServer) handleListFeed(c *gin.Context) {
	var filter models.PostFilter
	if raw := c.Query("author_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, apierrors.NewInvalidRequestError("Invalid author_id"))
			return
		}
		filter.AuthorID = &id
	}
	page, pageSize := pagination(c)
	resp, err := s.svc.Feed.ListPosts(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		respondServiceError(c, "feed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *APIServer) handleCreatePost(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	var req feed.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	post, err := s.svc.Feed.CreatePost(c.Request.Context(), memberID, &req)
	if err != nil {
		respondServiceError(c, "feed", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (s *APIServer) handleDeletePost(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.Feed.DeletePost(c.Request.Context(), memberID, id, s.isAdmin(c)); err != nil {
		respondServiceError(c, "feed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *APIServer) handleCreateProject(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	var req proposal.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := s.svc.Proposals.CreateProject(c.Request.Context(), memberID, &req)
	if err != nil {
		respondServiceError(c, "proposal", err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *APIServer) handleGetProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := s.svc.Proposals.GetProject(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, "proposal", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// handleListProposals shows a project's bids to its owner
func (s *APIServer) handleListProposals(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := s.svc.Proposals.ListProposals(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "proposal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": items})
}

func (s *APIServer) handleSubmitProposal(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req proposal.SubmitProposalRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := s.svc.Proposals.SubmitProposal(c.Request.Context(), memberID, id, &req)
	if err != nil {
		respondServiceError(c, "proposal", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *APIServer) handleAcceptProposal(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := s.svc.Proposals.AcceptProposal(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "proposal", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *APIServer) handleCompleteProject(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := s.svc.Proposals.CompleteProject(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "proposal", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *APIServer) handleCancelProject(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := s.svc.Proposals.CancelProject(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "proposal", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *APIServer) handleScheduleConfraternity(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	var req confraria.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	meetup, err := s.svc.Confraria.Schedule(c.Request.Context(), memberID, &req)
	if err != nil {
		respondServiceError(c, "confraria", err)
		return
	}
	c.JSON(http.StatusCreated, meetup)
}

func (s *APIServer) handleGetConfraternity(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	meetup, err := s.svc.Confraria.Get(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "confraria", err)
		return
	}
	c.JSON(http.StatusOK, meetup)
}

// handleConfirmConfraternity lets the guest confirm the meetup took place
func (s *APIServer) handleConfirmConfraternity(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := s.svc.Confraria.Confirm(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "confraria", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *APIServer) handleCancelConfraternity(c *gin.Context) {
	memberID, ok := currentMember(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	meetup, err := s.svc.Confraria.Cancel(c.Request.Context(), memberID, id)
	if err != nil {
		respondServiceError(c, "confraria", err)
		return
	}
	c.JSON(http.StatusOK, meetup)
}
