// Package proposal lets members post projects and bid on each other's work.
package proposal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/notification"
	"github.com/rotaclub/rota/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrProposalNotFound   = errors.New("proposal not found")
	ErrNotProjectOwner    = errors.New("project belongs to another member")
	ErrOwnProject         = errors.New("cannot bid on your own project")
	ErrProjectNotOpen     = errors.New("project is not open for proposals")
	ErrDuplicateProposal  = errors.New("a pending proposal already exists for this project")
	ErrProposalNotPending = errors.New("proposal is not pending")
	ErrInvalidProject     = errors.New("project title is required and budget must not be negative")
	ErrInvalidAmount      = errors.New("proposal amount must be positive")
	ErrProjectState       = errors.New("project status does not allow this operation")
)

// Service handles projects and proposals
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a new proposal service
func NewService(s store.Store) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateProjectRequest represents a new project
type CreateProjectRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Budget      decimal.Decimal `json:"budget"`
}

// SubmitProposalRequest represents a bid
type SubmitProposalRequest struct {
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	Message string          `json:"message"`
}

// AcceptResult describes the outcome of accepting a proposal
type AcceptResult struct {
	Project  *models.Project  `json:"project"`
	Proposal *models.Proposal `json:"proposal"`
	Rejected int64            `json:"rejected_count"`
}

// CreateProject opens a project for proposals
func (s *Service) CreateProject(ctx context.Context, ownerID uuid.UUID, req *CreateProjectRequest) (*models.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || req.Budget.IsNegative() {
		return nil, ErrInvalidProject
	}
	now := s.now()
	p := &models.Project{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Budget:      req.Budget,
		Status:      models.ProjectStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertProject(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// GetProject returns a project
func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// SubmitProposal bids on an open project owned by someone else
func (s *Service) SubmitProposal(ctx context.Context, providerID, projectID uuid.UUID, req *SubmitProposalRequest) (*models.Proposal, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var out *models.Proposal
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		project, err := q.GetProjectForUpdate(ctx, projectID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrProjectNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		if project.OwnerID == providerID {
			return ErrOwnProject
		}
		if project.Status != models.ProjectStatusOpen {
			return ErrProjectNotOpen
		}
		pending, err := q.HasPendingProposal(ctx, projectID, providerID)
		if err != nil {
			return fmt.Errorf("failed to check proposals: %w", err)
		}
		if pending {
			return ErrDuplicateProposal
		}

		p := &models.Proposal{
			ID:         uuid.New(),
			ProjectID:  projectID,
			ProviderID: providerID,
			Amount:     req.Amount,
			Message:    strings.TrimSpace(req.Message),
			Status:     models.ProposalStatusPending,
			CreatedAt:  s.now(),
		}
		if err := q.InsertProposal(ctx, p); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrDuplicateProposal
			}
			return fmt.Errorf("failed to create proposal: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}

// ListProposals returns the bids on a project to its owner
func (s *Service) ListProposals(ctx context.Context, ownerID, projectID uuid.UUID) ([]models.Proposal, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, ErrNotProjectOwner
	}
	items, err := s.store.ListProposals(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	if items == nil {
		items = []models.Proposal{}
	}
	return items, nil
}

// AcceptProposal hires a provider in one transaction: the proposal is
// accepted, the other pending bids are rejected, the project moves to
// in_progress and the provider is notified.
func (s *Service) AcceptProposal(ctx context.Context, ownerID, proposalID uuid.UUID) (*AcceptResult, error) {
	result := &AcceptResult{}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		bid, err := q.GetProposal(ctx, proposalID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrProposalNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get proposal: %w", err)
		}
		// Project row first, then the bid: accepts on one project run one at a time.
		project, err := q.GetProjectForUpdate(ctx, bid.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		proposal, err := q.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("failed to get proposal: %w", err)
		}
		if project.OwnerID != ownerID {
			return ErrNotProjectOwner
		}
		if proposal.Status != models.ProposalStatusPending {
			return ErrProposalNotPending
		}
		if project.Status != models.ProjectStatusOpen {
			return ErrProjectNotOpen
		}

		now := s.now()
		proposal.Status = models.ProposalStatusAccepted
		proposal.RespondedAt = &now
		if err := q.UpdateProposal(ctx, proposal); err != nil {
			return fmt.Errorf("failed to accept proposal: %w", err)
		}

		rejected, err := q.RejectPendingProposals(ctx, project.ID, proposal.ID, now)
		if err != nil {
			return fmt.Errorf("failed to reject other proposals: %w", err)
		}

		provider := proposal.ProviderID
		project.Status = models.ProjectStatusInProgress
		project.ProviderID = &provider
		project.UpdatedAt = now
		if err := q.UpdateProject(ctx, project); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		link := "/projetos/" + project.ID.String()
		n := notification.New(provider, models.NotificationProposalAccepted, "Proposta aceita",
			"Sua proposta para "+project.Title+" foi aceita.", &link)
		if err := notification.Insert(ctx, q, n); err != nil {
			return err
		}

		result.Project = project
		result.Proposal = proposal
		result.Rejected = rejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("project_id", result.Project.ID.String()).
		Str("provider_id", result.Proposal.ProviderID.String()).
		Int64("rejected", result.Rejected).
		Msg("Proposal accepted")
	return result, nil
}

// CompleteProject closes an in-progress project
func (s *Service) CompleteProject(ctx context.Context, ownerID, projectID uuid.UUID) (*models.Project, error) {
	return s.setProjectStatus(ctx, ownerID, projectID, models.ProjectStatusInProgress, models.ProjectStatusCompleted)
}

// CancelProject withdraws an open project
func (s *Service) CancelProject(ctx context.Context, ownerID, projectID uuid.UUID) (*models.Project, error) {
	return s.setProjectStatus(ctx, ownerID, projectID, models.ProjectStatusOpen, models.ProjectStatusCancelled)
}

func (s *Service) setProjectStatus(ctx context.Context, ownerID, projectID uuid.UUID, from, to models.ProjectStatus) (*models.Project, error) {
	var out *models.Project
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		project, err := q.GetProjectForUpdate(ctx, projectID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrProjectNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		if project.OwnerID != ownerID {
			return ErrNotProjectOwner
		}
		if project.Status != from {
			return ErrProjectState
		}
		now := s.now()
		project.Status = to
		project.UpdatedAt = now
		if err := q.UpdateProject(ctx, project); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}
		if to == models.ProjectStatusCancelled {
			if _, err := q.RejectPendingProposals(ctx, project.ID, uuid.Nil, now); err != nil {
				return fmt.Errorf("failed to reject proposals: %w", err)
			}
		}
		out = project
		return nil
	})
	return out, err
}
