package profile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
)

// Service errors
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrSlugTaken       = errors.New("slug already taken")
	ErrInvalidSlug     = errors.New("slug must be 3-60 lowercase letters, digits or hyphens")
	ErrInvalidName     = errors.New("display name is required")
	ErrInvalidPlan     = errors.New("invalid plan")
	ErrInvalidStatus   = errors.New("invalid profile status")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{3,60}$`)

// RankSource supplies the current rank table
type RankSource interface {
	Ranks(ctx context.Context) ([]models.Rank, error)
}

// Resolver derives a rank from a rank table and a point total
type Resolver func(ranks []models.Rank, points int64) *models.Rank

// Service handles member profiles
type Service struct {
	store   store.Store
	ranks   RankSource
	resolve Resolver
}

// NewService creates a new profile service
func NewService(s store.Store, ranks RankSource, resolve Resolver) *Service {
	return &Service{store: s, ranks: ranks, resolve: resolve}
}

// View is a profile with its derived rank and point total
type View struct {
	models.Profile
	TotalPoints int64        `json:"total_points"`
	Rank        *models.Rank `json:"rank"`
}

// CreateRequest is the signup hook payload
type CreateRequest struct {
	ID          uuid.UUID   `json:"id" binding:"required"`
	DisplayName string      `json:"display_name" binding:"required"`
	Slug        string      `json:"slug"`
	AvatarURL   *string     `json:"avatar_url,omitempty"`
	Plan        models.Plan `json:"plan"`
}

// UpdateRequest carries the self-editable profile fields
type UpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Slug        *string `json:"slug,omitempty"`
}

// Slugify turns a display name into a slug candidate
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 60 {
		s = strings.Trim(s[:60], "-")
	}
	return s
}

// ValidSlug reports whether s matches the slug format
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Create registers a profile for an identity that just signed up
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Profile, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, ErrInvalidName
	}
	plan := req.Plan
	if plan == "" {
		plan = models.PlanRecruta
	}
	if !plan.Valid() {
		return nil, ErrInvalidPlan
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = Slugify(name)
		if len(slug) < 3 {
			slug = "membro-" + req.ID.String()[:8]
		}
	}
	if !ValidSlug(slug) {
		return nil, ErrInvalidSlug
	}

	if _, err := s.store.GetProfile(ctx, req.ID); err == nil {
		return nil, ErrProfileExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p := &models.Profile{
		ID:          req.ID,
		DisplayName: name,
		AvatarURL:   req.AvatarURL,
		Slug:        slug,
		Plan:        plan,
		Status:      models.ProfileStatusActive,
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// Get returns a profile by id with its derived rank
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	return s.view(ctx, p)
}

// GetBySlug returns a profile by slug with its derived rank
func (s *Service) GetBySlug(ctx context.Context, slug string) (*View, error) {
	p, err := s.store.GetProfileBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, s.notFound(err)
	}
	return s.view(ctx, p)
}

func (s *Service) notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrProfileNotFound
	}
	return fmt.Errorf("failed to get profile: %w", err)
}

func (s *Service) view(ctx context.Context, p *models.Profile) (*View, error) {
	total, err := s.store.GetTotalPoints(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	v := &View{Profile: *p, TotalPoints: total}
	if s.ranks != nil && s.resolve != nil {
		ranks, err := s.ranks.Ranks(ctx)
		if err != nil {
			return nil, err
		}
		v.Rank = s.resolve(ranks, total)
	}
	return v, nil
}

// Update edits the caller's own profile
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, ErrInvalidName
		}
		p.DisplayName = name
	}
	if req.AvatarURL != nil {
		if url := strings.TrimSpace(*req.AvatarURL); url == "" {
			p.AvatarURL = nil
		} else {
			p.AvatarURL = &url
		}
	}
	if req.Slug != nil {
		slug := strings.TrimSpace(*req.Slug)
		if !ValidSlug(slug) {
			return nil, ErrInvalidSlug
		}
		p.Slug = slug
	}

	return p, s.save(ctx, p)
}

// SetPlan changes a member's subscription plan (admin)
func (s *Service) SetPlan(ctx context.Context, id uuid.UUID, plan models.Plan) (*models.Profile, error) {
	if !plan.Valid() {
		return nil, ErrInvalidPlan
	}
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	p.Plan = plan
	return p, s.save(ctx, p)
}

// SetStatus suspends, deactivates or reactivates a member (admin). Profiles are never deleted.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status models.ProfileStatus) (*models.Profile, error) {
	switch status {
	case models.ProfileStatusActive, models.ProfileStatusSuspended, models.ProfileStatusInactive:
	default:
		return nil, ErrInvalidStatus
	}
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	p.Status = status
	return p, s.save(ctx, p)
}

func (s *Service) save(ctx context.Context, p *models.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	err := s.store.UpdateProfile(ctx, p)
	switch {
	case errors.Is(err, store.ErrConflict):
		return ErrSlugTaken
	case errors.Is(err, store.ErrNotFound):
		return ErrProfileNotFound
	case err != nil:
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
