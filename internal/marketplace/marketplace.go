// Package marketplace manages classified ads from creation to sale or expiry.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/logging"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rotaclub/rota/internal/storage"
	"github.com/rotaclub/rota/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RenewalPeriod is how long a renewed ad stays active, whatever its tier
const RenewalPeriod = 30 * 24 * time.Hour

// Service errors
var (
	ErrAdNotFound        = errors.New("ad not found")
	ErrNotOwner          = errors.New("ad belongs to another member")
	ErrTierNotFound      = errors.New("ad tier not found")
	ErrTierInactive      = errors.New("ad tier is not available")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrTooManyImages     = errors.New("image limit for this tier reached")
	ErrImageNotFound     = errors.New("image not found on ad")
	ErrDuplicateImage    = errors.New("image is already on the ad")
	ErrInvalidTitle      = errors.New("title is required")
	ErrInvalidPrice      = errors.New("price must not be negative")
	ErrInvalidTransition = errors.New("ad status does not allow this operation")
	ErrUnknownStatus     = errors.New("unknown ad status")
)

// transitions lists the statuses each status may move to
var transitions = map[models.AdStatus][]models.AdStatus{
	models.AdStatusPendingPayment: {models.AdStatusActive, models.AdStatusDeleted},
	models.AdStatusActive:         {models.AdStatusExpired, models.AdStatusSold, models.AdStatusDeleted},
	models.AdStatusExpired:        {models.AdStatusActive, models.AdStatusSold, models.AdStatusDeleted},
	models.AdStatusSold:           {models.AdStatusDeleted},
	models.AdStatusDeleted:        {},
}

// CanTransition reports whether an ad may move from one status to another
func CanTransition(from, to models.AdStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SaleRewarder runs the gamification side of a sale
type SaleRewarder interface {
	OnAdSold(ctx context.Context, sellerID, adID uuid.UUID) error
}

// Service handles the ad lifecycle
type Service struct {
	store   store.Store
	rewards SaleRewarder
	storage storage.Remover
	now     func() time.Time
}

// NewService creates a new marketplace service
func NewService(s store.Store, rewards SaleRewarder, remover storage.Remover) *Service {
	if remover == nil {
		remover = storage.Noop{}
	}
	return &Service{
		store:   s,
		rewards: rewards,
		storage: remover,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateAdRequest represents a request to publish an ad
type CreateAdRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  uuid.UUID       `json:"category_id" binding:"required"`
	TierID      uuid.UUID       `json:"tier_id" binding:"required"`
	Images      []string        `json:"images"`
}

// UpdateAdRequest carries the editable ad fields
type UpdateAdRequest struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
}

// ListResponse is a page of listed ads
type ListResponse struct {
	Ads        []models.ListedAd `json:"ads"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// Tiers returns the purchasable visibility tiers
func (s *Service) Tiers(ctx context.Context) ([]models.AdTier, error) {
	tiers, err := s.store.ListAdTiers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	if tiers == nil {
		tiers = []models.AdTier{}
	}
	return tiers, nil
}

// Categories returns the active categories
func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if cats == nil {
		cats = []models.Category{}
	}
	return cats, nil
}

// cleanImages trims and drops blank paths. A path listed twice, in the input
// or already on the ad, is rejected: removing one copy deletes the shared object.
func cleanImages(in []string, existing []string) ([]string, error) {
	seen := make(map[string]bool, len(in)+len(existing))
	for _, img := range existing {
		seen[img] = true
	}
	out := make([]string, 0, len(in))
	for _, img := range in {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		if seen[img] {
			return nil, ErrDuplicateImage
		}
		seen[img] = true
		out = append(out, img)
	}
	return out, nil
}

// CreateAd publishes an ad. Free tiers go live immediately; paid tiers wait for payment.
func (s *Service) CreateAd(ctx context.Context, ownerID uuid.UUID, req *CreateAdRequest) (*models.Ad, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}

	tier, err := s.store.GetAdTier(ctx, req.TierID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	if !tier.Active {
		return nil, ErrTierInactive
	}
	if _, err := s.store.GetCategory(ctx, req.CategoryID); errors.Is(err, store.ErrNotFound) {
		return nil, ErrCategoryNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	images, err := cleanImages(req.Images, nil)
	if err != nil {
		return nil, err
	}
	if len(images) > tier.MaxPhotos {
		return nil, ErrTooManyImages
	}

	now := s.now()
	ad := &models.Ad{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		TierID:      tier.ID,
		Images:      images,
		Status:      models.AdStatusPendingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if tier.Price.IsZero() {
		expires := now.AddDate(0, 0, tier.DurationDays)
		ad.Status = models.AdStatusActive
		ad.ExpiresAt = &expires
	}

	if err := s.store.InsertAd(ctx, ad); err != nil {
		return nil, fmt.Errorf("failed to create ad: %w", err)
	}
	monitoring.RecordAdTransition(string(ad.Status))
	return ad, nil
}

// GetAd returns an ad unless it was deleted
func (s *Service) GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	ad, err := s.store.GetAd(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAdNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad: %w", err)
	}
	if ad.Status == models.AdStatusDeleted {
		return nil, ErrAdNotFound
	}
	return ad, nil
}

// mutate locks an ad in a transaction, checks ownership unless admin, applies fn and saves
func (s *Service) mutate(ctx context.Context, actorID, adID uuid.UUID, admin bool, fn func(q store.Queries, ad *models.Ad) error) (*models.Ad, error) {
	var out *models.Ad
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		ad, err := q.GetAdForUpdate(ctx, adID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAdNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get ad: %w", err)
		}
		if !admin && ad.OwnerID != actorID {
			return ErrNotOwner
		}
		if err := fn(q, ad); err != nil {
			return err
		}
		ad.UpdatedAt = s.now()
		if err := q.UpdateAd(ctx, ad); err != nil {
			return fmt.Errorf("failed to update ad: %w", err)
		}
		out = ad
		return nil
	})
	return out, err
}

func (s *Service) transition(ad *models.Ad, to models.AdStatus) error {
	if !CanTransition(ad.Status, to) {
		return ErrInvalidTransition
	}
	ad.Status = to
	return nil
}

// ActivateAd confirms payment for a pending ad and starts its tier period
func (s *Service) ActivateAd(ctx context.Context, adID uuid.UUID) (*models.Ad, error) {
	ad, err := s.mutate(ctx, uuid.Nil, adID, true, func(q store.Queries, ad *models.Ad) error {
		if ad.Status != models.AdStatusPendingPayment {
			return ErrInvalidTransition
		}
		tier, err := q.GetAdTier(ctx, ad.TierID)
		if err != nil {
			return fmt.Errorf("failed to get tier: %w", err)
		}
		expires := s.now().AddDate(0, 0, tier.DurationDays)
		ad.ExpiresAt = &expires
		return s.transition(ad, models.AdStatusActive)
	})
	if err != nil {
		return nil, err
	}
	monitoring.RecordAdTransition(string(ad.Status))
	return ad, nil
}

// UpdateAd edits an ad the owner still controls
func (s *Service) UpdateAd(ctx context.Context, ownerID, adID uuid.UUID, req *UpdateAdRequest) (*models.Ad, error) {
	return s.mutate(ctx, ownerID, adID, false, func(q store.Queries, ad *models.Ad) error {
		if ad.Status == models.AdStatusSold || ad.Status == models.AdStatusDeleted {
			return ErrInvalidTransition
		}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return ErrInvalidTitle
			}
			ad.Title = title
		}
		if req.Description != nil {
			ad.Description = strings.TrimSpace(*req.Description)
		}
		if req.Price != nil {
			if req.Price.IsNegative() {
				return ErrInvalidPrice
			}
			ad.Price = *req.Price
		}
		if req.CategoryID != nil {
			if _, err := q.GetCategory(ctx, *req.CategoryID); errors.Is(err, store.ErrNotFound) {
				return ErrCategoryNotFound
			} else if err != nil {
				return err
			}
			ad.CategoryID = *req.CategoryID
		}
		return nil
	})
}

// AddImages appends images up to the tier's photo limit
func (s *Service) AddImages(ctx context.Context, ownerID, adID uuid.UUID, images []string) (*models.Ad, error) {
	return s.mutate(ctx, ownerID, adID, false, func(q store.Queries, ad *models.Ad) error {
		if ad.Status == models.AdStatusSold || ad.Status == models.AdStatusDeleted {
			return ErrInvalidTransition
		}
		added, err := cleanImages(images, ad.Images)
		if err != nil {
			return err
		}
		tier, err := q.GetAdTier(ctx, ad.TierID)
		if err != nil {
			return fmt.Errorf("failed to get tier: %w", err)
		}
		if len(ad.Images)+len(added) > tier.MaxPhotos {
			return ErrTooManyImages
		}
		ad.Images = append(ad.Images, added...)
		return nil
	})
}

// RemoveImage detaches an image and deletes the stored object best-effort
func (s *Service) RemoveImage(ctx context.Context, ownerID, adID uuid.UUID, image string) (*models.Ad, error) {
	ad, err := s.mutate(ctx, ownerID, adID, false, func(q store.Queries, ad *models.Ad) error {
		idx := -1
		for i, img := range ad.Images {
			if img == image {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrImageNotFound
		}
		ad.Images = append(ad.Images[:idx], ad.Images[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.storage.Remove(ctx, image); err != nil {
		logging.LogSoftFailure(err, "marketplace", "remove_image", map[string]any{
			"ad_id": adID.String(),
			"image": image,
		})
	}
	return ad, nil
}

// DeleteAd soft-deletes an ad. Deleting a deleted ad succeeds without change.
func (s *Service) DeleteAd(ctx context.Context, actorID, adID uuid.UUID, admin bool) (*models.Ad, error) {
	ad, err := s.mutate(ctx, actorID, adID, admin, func(q store.Queries, ad *models.Ad) error {
		if ad.Status == models.AdStatusDeleted {
			return nil
		}
		return s.transition(ad, models.AdStatusDeleted)
	})
	if err != nil {
		return nil, err
	}
	monitoring.RecordAdTransition(string(models.AdStatusDeleted))
	return ad, nil
}

// RenewAd reactivates an expired ad for RenewalPeriod, whatever its tier
func (s *Service) RenewAd(ctx context.Context, ownerID, adID uuid.UUID) (*models.Ad, error) {
	ad, err := s.mutate(ctx, ownerID, adID, false, func(q store.Queries, ad *models.Ad) error {
		if ad.Status != models.AdStatusExpired {
			return ErrInvalidTransition
		}
		expires := s.now().Add(RenewalPeriod)
		ad.ExpiresAt = &expires
		return s.transition(ad, models.AdStatusActive)
	})
	if err != nil {
		return nil, err
	}
	monitoring.RecordAdTransition(string(ad.Status))
	return ad, nil
}

// MarkSold closes an ad as sold. The seller's rewards run afterwards and their
// failure never fails the sale.
func (s *Service) MarkSold(ctx context.Context, ownerID, adID uuid.UUID) (*models.Ad, error) {
	ad, err := s.mutate(ctx, ownerID, adID, false, func(q store.Queries, ad *models.Ad) error {
		if err := s.transition(ad, models.AdStatusSold); err != nil {
			return err
		}
		soldAt := s.now()
		ad.SoldAt = &soldAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	monitoring.RecordAdTransition(string(ad.Status))

	if s.rewards != nil {
		if err := s.rewards.OnAdSold(ctx, ad.OwnerID, ad.ID); err != nil {
			logging.LogSoftFailure(err, "marketplace", "sale_rewards", map[string]any{
				"ad_id":     ad.ID.String(),
				"seller_id": ad.OwnerID.String(),
			})
		}
	}
	return ad, nil
}

// ExpireDue expires every active ad whose period has ended
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireAds(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.RecordAdsExpired(n)
		log.Info().Int64("count", n).Msg("Expired marketplace ads")
	}
	return n, nil
}

// ListAds returns live ads. Status is forced to active.
func (s *Service) ListAds(ctx context.Context, f models.AdFilter, page, pageSize int) (*ListResponse, error) {
	f.Status = models.AdStatusActive
	return s.list(ctx, f, page, pageSize)
}

// OwnerAds lists a member's own ads in one status
func (s *Service) OwnerAds(ctx context.Context, ownerID uuid.UUID, status models.AdStatus, page, pageSize int) (*ListResponse, error) {
	if status == "" {
		status = models.AdStatusActive
	}
	if _, ok := transitions[status]; !ok {
		return nil, ErrUnknownStatus
	}
	return s.list(ctx, models.AdFilter{Status: status, OwnerID: &ownerID}, page, pageSize)
}

func (s *Service) list(ctx context.Context, f models.AdFilter, page, pageSize int) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize

	ads, total, err := s.store.ListAds(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list ads: %w", err)
	}
	if ads == nil {
		ads = []models.ListedAd{}
	}
	return &ListResponse{
		Ads:        ads,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}
