package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
)

func (s *Store) ListAdTiers(ctx context.Context, activeOnly bool) ([]models.AdTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tiers []models.AdTier
	for _, t := range s.d.tiers {
		if activeOnly && !t.Active {
			continue
		}
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].PositionBoost < tiers[j].PositionBoost })
	return tiers, nil
}

func (s *Store) GetAdTier(ctx context.Context, id uuid.UUID) (*models.AdTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.d.tiers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cats []models.Category
	for _, c := range s.d.categories {
		if c.Active {
			cats = append(cats, c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) InsertAd(ctx context.Context, ad *models.Ad) error {
	defer s.lockWrite()()
	if _, ok := s.d.ads[ad.ID]; ok {
		return store.ErrConflict
	}
	s.d.ads[ad.ID] = copyAd(*ad)
	return nil
}

func (s *Store) GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad, ok := s.d.ads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	ad = copyAd(ad)
	return &ad, nil
}

// GetAdForUpdate needs no lock of its own; WithTx already serializes.
func (s *Store) GetAdForUpdate(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	return s.GetAd(ctx, id)
}

func (s *Store) UpdateAd(ctx context.Context, ad *models.Ad) error {
	defer s.lockWrite()()
	cur, ok := s.d.ads[ad.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := copyAd(*ad)
	updated.OwnerID = cur.OwnerID
	updated.CreatedAt = cur.CreatedAt
	s.d.ads[ad.ID] = updated
	return nil
}

func (s *Store) ListAds(ctx context.Context, f models.AdFilter) ([]models.ListedAd, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []models.ListedAd
	for _, ad := range s.d.ads {
		if ad.Status != f.Status {
			continue
		}
		if f.CategoryID != nil && ad.CategoryID != *f.CategoryID {
			continue
		}
		if f.OwnerID != nil && ad.OwnerID != *f.OwnerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(ad.Title), search) &&
			!strings.Contains(strings.ToLower(ad.Description), search) {
			continue
		}
		tier, ok := s.d.tiers[ad.TierID]
		if !ok {
			continue
		}
		out = append(out, models.ListedAd{Ad: copyAd(ad), PositionBoost: tier.PositionBoost, TierLevel: tier.Level})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PositionBoost != out[j].PositionBoost {
			return out[i].PositionBoost > out[j].PositionBoost
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (s *Store) ExpireAds(ctx context.Context, at time.Time) (int64, error) {
	defer s.lockWrite()()

	var n int64
	for id, ad := range s.d.ads {
		if ad.Status == models.AdStatusActive && ad.ExpiresAt != nil && !ad.ExpiresAt.After(at) {
			ad.Status = models.AdStatusExpired
			ad.UpdatedAt = at
			s.d.ads[id] = ad
			n++
		}
	}
	return n, nil
}
