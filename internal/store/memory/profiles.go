package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
)

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	defer s.lockWrite()()

	if _, ok := s.d.profiles[p.ID]; ok {
		return store.ErrConflict
	}
	for _, existing := range s.d.profiles {
		if existing.Slug == p.Slug {
			return store.ErrConflict
		}
	}
	s.d.nextPublicID++
	p.PublicID = s.d.nextPublicID
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	s.d.profiles[p.ID] = *p
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProfileBySlug(ctx context.Context, slug string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.d.profiles {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	defer s.lockWrite()()

	cur, ok := s.d.profiles[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	for id, existing := range s.d.profiles {
		if id != p.ID && existing.Slug == p.Slug {
			return store.ErrConflict
		}
	}
	cur.DisplayName = p.DisplayName
	cur.AvatarURL = p.AvatarURL
	cur.Slug = p.Slug
	cur.Plan = p.Plan
	cur.Status = p.Status
	cur.UpdatedAt = p.UpdatedAt
	s.d.profiles[p.ID] = cur
	return nil
}

func (s *Store) SetProfileRank(ctx context.Context, profileID uuid.UUID, rankID *uuid.UUID) error {
	defer s.lockWrite()()
	p, ok := s.d.profiles[profileID]
	if !ok {
		return store.ErrNotFound
	}
	p.CurrentRankID = rankID
	s.d.profiles[profileID] = p
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []models.LeaderboardEntry
	for _, p := range s.d.profiles {
		if p.Status != models.ProfileStatusActive {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			ProfileID:   p.ID,
			PublicID:    p.PublicID,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
			Slug:        p.Slug,
			TotalPoints: s.d.totals[p.ID].TotalPoints,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].PublicID < entries[j].PublicID
	})
	return page(entries, limit, 0), nil
}
