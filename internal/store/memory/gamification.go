package memory

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
)

func (s *Store) ListRanks(ctx context.Context) ([]models.Rank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranks := make([]models.Rank, 0, len(s.d.ranks))
	for _, r := range s.d.ranks {
		ranks = append(ranks, r)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].Level < ranks[j].Level })
	return ranks, nil
}

func (s *Store) SaveRank(ctx context.Context, r *models.Rank) error {
	defer s.lockWrite()()
	for id, existing := range s.d.ranks {
		if id != r.ID && existing.Level == r.Level {
			return store.ErrConflict
		}
	}
	s.d.ranks[r.ID] = *r
	return nil
}

func (s *Store) DeleteRank(ctx context.Context, id uuid.UUID) error {
	defer s.lockWrite()()
	if _, ok := s.d.ranks[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.d.ranks, id)
	for pid, p := range s.d.profiles {
		if p.CurrentRankID != nil && *p.CurrentRankID == id {
			p.CurrentRankID = nil
			s.d.profiles[pid] = p
		}
	}
	return nil
}

func (s *Store) ListMedals(ctx context.Context, activeOnly bool) ([]models.Medal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var medals []models.Medal
	for _, m := range s.d.medals {
		if activeOnly && !m.Active {
			continue
		}
		medals = append(medals, m)
	}
	sort.Slice(medals, func(i, j int) bool {
		if medals[i].Category != medals[j].Category {
			return medals[i].Category < medals[j].Category
		}
		return medals[i].Name < medals[j].Name
	})
	return medals, nil
}

func (s *Store) GetMedal(ctx context.Context, id uuid.UUID) (*models.Medal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.d.medals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) GetMedalByCode(ctx context.Context, code string) (*models.Medal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.d.medals {
		if m.Code == code {
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SaveMedal(ctx context.Context, m *models.Medal) error {
	defer s.lockWrite()()
	for id, existing := range s.d.medals {
		if id != m.ID && existing.Code == m.Code {
			return store.ErrConflict
		}
	}
	s.d.medals[m.ID] = *m
	return nil
}

func (s *Store) InsertEarnedMedal(ctx context.Context, e *models.EarnedMedal) (bool, error) {
	defer s.lockWrite()()
	for _, existing := range s.d.earned {
		if existing.ProfileID == e.ProfileID && existing.MedalID == e.MedalID && existing.SeasonMonth == e.SeasonMonth {
			return false, nil
		}
	}
	s.d.earned[e.ID] = *e
	return true, nil
}

func (s *Store) ListEarnedMedals(ctx context.Context, profileID uuid.UUID) ([]models.EarnedMedal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.EarnedMedal
	for _, e := range s.d.earned {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarnedAt.After(out[j].EarnedAt) })
	return out, nil
}

func (s *Store) HasMedal(ctx context.Context, profileID, medalID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.d.earned {
		if e.ProfileID == profileID && e.MedalID == medalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertPointsEvent(ctx context.Context, e *models.PointsEvent) error {
	defer s.lockWrite()()
	ev := *e
	ev.Metadata = maps.Clone(e.Metadata)
	s.d.events = append(s.d.events, ev)
	return nil
}

func (s *Store) AddPoints(ctx context.Context, profileID uuid.UUID, delta int64, at time.Time) (int64, error) {
	defer s.lockWrite()()
	g := s.d.totals[profileID]
	g.ProfileID = profileID
	g.TotalPoints += delta
	g.UpdatedAt = at
	s.d.totals[profileID] = g
	return g.TotalPoints, nil
}

func (s *Store) GetTotalPoints(ctx context.Context, profileID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.totals[profileID].TotalPoints, nil
}

func (s *Store) SumPointsSince(ctx context.Context, profileID uuid.UUID, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.d.events {
		if e.ProfileID == profileID && !e.CreatedAt.Before(since) {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (s *Store) ListPointsEvents(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]models.PointsEvent, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.PointsEvent
	for i := len(s.d.events) - 1; i >= 0; i-- {
		if e := s.d.events[i]; e.ProfileID == profileID {
			e.Metadata = maps.Clone(e.Metadata)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), len(out), nil
}
