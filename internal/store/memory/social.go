package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
)

func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	defer s.lockWrite()()
	s.d.notifications = append(s.d.notifications, *n)
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Notification
	for i := len(s.d.notifications) - 1; i >= 0; i-- {
		n := s.d.notifications[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	defer s.lockWrite()()
	for i, n := range s.d.notifications {
		if n.ID == id && n.UserID == userID {
			s.d.notifications[i].Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) InsertPost(ctx context.Context, p *models.Post) error {
	defer s.lockWrite()()
	if _, ok := s.d.posts[p.ID]; ok {
		return store.ErrConflict
	}
	s.d.posts[p.ID] = *p
	return nil
}

func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetPostForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.GetPost(ctx, id)
}

func (s *Store) ClaimPostReward(ctx context.Context, r *models.PostReward) (bool, error) {
	defer s.lockWrite()()
	key := r.ProfileID.String() + "|" + r.LinkKey
	if _, ok := s.d.postRewards[key]; ok {
		return false, nil
	}
	s.d.postRewards[key] = *r
	return true, nil
}

func (s *Store) UpdatePost(ctx context.Context, p *models.Post) error {
	defer s.lockWrite()()
	cur, ok := s.d.posts[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Content = p.Content
	cur.ImageURL = p.ImageURL
	cur.ValidationStatus = p.ValidationStatus
	cur.Deleted = p.Deleted
	cur.UpdatedAt = p.UpdatedAt
	s.d.posts[p.ID] = cur
	return nil
}

func (s *Store) ListPosts(ctx context.Context, f models.PostFilter) ([]models.Post, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Post
	for _, p := range s.d.posts {
		if p.Deleted {
			continue
		}
		if f.AuthorID != nil && p.AuthorID != *f.AuthorID {
			continue
		}
		if f.ValidationStatus != "" {
			if p.ValidationStatus != f.ValidationStatus {
				continue
			}
		} else if p.ValidationStatus == models.ValidationRejected {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (s *Store) InsertProject(ctx context.Context, p *models.Project) error {
	defer s.lockWrite()()
	if _, ok := s.d.projects[p.ID]; ok {
		return store.ErrConflict
	}
	s.d.projects[p.ID] = *p
	return nil
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProjectForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.GetProject(ctx, id)
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	defer s.lockWrite()()
	cur, ok := s.d.projects[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := *p
	updated.OwnerID = cur.OwnerID
	updated.CreatedAt = cur.CreatedAt
	s.d.projects[p.ID] = updated
	return nil
}

func (s *Store) InsertProposal(ctx context.Context, p *models.Proposal) error {
	defer s.lockWrite()()
	if _, ok := s.d.proposals[p.ID]; ok {
		return store.ErrConflict
	}
	s.d.proposals[p.ID] = *p
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.proposals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return s.GetProposal(ctx, id)
}

func (s *Store) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	defer s.lockWrite()()
	cur, ok := s.d.proposals[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Status = p.Status
	cur.RespondedAt = p.RespondedAt
	s.d.proposals[p.ID] = cur
	return nil
}

func (s *Store) ListProposals(ctx context.Context, projectID uuid.UUID) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Proposal
	for _, p := range s.d.proposals {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) HasPendingProposal(ctx context.Context, projectID, providerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.d.proposals {
		if p.ProjectID == projectID && p.ProviderID == providerID && p.Status == models.ProposalStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RejectPendingProposals(ctx context.Context, projectID, exceptID uuid.UUID, at time.Time) (int64, error) {
	defer s.lockWrite()()

	var n int64
	for id, p := range s.d.proposals {
		if p.ProjectID != projectID || id == exceptID || p.Status != models.ProposalStatusPending {
			continue
		}
		t := at
		p.Status = models.ProposalStatusRejected
		p.RespondedAt = &t
		s.d.proposals[id] = p
		n++
	}
	return n, nil
}

func (s *Store) InsertConfraternity(ctx context.Context, c *models.Confraternity) error {
	defer s.lockWrite()()
	if _, ok := s.d.confraternities[c.ID]; ok {
		return store.ErrConflict
	}
	s.d.confraternities[c.ID] = *c
	return nil
}

func (s *Store) GetConfraternity(ctx context.Context, id uuid.UUID) (*models.Confraternity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.confraternities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetConfraternityForUpdate(ctx context.Context, id uuid.UUID) (*models.Confraternity, error) {
	return s.GetConfraternity(ctx, id)
}

func (s *Store) UpdateConfraternity(ctx context.Context, c *models.Confraternity) error {
	defer s.lockWrite()()
	cur, ok := s.d.confraternities[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.ScheduledFor = c.ScheduledFor
	cur.Location = c.Location
	cur.Status = c.Status
	cur.CompletedAt = c.CompletedAt
	s.d.confraternities[c.ID] = cur
	return nil
}
