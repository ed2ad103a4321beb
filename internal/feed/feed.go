// Package feed implements the members' social feed and its post validation.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/gamification"
	"github.com/rotaclub/rota/internal/logging"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/notification"
	"github.com/rotaclub/rota/internal/settings"
	"github.com/rotaclub/rota/internal/store"
)

const maxContentLength = 5000

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrEmptyPost        = errors.New("post needs content or an image")
	ErrContentTooLong   = errors.New("post content is too long")
	ErrNotAuthor        = errors.New("post belongs to another member")
	ErrPostNotPending   = errors.New("post is not awaiting validation")
	ErrInvalidStatusArg = errors.New("invalid validation status filter")
)

// Service handles feed posts
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a new feed service
func NewService(s store.Store) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreatePostRequest represents a new feed post
type CreatePostRequest struct {
	Content         string     `json:"content"`
	ImageURL        *string    `json:"image_url,omitempty"`
	MedalID         *uuid.UUID `json:"medal_id,omitempty"`
	ConfraternityID *uuid.UUID `json:"confraternity_id,omitempty"`
	ProjectID       *uuid.UUID `json:"project_id,omitempty"`
}

// FeedResponse is a page of posts
type FeedResponse struct {
	Posts      []models.Post `json:"posts"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

func hasLinks(p *models.Post) bool {
	return p.MedalID != nil || p.ConfraternityID != nil || p.ProjectID != nil
}

// verifyLinks reports whether the author actually holds every linked achievement
func verifyLinks(ctx context.Context, q store.Queries, p *models.Post) (bool, error) {
	if p.MedalID != nil {
		held, err := q.HasMedal(ctx, p.AuthorID, *p.MedalID)
		if err != nil || !held {
			return false, err
		}
	}
	if p.ConfraternityID != nil {
		c, err := q.GetConfraternity(ctx, *p.ConfraternityID)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if c.Status != models.ConfraternityCompleted || (c.HostID != p.AuthorID && c.GuestID != p.AuthorID) {
			return false, nil
		}
	}
	if p.ProjectID != nil {
		proj, err := q.GetProject(ctx, *p.ProjectID)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		provider := proj.ProviderID != nil && *proj.ProviderID == p.AuthorID
		if proj.OwnerID != p.AuthorID && !provider {
			return false, nil
		}
	}
	return true, nil
}

func linkKeys(p *models.Post) []string {
	var keys []string
	if p.MedalID != nil {
		keys = append(keys, "medal:"+p.MedalID.String())
	}
	if p.ConfraternityID != nil {
		keys = append(keys, "confraternity:"+p.ConfraternityID.String())
	}
	if p.ProjectID != nil {
		keys = append(keys, "project:"+p.ProjectID.String())
	}
	return keys
}

// awardValidated grants points_post_validated for an approved post through q.
// An author is paid once per linked item; a post whose links were all
// rewarded before stays approved and earns nothing.
func awardValidated(ctx context.Context, q store.Queries, p *models.Post, at time.Time) error {
	fresh := false
	for _, key := range linkKeys(p) {
		claimed, err := q.ClaimPostReward(ctx, &models.PostReward{
			ProfileID: p.AuthorID,
			LinkKey:   key,
			PostID:    p.ID,
			CreatedAt: at,
		})
		if err != nil {
			return err
		}
		fresh = fresh || claimed
	}
	if !fresh {
		return nil
	}

	amount, err := settings.ReadInt(ctx, q, settings.PointsPostValidated, settings.Defaults[settings.PointsPostValidated])
	if err != nil || amount == 0 {
		return err
	}
	_, err = gamification.AwardWithin(ctx, q, gamification.Award{
		ProfileID:   p.AuthorID,
		Amount:      amount,
		ActionType:  models.ActionPostValidated,
		Description: "Publicação validada",
		Metadata:    map[string]any{"post_id": p.ID.String()},
	}, at)
	return err
}

// CreatePost publishes a post. Posts whose links the author verifiably holds
// are approved at once and earn points; unverifiable links wait for review.
func (s *Service) CreatePost(ctx context.Context, authorID uuid.UUID, req *CreatePostRequest) (*models.Post, error) {
	content := strings.TrimSpace(req.Content)
	var image *string
	if req.ImageURL != nil && strings.TrimSpace(*req.ImageURL) != "" {
		img := strings.TrimSpace(*req.ImageURL)
		image = &img
	}
	if content == "" && image == nil {
		return nil, ErrEmptyPost
	}
	if len(content) > maxContentLength {
		return nil, ErrContentTooLong
	}

	now := s.now()
	post := &models.Post{
		ID:               uuid.New(),
		AuthorID:         authorID,
		Content:          content,
		ImageURL:         image,
		MedalID:          req.MedalID,
		ConfraternityID:  req.ConfraternityID,
		ProjectID:        req.ProjectID,
		ValidationStatus: models.ValidationNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if hasLinks(post) {
		post.ValidationStatus = models.ValidationPending
		verified, err := verifyLinks(ctx, s.store, post)
		if err != nil {
			return nil, fmt.Errorf("failed to verify post links: %w", err)
		}
		if verified {
			post.ValidationStatus = models.ValidationApproved
		}
	}

	if err := s.store.InsertPost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if post.ValidationStatus == models.ValidationApproved {
		err := s.store.WithTx(ctx, func(q store.Queries) error {
			return awardValidated(ctx, q, post, now)
		})
		if err != nil {
			logging.LogSoftFailure(err, "feed", "auto_validate_points", map[string]any{
				"post_id":   post.ID.String(),
				"author_id": authorID.String(),
			})
		}
	}
	return post, nil
}

// ValidatePost resolves a pending post. Approval awards the author's points
// in the same transaction.
func (s *Service) ValidatePost(ctx context.Context, postID uuid.UUID, approve bool) (*models.Post, error) {
	var out *models.Post
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		post, err := q.GetPostForUpdate(ctx, postID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get post: %w", err)
		}
		if post.Deleted {
			return ErrPostNotFound
		}
		if post.ValidationStatus != models.ValidationPending {
			return ErrPostNotPending
		}

		now := s.now()
		title := "Publicação recusada"
		post.ValidationStatus = models.ValidationRejected
		if approve {
			title = "Publicação validada"
			post.ValidationStatus = models.ValidationApproved
		}
		post.UpdatedAt = now
		if err := q.UpdatePost(ctx, post); err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}
		if approve {
			if err := awardValidated(ctx, q, post, now); err != nil {
				return err
			}
		}

		link := "/feed"
		n := notification.New(post.AuthorID, models.NotificationPostReviewed, title, "Sua publicação foi revisada.", &link)
		if err := notification.Insert(ctx, q, n); err != nil {
			return err
		}
		out = post
		return nil
	})
	return out, err
}

// DeletePost soft-deletes a post. Only its author or an admin may delete it.
func (s *Service) DeletePost(ctx context.Context, actorID, postID uuid.UUID, admin bool) error {
	return s.store.WithTx(ctx, func(q store.Queries) error {
		post, err := q.GetPostForUpdate(ctx, postID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get post: %w", err)
		}
		if !admin && post.AuthorID != actorID {
			return ErrNotAuthor
		}
		if post.Deleted {
			return nil
		}
		post.Deleted = true
		post.UpdatedAt = s.now()
		if err := q.UpdatePost(ctx, post); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		return nil
	})
}

// ListPosts returns the feed newest first. Without a status filter rejected
// posts are hidden; deleted posts never show.
func (s *Service) ListPosts(ctx context.Context, f models.PostFilter, page, pageSize int) (*FeedResponse, error) {
	switch f.ValidationStatus {
	case "", models.ValidationNone, models.ValidationPending, models.ValidationApproved, models.ValidationRejected:
	default:
		return nil, ErrInvalidStatusArg
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize

	posts, total, err := s.store.ListPosts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &FeedResponse{
		Posts:      posts,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}
