package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrMissingFields        = errors.New("notification needs a user, a type and a title")
)

// Service handles in-app notifications
type Service struct {
	store store.Store
}

// NewService creates a new notification service
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// New builds a notification ready for insertion
func New(userID uuid.UUID, kind, title, message string, link *string) *models.Notification {
	return &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: time.Now().UTC(),
	}
}

// Insert writes n through q so it can share a caller's transaction
func Insert(ctx context.Context, q store.SocialQueries, n *models.Notification) error {
	if n.UserID == uuid.Nil || strings.TrimSpace(n.Type) == "" || strings.TrimSpace(n.Title) == "" {
		return ErrMissingFields
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := q.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// Notify inserts a notification outside any transaction
func (s *Service) Notify(ctx context.Context, n *models.Notification) error {
	return Insert(ctx, s.store, n)
}

// List returns the newest notifications of a user
func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	items, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// MarkRead flags one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	err := s.store.MarkNotificationRead(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
