package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
)

const profileColumns = `id, public_id, display_name, avatar_url, slug, plan, current_rank_id, status, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.PublicID, &p.DisplayName, &p.AvatarURL, &p.Slug, &p.Plan,
		&p.CurrentRankID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) CreateProfile(ctx context.Context, p *models.Profile) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO profiles (id, display_name, avatar_url, slug, plan, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING public_id, created_at, updated_at
	`, p.ID, p.DisplayName, p.AvatarURL, p.Slug, p.Plan, p.Status).Scan(&p.PublicID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return uniqueViolation(fmt.Errorf("failed to create profile: %w", err))
	}
	return nil
}

func (q *queries) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	p, err := scanProfile(q.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *queries) GetProfileBySlug(ctx context.Context, slug string) (*models.Profile, error) {
	p, err := scanProfile(q.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE slug = $1`, slug))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *queries) UpdateProfile(ctx context.Context, p *models.Profile) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE profiles
		SET display_name = $2, avatar_url = $3, slug = $4, plan = $5, status = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.DisplayName, p.AvatarURL, p.Slug, p.Plan, p.Status, p.UpdatedAt)
	if err != nil {
		return uniqueViolation(fmt.Errorf("failed to update profile: %w", err))
	}
	return requireRow(tag)
}

func (q *queries) SetProfileRank(ctx context.Context, profileID uuid.UUID, rankID *uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `UPDATE profiles SET current_rank_id = $2 WHERE id = $1`, profileID, rankID)
	if err != nil {
		return fmt.Errorf("failed to set profile rank: %w", err)
	}
	return requireRow(tag)
}

// Leaderboard returns profiles ordered by their stored total; rank is filled by the caller
func (q *queries) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	limit, _ = pageArgs(limit, 0)
	rows, err := q.db.Query(ctx, `
		SELECT p.id, p.public_id, p.display_name, p.avatar_url, p.slug, COALESCE(g.total_points, 0)
		FROM profiles p
		LEFT JOIN user_gamification g ON g.profile_id = p.id
		WHERE p.status = 'active'
		ORDER BY COALESCE(g.total_points, 0) DESC, p.public_id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.ProfileID, &e.PublicID, &e.DisplayName, &e.AvatarURL, &e.Slug, &e.TotalPoints); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
