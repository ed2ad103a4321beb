package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
)

func (q *queries) ListRanks(ctx context.Context) ([]models.Rank, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, level, name, points_required, icon, description
		FROM ranks ORDER BY level ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranks: %w", err)
	}
	defer rows.Close()

	var ranks []models.Rank
	for rows.Next() {
		var r models.Rank
		if err := rows.Scan(&r.ID, &r.Level, &r.Name, &r.PointsRequired, &r.Icon, &r.Description); err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		ranks = append(ranks, r)
	}
	return ranks, rows.Err()
}

func (q *queries) SaveRank(ctx context.Context, r *models.Rank) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO ranks (id, level, name, points_required, icon, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET level = EXCLUDED.level, name = EXCLUDED.name, points_required = EXCLUDED.points_required,
		    icon = EXCLUDED.icon, description = EXCLUDED.description
	`, r.ID, r.Level, r.Name, r.PointsRequired, r.Icon, r.Description)
	if err != nil {
		return uniqueViolation(fmt.Errorf("failed to save rank: %w", err))
	}
	return nil
}

func (q *queries) DeleteRank(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM ranks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rank: %w", err)
	}
	return requireRow(tag)
}

const medalColumns = `id, code, name, description, category, points_reward, active`

func scanMedal(row interface{ Scan(...any) error }) (*models.Medal, error) {
	var m models.Medal
	if err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.Category, &m.PointsReward, &m.Active); err != nil {
		return nil, err
	}
	return &m, nil
}

func (q *queries) ListMedals(ctx context.Context, activeOnly bool) ([]models.Medal, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+medalColumns+` FROM medals
		WHERE active OR NOT $1
		ORDER BY category, name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query medals: %w", err)
	}
	defer rows.Close()

	var medals []models.Medal
	for rows.Next() {
		m, err := scanMedal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medal: %w", err)
		}
		medals = append(medals, *m)
	}
	return medals, rows.Err()
}

func (q *queries) GetMedal(ctx context.Context, id uuid.UUID) (*models.Medal, error) {
	m, err := scanMedal(q.db.QueryRow(ctx, `SELECT `+medalColumns+` FROM medals WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (q *queries) GetMedalByCode(ctx context.Context, code string) (*models.Medal, error) {
	m, err := scanMedal(q.db.QueryRow(ctx, `SELECT `+medalColumns+` FROM medals WHERE code = $1`, code))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (q *queries) SaveMedal(ctx context.Context, m *models.Medal) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO medals (id, code, name, description, category, points_reward, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET code = EXCLUDED.code, name = EXCLUDED.name, description = EXCLUDED.description,
		    category = EXCLUDED.category, points_reward = EXCLUDED.points_reward, active = EXCLUDED.active
	`, m.ID, m.Code, m.Name, m.Description, m.Category, m.PointsReward, m.Active)
	if err != nil {
		return uniqueViolation(fmt.Errorf("failed to save medal: %w", err))
	}
	return nil
}

func (q *queries) InsertEarnedMedal(ctx context.Context, e *models.EarnedMedal) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO earned_medals (id, profile_id, medal_id, season_month, earned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (profile_id, medal_id, season_month) DO NOTHING
	`, e.ID, e.ProfileID, e.MedalID, e.SeasonMonth, e.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert earned medal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) ListEarnedMedals(ctx context.Context, profileID uuid.UUID) ([]models.EarnedMedal, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, profile_id, medal_id, season_month, earned_at
		FROM earned_medals WHERE profile_id = $1
		ORDER BY earned_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earned medals: %w", err)
	}
	defer rows.Close()

	var out []models.EarnedMedal
	for rows.Next() {
		var e models.EarnedMedal
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.MedalID, &e.SeasonMonth, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned medal: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) HasMedal(ctx context.Context, profileID, medalID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM earned_medals WHERE profile_id = $1 AND medal_id = $2)
	`, profileID, medalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check earned medal: %w", err)
	}
	return exists, nil
}

func (q *queries) InsertPointsEvent(ctx context.Context, e *models.PointsEvent) error {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO points_history (id, profile_id, amount, action_type, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ProfileID, e.Amount, e.ActionType, e.Description, metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert points event: %w", err)
	}
	return nil
}

func (q *queries) AddPoints(ctx context.Context, profileID uuid.UUID, delta int64, at time.Time) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		INSERT INTO user_gamification (profile_id, total_points, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id) DO UPDATE
		SET total_points = user_gamification.total_points + EXCLUDED.total_points,
		    updated_at = EXCLUDED.updated_at
		RETURNING total_points
	`, profileID, delta, at).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	return total, nil
}

func (q *queries) GetTotalPoints(ctx context.Context, profileID uuid.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE((SELECT total_points FROM user_gamification WHERE profile_id = $1), 0)
	`, profileID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to get total points: %w", err)
	}
	return total, nil
}

func (q *queries) SumPointsSince(ctx context.Context, profileID uuid.UUID, since time.Time) (int64, error) {
	var sum int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT FROM points_history
		WHERE profile_id = $1 AND created_at >= $2
	`, profileID, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return sum, nil
}

func (q *queries) ListPointsEvents(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]models.PointsEvent, int, error) {
	limit, offset = pageArgs(limit, offset)

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM points_history WHERE profile_id = $1`, profileID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count points events: %w", err)
	}

	rows, err := q.db.Query(ctx, `
		SELECT id, profile_id, amount, action_type, description, metadata, created_at
		FROM points_history
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, profileID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query points events: %w", err)
	}
	defer rows.Close()

	var events []models.PointsEvent
	for rows.Next() {
		var e models.PointsEvent
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Amount, &e.ActionType, &e.Description, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan points event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}
