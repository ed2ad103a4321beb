package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
)

const tierColumns = `id, level, name, price, duration_days, max_photos, position_boost, active`

func scanTier(row interface{ Scan(...any) error }) (*models.AdTier, error) {
	var t models.AdTier
	if err := row.Scan(&t.ID, &t.Level, &t.Name, &t.Price, &t.DurationDays, &t.MaxPhotos, &t.PositionBoost, &t.Active); err != nil {
		return nil, err
	}
	return &t, nil
}

func (q *queries) ListAdTiers(ctx context.Context, activeOnly bool) ([]models.AdTier, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+tierColumns+` FROM marketplace_ad_tiers
		WHERE active OR NOT $1
		ORDER BY position_boost ASC
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad tiers: %w", err)
	}
	defer rows.Close()

	var tiers []models.AdTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad tier: %w", err)
		}
		tiers = append(tiers, *t)
	}
	return tiers, rows.Err()
}

func (q *queries) GetAdTier(ctx context.Context, id uuid.UUID) (*models.AdTier, error) {
	t, err := scanTier(q.db.QueryRow(ctx, `SELECT `+tierColumns+` FROM marketplace_ad_tiers WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (q *queries) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, name, slug, active FROM marketplace_categories
		WHERE active ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (q *queries) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := q.db.QueryRow(ctx, `
		SELECT id, name, slug, active FROM marketplace_categories WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Slug, &c.Active)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

const adColumns = `a.id, a.owner_id, a.title, a.description, a.price, a.category_id, a.tier_id,
	a.images, a.status, a.created_at, a.updated_at, a.expires_at, a.sold_at`

func adDest(a *models.Ad) []any {
	return []any{&a.ID, &a.OwnerID, &a.Title, &a.Description, &a.Price, &a.CategoryID, &a.TierID,
		&a.Images, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.ExpiresAt, &a.SoldAt}
}

func (q *queries) InsertAd(ctx context.Context, ad *models.Ad) error {
	images := ad.Images
	if images == nil {
		images = []string{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO marketplace_ads (id, owner_id, title, description, price, category_id, tier_id,
		                             images, status, created_at, updated_at, expires_at, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, ad.ID, ad.OwnerID, ad.Title, ad.Description, ad.Price, ad.CategoryID, ad.TierID,
		images, ad.Status, ad.CreatedAt, ad.UpdatedAt, ad.ExpiresAt, ad.SoldAt)
	if err != nil {
		return fmt.Errorf("failed to insert ad: %w", err)
	}
	return nil
}

func (q *queries) GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	var a models.Ad
	err := q.db.QueryRow(ctx, `SELECT `+adColumns+` FROM marketplace_ads a WHERE a.id = $1`, id).Scan(adDest(&a)...)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (q *queries) GetAdForUpdate(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	var a models.Ad
	err := q.db.QueryRow(ctx, `SELECT `+adColumns+` FROM marketplace_ads a WHERE a.id = $1 FOR UPDATE`, id).Scan(adDest(&a)...)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (q *queries) UpdateAd(ctx context.Context, ad *models.Ad) error {
	images := ad.Images
	if images == nil {
		images = []string{}
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE marketplace_ads
		SET title = $2, description = $3, price = $4, category_id = $5, tier_id = $6, images = $7,
		    status = $8, updated_at = $9, expires_at = $10, sold_at = $11
		WHERE id = $1
	`, ad.ID, ad.Title, ad.Description, ad.Price, ad.CategoryID, ad.TierID, images,
		ad.Status, ad.UpdatedAt, ad.ExpiresAt, ad.SoldAt)
	if err != nil {
		return fmt.Errorf("failed to update ad: %w", err)
	}
	return requireRow(tag)
}

// ListAds orders by the tier's position boost, then newest first
func (q *queries) ListAds(ctx context.Context, f models.AdFilter) ([]models.ListedAd, int, error) {
	limit, offset := pageArgs(f.Limit, f.Offset)

	conds := []string{"a.status = $1"}
	args := []any{f.Status}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		conds = append(conds, fmt.Sprintf("a.category_id = $%d", len(args)))
	}
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		conds = append(conds, fmt.Sprintf("a.owner_id = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(a.title ILIKE $%d OR a.description ILIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM marketplace_ads a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ads: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := q.db.Query(ctx, `
		SELECT `+adColumns+`, t.position_boost, t.level
		FROM marketplace_ads a
		JOIN marketplace_ad_tiers t ON t.id = a.tier_id
		WHERE `+where+`
		ORDER BY t.position_boost DESC, a.created_at DESC
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query ads: %w", err)
	}
	defer rows.Close()

	var ads []models.ListedAd
	for rows.Next() {
		var la models.ListedAd
		dest := append(adDest(&la.Ad), &la.PositionBoost, &la.TierLevel)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, la)
	}
	return ads, total, rows.Err()
}

func (q *queries) ExpireAds(ctx context.Context, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE marketplace_ads
		SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire ads: %w", err)
	}
	return tag.RowsAffected(), nil
}
