package postgres

import (
	"context"
	"fmt"
)

func (q *queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := q.db.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value); err != nil {
		return "", notFound(err)
	}
	return value, nil
}

func (q *queries) PutSetting(ctx context.Context, key, value string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}
