// Package settings reads and writes admin-tunable values such as point rewards.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotaclub/rota/internal/cache"
	"github.com/rotaclub/rota/internal/store"
	"github.com/rs/zerolog/log"
)

// Known keys
const (
	PointsPerSale       = "points_per_sale"
	PointsAdSold        = "points_ad_sold"
	PointsPostValidated = "points_post_validated"
	PointsConfraternity = "points_confraternity"
)

// Defaults used when a key has never been written
var Defaults = map[string]int64{
	PointsPerSale:       100,
	PointsAdSold:        50,
	PointsPostValidated: 20,
	PointsConfraternity: 50,
}

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("setting value must be a non-negative integer")
)

// Service handles app settings
type Service struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewService creates a new settings service
func NewService(s store.Store, c cache.Cache, ttl time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{store: s, cache: c, ttl: ttl}
}

func cacheKey(key string) string {
	return "settings:" + key
}

// Int returns the integer value of key, falling back to def when unset or unparsable
func (s *Service) Int(ctx context.Context, key string, def int64) (int64, error) {
	var cached int64
	if ok, err := s.cache.GetJSON(ctx, cacheKey(key), &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Settings cache read failed")
	}

	v, err := ReadInt(ctx, s.store, key, def)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetJSON(ctx, cacheKey(key), v, s.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Settings cache write failed")
	}
	return v, nil
}

// Points returns a known point setting with its default
func (s *Service) Points(ctx context.Context, key string) (int64, error) {
	return s.Int(ctx, key, Defaults[key])
}

// Set stores value for a known key and drops the cached copy
func (s *Service) Set(ctx context.Context, key, value string) error {
	if _, ok := Defaults[key]; !ok {
		return ErrUnknownKey
	}
	value = strings.TrimSpace(value)
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return ErrInvalidValue
	}
	if err := s.store.PutSetting(ctx, key, value); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	if err := s.cache.Delete(ctx, cacheKey(key)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Settings cache invalidation failed")
	}
	return nil
}

// All returns every known key with its effective value
func (s *Service) All(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Defaults))
	for key, def := range Defaults {
		v, err := s.Int(ctx, key, def)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// ReadInt reads key through q, bypassing the cache. It is used inside
// transactions so the value matches the rest of the transaction.
func ReadInt(ctx context.Context, q store.SettingsQueries, key string, def int64) (int64, error) {
	raw, err := q.GetSetting(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Setting is not an integer, using default")
		return def, nil
	}
	return n, nil
}
