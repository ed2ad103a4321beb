package memory

import (
	"context"

	"github.com/rotaclub/rota/internal/store"
)

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.d.settings[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	defer s.lockWrite()()
	s.d.settings[key] = value
	return nil
}
