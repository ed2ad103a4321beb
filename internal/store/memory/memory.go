// Package memory implements store.Store in process memory. It backs unit
// tests and STORE_DRIVER=memory local runs; data does not survive a restart.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
	"github.com/shopspring/decimal"
)

type data struct {
	nextPublicID int64

	profiles        map[uuid.UUID]models.Profile
	ranks           map[uuid.UUID]models.Rank
	medals          map[uuid.UUID]models.Medal
	earned          map[uuid.UUID]models.EarnedMedal
	totals          map[uuid.UUID]models.UserGamification
	events          []models.PointsEvent
	tiers           map[uuid.UUID]models.AdTier
	categories      map[uuid.UUID]models.Category
	ads             map[uuid.UUID]models.Ad
	withdrawals     map[uuid.UUID]models.WithdrawalRequest
	commissions     map[uuid.UUID]models.ReferralCommission
	notifications   []models.Notification
	posts           map[uuid.UUID]models.Post
	postRewards     map[string]models.PostReward
	projects        map[uuid.UUID]models.Project
	proposals       map[uuid.UUID]models.Proposal
	confraternities map[uuid.UUID]models.Confraternity
	settings        map[string]string
}

func newData() *data {
	return &data{
		profiles:        make(map[uuid.UUID]models.Profile),
		ranks:           make(map[uuid.UUID]models.Rank),
		medals:          make(map[uuid.UUID]models.Medal),
		earned:          make(map[uuid.UUID]models.EarnedMedal),
		totals:          make(map[uuid.UUID]models.UserGamification),
		tiers:           make(map[uuid.UUID]models.AdTier),
		categories:      make(map[uuid.UUID]models.Category),
		ads:             make(map[uuid.UUID]models.Ad),
		withdrawals:     make(map[uuid.UUID]models.WithdrawalRequest),
		commissions:     make(map[uuid.UUID]models.ReferralCommission),
		posts:           make(map[uuid.UUID]models.Post),
		postRewards:     make(map[string]models.PostReward),
		projects:        make(map[uuid.UUID]models.Project),
		proposals:       make(map[uuid.UUID]models.Proposal),
		confraternities: make(map[uuid.UUID]models.Confraternity),
		settings:        make(map[string]string),
	}
}

func (d *data) clone() *data {
	c := &data{
		nextPublicID:    d.nextPublicID,
		profiles:        maps.Clone(d.profiles),
		ranks:           maps.Clone(d.ranks),
		medals:          maps.Clone(d.medals),
		earned:          maps.Clone(d.earned),
		totals:          maps.Clone(d.totals),
		events:          append([]models.PointsEvent(nil), d.events...),
		tiers:           maps.Clone(d.tiers),
		categories:      maps.Clone(d.categories),
		ads:             make(map[uuid.UUID]models.Ad, len(d.ads)),
		withdrawals:     maps.Clone(d.withdrawals),
		commissions:     maps.Clone(d.commissions),
		notifications:   append([]models.Notification(nil), d.notifications...),
		posts:           maps.Clone(d.posts),
		postRewards:     maps.Clone(d.postRewards),
		projects:        maps.Clone(d.projects),
		proposals:       maps.Clone(d.proposals),
		confraternities: maps.Clone(d.confraternities),
		settings:        maps.Clone(d.settings),
	}
	for id, ad := range d.ads {
		c.ads[id] = copyAd(ad)
	}
	return c
}

// Store is an in-memory store.Store. Transactions are serialized and roll
// back by restoring a snapshot taken when they began. Writes made outside a
// transaction wait for the open one to finish, so a rollback never drops them.
type Store struct {
	*state
	tx bool
}

type state struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *data
}

var _ store.Store = (*Store)(nil)

// New returns a store seeded with the same reference data as the migrations.
func New() *Store {
	s := &Store{state: &state{d: newData()}}
	s.seed()
	return s
}

func (s *Store) seed() {
	for k, v := range map[string]string{
		"points_per_sale":       "100",
		"points_ad_sold":        "50",
		"points_post_validated": "20",
		"points_confraternity":  "50",
	} {
		s.d.settings[k] = v
	}

	firstSale := models.Medal{
		ID:           uuid.New(),
		Code:         models.MedalFirstSale,
		Name:         "Primeira Venda",
		Description:  "Vendeu o primeiro item no marketplace",
		Category:     "marketplace",
		PointsReward: 100,
		Active:       true,
	}
	s.d.medals[firstSale.ID] = firstSale

	for _, t := range []models.AdTier{
		{Level: models.TierBasico, Name: "Básico", Price: decimal.Zero, DurationDays: 30, MaxPhotos: 3, PositionBoost: 0},
		{Level: models.TierElite, Name: "Elite", Price: decimal.RequireFromString("29.90"), DurationDays: 45, MaxPhotos: 8, PositionBoost: 10},
		{Level: models.TierLendario, Name: "Lendário", Price: decimal.RequireFromString("79.90"), DurationDays: 60, MaxPhotos: 15, PositionBoost: 30},
	} {
		t.ID = uuid.New()
		t.Active = true
		s.d.tiers[t.ID] = t
	}
}

// PutCategory adds or replaces a marketplace category.
func (s *Store) PutCategory(c models.Category) {
	defer s.lockWrite()()
	s.d.categories[c.ID] = c
}

// PutAdTier adds or replaces an ad tier.
func (s *Store) PutAdTier(t models.AdTier) {
	defer s.lockWrite()()
	s.d.tiers[t.ID] = t
}

// TierByLevel returns the seeded tier for level.
func (s *Store) TierByLevel(level models.TierLevel) models.AdTier {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.d.tiers {
		if t.Level == level {
			return t
		}
	}
	return models.AdTier{}
}

// WithTx runs fn with a transaction view of the store; an error restores the snapshot.
func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	if s.tx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(&Store{state: s.state, tx: true}); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite locks the data for a write and returns the unlock. Outside a
// transaction it also holds txMu until the write is done.
func (s *Store) lockWrite() func() {
	if s.tx {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// Ping only fails when ctx is done
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func now() time.Time {
	return time.Now().UTC()
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func copyAd(a models.Ad) models.Ad {
	a.Images = append([]string(nil), a.Images...)
	return a
}
