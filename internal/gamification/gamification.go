// Package gamification keeps the vigor points ledger, ranks and medals.
package gamification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/cache"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rotaclub/rota/internal/notification"
	"github.com/rotaclub/rota/internal/settings"
	"github.com/rotaclub/rota/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrZeroAmount      = errors.New("points amount must not be zero")
	ErrMissingAction   = errors.New("action type is required")
	ErrMedalNotFound   = errors.New("medal not found")
	ErrRankNotFound    = errors.New("rank not found")
	ErrRankLevelTaken  = errors.New("another rank already uses this level")
	ErrRankOrder       = errors.New("rank thresholds must increase with level")
	ErrInvalidRank     = errors.New("rank needs a positive level, a name and a non-negative threshold")
	ErrMedalCodeTaken  = errors.New("another medal already uses this code")
	ErrInvalidMedal    = errors.New("medal needs a code and a name")
)

const ranksCacheKey = "gamification:ranks"

// Service handles the points ledger, ranks and medals
type Service struct {
	store    store.Store
	cache    cache.Cache
	settings *settings.Service
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService creates a new gamification service
func NewService(s store.Store, c cache.Cache, settingsSvc *settings.Service, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		store:    s,
		cache:    c,
		settings: settingsSvc,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Award describes a points grant before the plan multiplier is applied
type Award struct {
	ProfileID   uuid.UUID
	Amount      int64
	ActionType  string
	Description string
	Metadata    map[string]any
	// Exact books Amount as given, skipping the plan multiplier
	Exact bool
}

// Multiplier returns the vigor multiplier of a plan. Unknown plans earn 1x.
func Multiplier(plan models.Plan) decimal.Decimal {
	switch plan {
	case models.PlanVeterano:
		return decimal.RequireFromString("1.5")
	case models.PlanElite:
		return decimal.NewFromInt(3)
	default:
		return decimal.NewFromInt(1)
	}
}

// ApplyMultiplier scales base by the plan multiplier, rounding half away from zero
func ApplyMultiplier(base int64, plan models.Plan) int64 {
	return decimal.NewFromInt(base).Mul(Multiplier(plan)).Round(0).IntPart()
}

// ResolveRank returns the highest rank whose threshold is at or below points,
// or nil when none qualifies. ranks may be in any order.
func ResolveRank(ranks []models.Rank, points int64) *models.Rank {
	var best *models.Rank
	for i := range ranks {
		r := &ranks[i]
		if r.PointsRequired > points {
			continue
		}
		if best == nil || r.Level > best.Level {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// NextRank returns the lowest rank whose threshold is above points
func NextRank(ranks []models.Rank, points int64) *models.Rank {
	var next *models.Rank
	for i := range ranks {
		r := &ranks[i]
		if r.PointsRequired <= points {
			continue
		}
		if next == nil || r.Level < next.Level {
			next = r
		}
	}
	if next == nil {
		return nil
	}
	out := *next
	return &out
}

// Progress returns how far points is between the current and next rank, 0..100.
// It is 100 when there is no next rank.
func Progress(current, next *models.Rank, points int64) float64 {
	if next == nil {
		return 100
	}
	var floor int64
	if current != nil {
		floor = current.PointsRequired
	}
	span := next.PointsRequired - floor
	if span <= 0 {
		return 100
	}
	pct := decimal.NewFromInt(points - floor).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(span)).
		Round(2)
	f, _ := pct.Float64()
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return f
}

// SeasonMonth formats t as the YYYY-MM season scope of earned medals
func SeasonMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// MonthStart returns the first instant of t's UTC month
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AwardWithin records an award through q. The caller owns the transaction.
func AwardWithin(ctx context.Context, q store.Queries, a Award, at time.Time) (*models.PointsEvent, error) {
	if a.Amount == 0 {
		return nil, ErrZeroAmount
	}
	if strings.TrimSpace(a.ActionType) == "" {
		return nil, ErrMissingAction
	}

	profile, err := q.GetProfile(ctx, a.ProfileID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	multiplier := Multiplier(profile.Plan)
	if a.Exact {
		multiplier = decimal.NewFromInt(1)
	}
	amount := a.Amount
	if !a.Exact {
		amount = ApplyMultiplier(a.Amount, profile.Plan)
	}
	metadata := make(map[string]any, len(a.Metadata)+2)
	for k, v := range a.Metadata {
		metadata[k] = v
	}
	metadata["base_amount"] = a.Amount
	metadata["multiplier"] = multiplier.String()

	event := &models.PointsEvent{
		ID:          uuid.New(),
		ProfileID:   a.ProfileID,
		Amount:      amount,
		ActionType:  a.ActionType,
		Description: a.Description,
		Metadata:    metadata,
		CreatedAt:   at,
	}
	if err := q.InsertPointsEvent(ctx, event); err != nil {
		return nil, err
	}

	total, err := q.AddPoints(ctx, a.ProfileID, event.Amount, at)
	if err != nil {
		return nil, err
	}

	ranks, err := q.ListRanks(ctx)
	if err != nil {
		return nil, err
	}
	var rankID *uuid.UUID
	if r := ResolveRank(ranks, total); r != nil {
		rankID = &r.ID
	}
	if !sameRank(profile.CurrentRankID, rankID) {
		if err := q.SetProfileRank(ctx, a.ProfileID, rankID); err != nil {
			return nil, err
		}
	}

	monitoring.RecordPointsAwarded(event.ActionType, event.Amount)
	return event, nil
}

func sameRank(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AwardPoints records an award in its own transaction
func (s *Service) AwardPoints(ctx context.Context, a Award) (*models.PointsEvent, error) {
	var event *models.PointsEvent
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		event, err = AwardWithin(ctx, q, a, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("profile_id", a.ProfileID.String()).
		Str("action_type", a.ActionType).
		Int64("amount", event.Amount).
		Msg("Points awarded")
	return event, nil
}

// AwardSetting awards the current value of a point setting. A zero setting awards nothing.
func (s *Service) AwardSetting(ctx context.Context, profileID uuid.UUID, key, actionType, description string, metadata map[string]any) (*models.PointsEvent, error) {
	amount, err := s.settings.Points(ctx, key)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, nil
	}
	return s.AwardPoints(ctx, Award{
		ProfileID:   profileID,
		Amount:      amount,
		ActionType:  actionType,
		Description: description,
		Metadata:    metadata,
	})
}

// Summary is a profile's gamification dashboard
type Summary struct {
	ProfileID       uuid.UUID         `json:"profile_id"`
	Plan            models.Plan       `json:"plan"`
	Multiplier      decimal.Decimal   `json:"multiplier"`
	TotalPoints     int64             `json:"total_points"`
	MonthlyVigor    int64             `json:"monthly_vigor"`
	CurrentRank     *models.Rank      `json:"current_rank"`
	NextRank        *models.Rank      `json:"next_rank"`
	ProgressPercent float64           `json:"progress_percent"`
	Medals          []EarnedMedalView `json:"medals"`
}

// EarnedMedalView joins an earned medal with its definition
type EarnedMedalView struct {
	models.EarnedMedal
	Medal *models.Medal `json:"medal,omitempty"`
}

// Summary returns total and monthly points, rank progress and earned medals
func (s *Service) Summary(ctx context.Context, profileID uuid.UUID) (*Summary, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	total, err := s.store.GetTotalPoints(ctx, profileID)
	if err != nil {
		return nil, err
	}
	monthly, err := s.store.SumPointsSince(ctx, profileID, MonthStart(s.now()))
	if err != nil {
		return nil, err
	}
	ranks, err := s.Ranks(ctx)
	if err != nil {
		return nil, err
	}
	medals, err := s.EarnedMedals(ctx, profileID)
	if err != nil {
		return nil, err
	}

	current := ResolveRank(ranks, total)
	next := NextRank(ranks, total)
	return &Summary{
		ProfileID:       profileID,
		Plan:            profile.Plan,
		Multiplier:      Multiplier(profile.Plan),
		TotalPoints:     total,
		MonthlyVigor:    monthly,
		CurrentRank:     current,
		NextRank:        next,
		ProgressPercent: Progress(current, next, total),
		Medals:          medals,
	}, nil
}

// EarnedMedals lists a profile's medals, newest first
func (s *Service) EarnedMedals(ctx context.Context, profileID uuid.UUID) ([]EarnedMedalView, error) {
	earned, err := s.store.ListEarnedMedals(ctx, profileID)
	if err != nil {
		return nil, err
	}
	defs, err := s.store.ListMedals(ctx, false)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Medal, len(defs))
	for _, m := range defs {
		byID[m.ID] = m
	}

	out := make([]EarnedMedalView, 0, len(earned))
	for _, e := range earned {
		view := EarnedMedalView{EarnedMedal: e}
		if m, ok := byID[e.MedalID]; ok {
			view.Medal = &m
		}
		out = append(out, view)
	}
	return out, nil
}

// HistoryResponse is a page of ledger events
type HistoryResponse struct {
	Events     []models.PointsEvent `json:"events"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}

// History returns a profile's ledger, newest first
func (s *Service) History(ctx context.Context, profileID uuid.UUID, page, pageSize int) (*HistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	events, total, err := s.store.ListPointsEvents(ctx, profileID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.PointsEvent{}
	}
	return &HistoryResponse{
		Events:     events,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Leaderboard returns profiles by total points with their derived rank
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	entries, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	ranks, err := s.Ranks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = ResolveRank(ranks, entries[i].TotalPoints)
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return entries, nil
}

// Ranks returns the rank table ordered by level, served from cache when possible
func (s *Service) Ranks(ctx context.Context) ([]models.Rank, error) {
	var ranks []models.Rank
	ok, err := s.cache.GetJSON(ctx, ranksCacheKey, &ranks)
	if err != nil {
		log.Warn().Err(err).Msg("Rank cache read failed")
	}
	if ok {
		return ranks, nil
	}

	ranks, err = s.store.ListRanks(ctx)
	if err != nil {
		return nil, err
	}
	if ranks == nil {
		ranks = []models.Rank{}
	}
	if err := s.cache.SetJSON(ctx, ranksCacheKey, ranks, s.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("Rank cache write failed")
	}
	return ranks, nil
}

func (s *Service) invalidateRanks(ctx context.Context) {
	if err := s.cache.Delete(ctx, ranksCacheKey); err != nil {
		log.Warn().Err(err).Msg("Rank cache invalidation failed")
	}
}

// SaveRank creates or replaces a rank. Thresholds must stay ordered by level.
func (s *Service) SaveRank(ctx context.Context, r *models.Rank) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Level <= 0 || r.Name == "" || r.PointsRequired < 0 {
		return ErrInvalidRank
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	err := s.store.WithTx(ctx, func(q store.Queries) error {
		ranks, err := q.ListRanks(ctx)
		if err != nil {
			return err
		}
		others := ranks[:0]
		for _, existing := range ranks {
			if existing.ID != r.ID {
				others = append(others, existing)
			}
		}
		if err := checkOrder(append(others, *r)); err != nil {
			return err
		}
		return q.SaveRank(ctx, r)
	})
	if errors.Is(err, store.ErrConflict) {
		return ErrRankLevelTaken
	}
	if err != nil {
		return err
	}
	s.invalidateRanks(ctx)
	return nil
}

func checkOrder(ranks []models.Rank) error {
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].Level < ranks[j].Level })
	for i := 1; i < len(ranks); i++ {
		if ranks[i].Level == ranks[i-1].Level {
			return ErrRankLevelTaken
		}
		if ranks[i].PointsRequired <= ranks[i-1].PointsRequired {
			return ErrRankOrder
		}
	}
	return nil
}

// DeleteRank removes a rank; profiles caching it fall back to none until their next award
func (s *Service) DeleteRank(ctx context.Context, id uuid.UUID) error {
	err := s.store.DeleteRank(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrRankNotFound
	}
	if err != nil {
		return err
	}
	s.invalidateRanks(ctx)
	return nil
}

// Medals lists medal definitions
func (s *Service) Medals(ctx context.Context, activeOnly bool) ([]models.Medal, error) {
	medals, err := s.store.ListMedals(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if medals == nil {
		medals = []models.Medal{}
	}
	return medals, nil
}

// SaveMedal creates or replaces a medal definition
func (s *Service) SaveMedal(ctx context.Context, m *models.Medal) error {
	m.Code = strings.TrimSpace(m.Code)
	m.Name = strings.TrimSpace(m.Name)
	if m.Code == "" || m.Name == "" {
		return ErrInvalidMedal
	}
	if m.PointsReward < 0 {
		return ErrInvalidMedal
	}
	if m.Category == "" {
		m.Category = "general"
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := s.store.SaveMedal(ctx, m)
	if errors.Is(err, store.ErrConflict) {
		return ErrMedalCodeTaken
	}
	return err
}

// AwardMedal grants a medal for the current season month. It reports false
// when the medal is inactive or already held this month.
func (s *Service) AwardMedal(ctx context.Context, profileID uuid.UUID, code string) (bool, error) {
	medal, err := s.store.GetMedalByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrMedalNotFound
	}
	if err != nil {
		return false, err
	}
	if !medal.Active {
		return false, nil
	}

	var earned bool
	err = s.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		earned, err = AwardMedalWithin(ctx, q, profileID, medal, s.now())
		return err
	})
	if err != nil {
		return false, err
	}
	if earned {
		monitoring.RecordMedalEarned(medal.Code)
		log.Info().
			Str("profile_id", profileID.String()).
			Str("medal", medal.Code).
			Msg("Medal earned")
	}
	return earned, nil
}

// AwardMedalWithin grants medal through q, awarding its points and notifying the profile
func AwardMedalWithin(ctx context.Context, q store.Queries, profileID uuid.UUID, medal *models.Medal, at time.Time) (bool, error) {
	if _, err := q.GetProfile(ctx, profileID); errors.Is(err, store.ErrNotFound) {
		return false, ErrProfileNotFound
	} else if err != nil {
		return false, err
	}

	inserted, err := q.InsertEarnedMedal(ctx, &models.EarnedMedal{
		ID:          uuid.New(),
		ProfileID:   profileID,
		MedalID:     medal.ID,
		SeasonMonth: SeasonMonth(at),
		EarnedAt:    at,
	})
	if err != nil || !inserted {
		return false, err
	}

	if medal.PointsReward > 0 {
		_, err := AwardWithin(ctx, q, Award{
			ProfileID:   profileID,
			Amount:      medal.PointsReward,
			ActionType:  models.ActionMedalEarned,
			Description: "Medalha conquistada: " + medal.Name,
			Metadata:    map[string]any{"medal_id": medal.ID.String(), "medal_code": medal.Code},
		}, at)
		if err != nil {
			return false, err
		}
	}

	link := "/perfil/medalhas"
	n := notification.New(profileID, models.NotificationMedalEarned, "Nova medalha!", "Você conquistou a medalha "+medal.Name, &link)
	if err := notification.Insert(ctx, q, n); err != nil {
		return false, err
	}
	return true, nil
}

// OnAdSold rewards a seller: the ad-sold points, plus the first-sale medal if
// the seller has never held it. Errors are returned for the caller to log.
func (s *Service) OnAdSold(ctx context.Context, sellerID, adID uuid.UUID) error {
	var errs []error

	_, err := s.AwardSetting(ctx, sellerID, settings.PointsAdSold, models.ActionAdSold,
		"Venda no marketplace", map[string]any{"ad_id": adID.String()})
	if err != nil {
		errs = append(errs, fmt.Errorf("ad sold points: %w", err))
	}

	medal, err := s.store.GetMedalByCode(ctx, models.MedalFirstSale)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		errs = append(errs, fmt.Errorf("first sale medal: %w", err))
	default:
		held, err := s.store.HasMedal(ctx, sellerID, medal.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("first sale medal: %w", err))
		} else if !held {
			if _, err := s.AwardMedal(ctx, sellerID, models.MedalFirstSale); err != nil {
				errs = append(errs, fmt.Errorf("first sale medal: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}
