// Package store defines the persistence contract shared by every domain
// service. Implementations live in store/postgres and store/memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Queries is the full set of reads and writes. The same interface is used
// inside and outside a transaction.
type Queries interface {
	ProfileQueries
	GamificationQueries
	MarketplaceQueries
	PayoutQueries
	SocialQueries
	SettingsQueries
}

// Store is a Queries bound to a connection that can open transactions.
type Store interface {
	Queries
	// WithTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}

type ProfileQueries interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetProfileBySlug(ctx context.Context, slug string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
	SetProfileRank(ctx context.Context, profileID uuid.UUID, rankID *uuid.UUID) error
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type GamificationQueries interface {
	ListRanks(ctx context.Context) ([]models.Rank, error)
	SaveRank(ctx context.Context, r *models.Rank) error
	DeleteRank(ctx context.Context, id uuid.UUID) error

	ListMedals(ctx context.Context, activeOnly bool) ([]models.Medal, error)
	GetMedal(ctx context.Context, id uuid.UUID) (*models.Medal, error)
	GetMedalByCode(ctx context.Context, code string) (*models.Medal, error)
	SaveMedal(ctx context.Context, m *models.Medal) error
	// InsertEarnedMedal reports false when the profile already holds the
	// medal for that season month.
	InsertEarnedMedal(ctx context.Context, e *models.EarnedMedal) (bool, error)
	ListEarnedMedals(ctx context.Context, profileID uuid.UUID) ([]models.EarnedMedal, error)
	HasMedal(ctx context.Context, profileID, medalID uuid.UUID) (bool, error)

	InsertPointsEvent(ctx context.Context, e *models.PointsEvent) error
	// AddPoints increments the cumulative total and returns the new value.
	AddPoints(ctx context.Context, profileID uuid.UUID, delta int64, at time.Time) (int64, error)
	GetTotalPoints(ctx context.Context, profileID uuid.UUID) (int64, error)
	SumPointsSince(ctx context.Context, profileID uuid.UUID, since time.Time) (int64, error)
	ListPointsEvents(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]models.PointsEvent, int, error)
}

type MarketplaceQueries interface {
	ListAdTiers(ctx context.Context, activeOnly bool) ([]models.AdTier, error)
	GetAdTier(ctx context.Context, id uuid.UUID) (*models.AdTier, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)

	InsertAd(ctx context.Context, ad *models.Ad) error
	GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error)
	// GetAdForUpdate locks the row for the rest of the transaction.
	GetAdForUpdate(ctx context.Context, id uuid.UUID) (*models.Ad, error)
	UpdateAd(ctx context.Context, ad *models.Ad) error
	ListAds(ctx context.Context, f models.AdFilter) ([]models.ListedAd, int, error)
	// ExpireAds flips every active ad whose expiry is not after now.
	ExpireAds(ctx context.Context, now time.Time) (int64, error)
}

type PayoutQueries interface {
	InsertWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	// GetWithdrawalForUpdate locks the row for the rest of the transaction.
	GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error
	ListWithdrawals(ctx context.Context, f models.WithdrawalFilter) ([]models.WithdrawalRequest, int, error)

	InsertCommission(ctx context.Context, c *models.ReferralCommission) error
	GetCommission(ctx context.Context, id uuid.UUID) (*models.ReferralCommission, error)
	UpdateCommission(ctx context.Context, c *models.ReferralCommission) error
	// ListCommissions returns every status when status is empty.
	ListCommissions(ctx context.Context, referrerID uuid.UUID, status models.CommissionStatus) ([]models.ReferralCommission, error)
	// PayAvailableCommissions marks every available commission of the
	// referrer as paid and returns the rows it changed.
	PayAvailableCommissions(ctx context.Context, referrerID, withdrawalID uuid.UUID, paidAt time.Time) ([]models.ReferralCommission, error)
}

type SocialQueries interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error

	InsertPost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetPostForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error)
	UpdatePost(ctx context.Context, p *models.Post) error
	ListPosts(ctx context.Context, f models.PostFilter) ([]models.Post, int, error)
	// ClaimPostReward reports false when the author was already rewarded
	// for posting that link.
	ClaimPostReward(ctx context.Context, r *models.PostReward) (bool, error)

	InsertProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	InsertProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	UpdateProposal(ctx context.Context, p *models.Proposal) error
	ListProposals(ctx context.Context, projectID uuid.UUID) ([]models.Proposal, error)
	HasPendingProposal(ctx context.Context, projectID, providerID uuid.UUID) (bool, error)
	RejectPendingProposals(ctx context.Context, projectID, exceptID uuid.UUID, at time.Time) (int64, error)

	InsertConfraternity(ctx context.Context, c *models.Confraternity) error
	GetConfraternity(ctx context.Context, id uuid.UUID) (*models.Confraternity, error)
	GetConfraternityForUpdate(ctx context.Context, id uuid.UUID) (*models.Confraternity, error)
	UpdateConfraternity(ctx context.Context, c *models.Confraternity) error
}

type SettingsQueries interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}
