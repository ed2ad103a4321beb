package server

import (
	"errors"

	"github.com/rotaclub/rota/internal/confraria"
	apierrors "github.com/rotaclub/rota/internal/errors"
	"github.com/rotaclub/rota/internal/feed"
	"github.com/rotaclub/rota/internal/gamification"
	"github.com/rotaclub/rota/internal/marketplace"
	"github.com/rotaclub/rota/internal/notification"
	"github.com/rotaclub/rota/internal/payout"
	"github.com/rotaclub/rota/internal/profile"
	"github.com/rotaclub/rota/internal/proposal"
	"github.com/rotaclub/rota/internal/settings"
)

type errorRule struct {
	targets []error
	build   func(err error) *apierrors.APIError
}

func notFound(resource string) func(error) *apierrors.APIError {
	return func(error) *apierrors.APIError { return apierrors.NewNotFoundError(resource) }
}

func notOwner(err error) *apierrors.APIError {
	return apierrors.ErrNotOwnerError.WithMessage(err.Error())
}

func validation(err error) *apierrors.APIError {
	return apierrors.NewValidationError(err.Error())
}

func conflict(err error) *apierrors.APIError {
	return apierrors.NewConflictError(err.Error())
}

func invalidState(err error) *apierrors.APIError {
	return apierrors.NewInvalidStateError(err.Error())
}

var errorRules = []errorRule{
	{[]error{gamification.ErrProfileNotFound, profile.ErrProfileNotFound}, notFound("Profile")},
	{[]error{marketplace.ErrAdNotFound}, notFound("Ad")},
	{[]error{marketplace.ErrTierNotFound}, notFound("Ad tier")},
	{[]error{marketplace.ErrCategoryNotFound}, notFound("Category")},
	{[]error{marketplace.ErrImageNotFound}, notFound("Image")},
	{[]error{gamification.ErrMedalNotFound}, notFound("Medal")},
	{[]error{gamification.ErrRankNotFound}, notFound("Rank")},
	{[]error{payout.ErrWithdrawalNotFound}, notFound("Withdrawal")},
	{[]error{payout.ErrCommissionNotFound}, notFound("Commission")},
	{[]error{feed.ErrPostNotFound}, notFound("Post")},
	{[]error{proposal.ErrProjectNotFound}, notFound("Project")},
	{[]error{proposal.ErrProposalNotFound}, notFound("Proposal")},
	{[]error{confraria.ErrNotFound}, notFound("Confraternity")},
	{[]error{notification.ErrNotificationNotFound}, notFound("Notification")},

	{[]error{
		marketplace.ErrNotOwner, feed.ErrNotAuthor, proposal.ErrNotProjectOwner,
		confraria.ErrNotParticipant, confraria.ErrNotGuest,
	}, notOwner},

	{[]error{
		marketplace.ErrInvalidTransition, marketplace.ErrTierInactive,
		payout.ErrWithdrawalNotPending, payout.ErrCommissionNotPending,
		feed.ErrPostNotPending,
		proposal.ErrProjectNotOpen, proposal.ErrProposalNotPending, proposal.ErrProjectState,
		confraria.ErrNotScheduled,
	}, invalidState},

	{[]error{
		profile.ErrProfileExists, profile.ErrSlugTaken,
		gamification.ErrRankLevelTaken, gamification.ErrMedalCodeTaken,
		payout.ErrPendingWithdrawal, proposal.ErrDuplicateProposal,
		marketplace.ErrDuplicateImage,
	}, conflict},

	{[]error{marketplace.ErrTooManyImages}, func(err error) *apierrors.APIError {
		return apierrors.NewLimitExceededError(err.Error())
	}},
	{[]error{payout.ErrInsufficientBalance}, func(err error) *apierrors.APIError {
		return apierrors.NewInsufficientBalanceError(err.Error())
	}},

	{[]error{
		profile.ErrInvalidSlug, profile.ErrInvalidName, profile.ErrInvalidPlan, profile.ErrInvalidStatus,
		gamification.ErrZeroAmount, gamification.ErrMissingAction, gamification.ErrRankOrder,
		gamification.ErrInvalidRank, gamification.ErrInvalidMedal,
		marketplace.ErrInvalidTitle, marketplace.ErrInvalidPrice, marketplace.ErrUnknownStatus,
		payout.ErrBelowMinimumThreshold, payout.ErrMissingPixKey, payout.ErrInvalidPixKeyType,
		payout.ErrMissingProof, payout.ErrMissingReason, payout.ErrInvalidCommission,
		feed.ErrEmptyPost, feed.ErrContentTooLong, feed.ErrInvalidStatusArg,
		proposal.ErrOwnProject, proposal.ErrInvalidProject, proposal.ErrInvalidAmount,
		confraria.ErrSelfMeetup, confraria.ErrMissingDate,
		notification.ErrMissingFields,
		settings.ErrUnknownKey, settings.ErrInvalidValue,
	}, validation},
}

// mapError translates a domain error into the API error catalog
func mapError(err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, rule := range errorRules {
		for _, target := range rule.targets {
			if errors.Is(err, target) {
				return rule.build(err)
			}
		}
	}
	return apierrors.ErrInternalServerError
}
