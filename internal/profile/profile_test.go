package profile

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type staticRanks []models.Rank

func (r staticRanks) Ranks(context.Context) ([]models.Rank, error) { return r, nil }

func firstMatch(ranks []models.Rank, points int64) *models.Rank {
	var best *models.Rank
	for i := range ranks {
		if ranks[i].PointsRequired <= points && (best == nil || ranks[i].Level > best.Level) {
			best = &ranks[i]
		}
	}
	return best
}

func newTestService() (*Service, *memory.Store) {
	st := memory.New()
	ranks := staticRanks{
		{ID: uuid.New(), Level: 1, Name: "Recruta", PointsRequired: 0},
		{ID: uuid.New(), Level: 2, Name: "Cabo", PointsRequired: 100},
	}
	return NewService(st, ranks, firstMatch), st
}

// TestProperty_Slugify_ProducesValidSlugs tests slug generation
// *For any* display name with at least three alphanumerics, Slugify SHALL
// produce a slug that passes ValidSlug.
func TestProperty_Slugify_ProducesValidSlugs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z0-9 .!_-]{0,80}`).Draw(rt, "name")
		slug := Slugify(name)

		alnum := 0
		for _, r := range strings.ToLower(name) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				alnum++
			}
		}
		if alnum >= 3 && !ValidSlug(slug) {
			t.Fatalf("PROPERTY VIOLATION: %q slugified to invalid %q", name, slug)
		}
		if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") || strings.Contains(slug, "--") {
			t.Fatalf("PROPERTY VIOLATION: %q has stray hyphens", slug)
		}
	})
}

func TestCreateAndGet(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()
	id := uuid.New()

	p, err := svc.Create(ctx, &CreateRequest{ID: id, DisplayName: "João da Silva"})
	require.NoError(t, err)
	assert.Equal(t, "jo-o-da-silva", p.Slug)
	assert.Equal(t, models.PlanRecruta, p.Plan)
	assert.NotZero(t, p.PublicID)

	_, err = st.AddPoints(ctx, id, 150, p.CreatedAt)
	require.NoError(t, err)

	v, err := svc.GetBySlug(ctx, "JO-O-DA-SILVA")
	require.NoError(t, err)
	assert.Equal(t, int64(150), v.TotalPoints)
	require.NotNil(t, v.Rank)
	assert.Equal(t, "Cabo", v.Rank.Name)

	_, err = svc.Create(ctx, &CreateRequest{ID: id, DisplayName: "Outro"})
	assert.ErrorIs(t, err, ErrProfileExists)
}

func TestCreateRejectsDuplicateSlug(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateRequest{ID: uuid.New(), DisplayName: "Ana", Slug: "ana-souza"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &CreateRequest{ID: uuid.New(), DisplayName: "Ana", Slug: "ana-souza"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = svc.Create(ctx, &CreateRequest{ID: uuid.New(), DisplayName: "Ana", Slug: "Ana Souza"})
	assert.ErrorIs(t, err, ErrInvalidSlug)

	_, err = svc.Create(ctx, &CreateRequest{ID: uuid.New(), DisplayName: "Ana", Plan: "gold"})
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, &CreateRequest{ID: uuid.New(), DisplayName: "Alpha", Slug: "alpha"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{ID: uuid.New(), DisplayName: "Bravo", Slug: "bravo"})
	require.NoError(t, err)

	taken := "bravo"
	_, err = svc.Update(ctx, a.ID, &UpdateRequest{Slug: &taken})
	assert.ErrorIs(t, err, ErrSlugTaken)

	name := "Alpha Prime"
	avatar := "https://cdn.example.com/a.png"
	updated, err := svc.Update(ctx, a.ID, &UpdateRequest{DisplayName: &name, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Alpha Prime", updated.DisplayName)
	require.NotNil(t, updated.AvatarURL)

	blank := " "
	_, err = svc.Update(ctx, a.ID, &UpdateRequest{DisplayName: &blank})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.Update(ctx, uuid.New(), &UpdateRequest{})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestAdminPlanAndStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, &CreateRequest{ID: uuid.New(), DisplayName: "Carlos"})
	require.NoError(t, err)

	p, err = svc.SetPlan(ctx, p.ID, models.PlanElite)
	require.NoError(t, err)
	assert.Equal(t, models.PlanElite, p.Plan)

	p, err = svc.SetStatus(ctx, p.ID, models.ProfileStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.ProfileStatusSuspended, p.Status)

	_, err = svc.SetStatus(ctx, p.ID, "deleted")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
