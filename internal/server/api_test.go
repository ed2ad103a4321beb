package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/cache"
	"github.com/rotaclub/rota/internal/config"
	apierrors "github.com/rotaclub/rota/internal/errors"
	"github.com/rotaclub/rota/internal/marketplace"
	"github.com/rotaclub/rota/internal/middleware"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/payout"
	"github.com/rotaclub/rota/internal/storage"
	"github.com/rotaclub/rota/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret-key-for-jwt-testing-32chars"

type testAPI struct {
	router http.Handler
	st     *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := &config.Config{
		Server:      config.ServerConfig{Env: "test"},
		Redis:       config.RedisConfig{CacheTTL: time.Minute},
		JWT:         config.JWTConfig{Secret: testSecret, Issuer: "rota-auth", AdminRole: "admin"},
		Marketplace: config.MarketplaceConfig{ExpirySchedule: "@every 15m"},
		Payout:      config.PayoutConfig{MinimumWithdrawal: decimal.NewFromInt(50)},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
	st := memory.New()
	svc := NewServices(cfg, st, cache.NewMemory(), storage.Noop{})
	return &testAPI{router: NewAPIServer(cfg, svc).Router(), st: st}
}

// Helper function to create a test JWT token
func createTestJWTToken(subject uuid.UUID, role string) string {
	now := time.Now()
	claims := &middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    "rota-auth",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(testSecret))
	return tokenString
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testAPI) signup(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	token := createTestJWTToken(id, "member")
	w := a.do(t, http.MethodPost, "/api/v1/me", token, gin.H{"display_name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return id, token
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	api := newTestAPI(t)
	endpoints := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/me"},
		{http.MethodPost, "/api/v1/marketplace/ads"},
		{http.MethodGet, "/api/v1/payout/balance"},
		{http.MethodPost, "/api/v1/feed/posts"},
		{http.MethodGet, "/api/v1/admin/settings"},
	}
	for _, e := range endpoints {
		w := api.do(t, e.method, e.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", e.method, e.path)
	}

	for _, path := range []string{"/api/v1/marketplace/tiers", "/api/v1/marketplace/ads", "/api/v1/gamification/ranks", "/api/v1/feed"} {
		w := api.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	api := newTestAPI(t)
	_, memberToken := api.signup(t, "Joana Silva")

	w := api.do(t, http.MethodGet, "/api/v1/admin/settings", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminToken := createTestJWTToken(uuid.New(), "admin")
	w = api.do(t, http.MethodPut, "/api/v1/admin/settings/points_ad_sold", adminToken, gin.H{"value": 75})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/admin/settings", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]map[string]int64](t, w)
	assert.Equal(t, int64(75), body["settings"]["points_ad_sold"])

	w = api.do(t, http.MethodPut, "/api/v1/admin/settings/unknown_key", adminToken, gin.H{"value": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarketplaceFlow_CreateListSell(t *testing.T) {
	api := newTestAPI(t)
	sellerID, token := api.signup(t, "Carlos Motos")
	category := models.Category{ID: uuid.New(), Name: "Peças", Slug: "pecas", Active: true}
	api.st.PutCategory(category)

	w := api.do(t, http.MethodPost, "/api/v1/marketplace/ads", token, gin.H{
		"title":       "Capacete",
		"price":       "250.00",
		"category_id": category.ID,
		"tier_id":     api.st.TierByLevel(models.TierBasico).ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ad := decode[models.Ad](t, w)
	assert.Equal(t, models.AdStatusActive, ad.Status)

	w = api.do(t, http.MethodGet, "/api/v1/marketplace/ads", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[marketplace.ListResponse](t, w)
	require.Len(t, list.Ads, 1)
	assert.Equal(t, ad.ID, list.Ads[0].ID)

	_, strangerToken := api.signup(t, "Outro Membro")
	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/marketplace/ads/%s/sold", ad.ID), strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apierrors.ErrNotOwner, decode[apierrors.ErrorResponse](t, w).Error.Code)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/marketplace/ads/%s/sold", ad.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.AdStatusSold, decode[models.Ad](t, w).Status)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/marketplace/ads/%s/renew", ad.ID), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apierrors.ErrInvalidState, decode[apierrors.ErrorResponse](t, w).Error.Code)

	w = api.do(t, http.MethodGet, "/api/v1/me/gamification", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[map[string]any](t, w)
	assert.Equal(t, sellerID.String(), summary["profile_id"])
	assert.EqualValues(t, 150, summary["total_points"])
}

func TestMarketplace_ErrorMapping(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/marketplace/ads/"+uuid.New().String(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decode[apierrors.ErrorResponse](t, w)
	assert.Equal(t, apierrors.ErrNotFound, resp.Error.Code)
	assert.NotEmpty(t, resp.RequestID)

	w = api.do(t, http.MethodGet, "/api/v1/marketplace/ads/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, token := api.signup(t, "Membro Teste")
	w = api.do(t, http.MethodGet, "/api/v1/me/ads?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayoutFlow_RequestAndApprove(t *testing.T) {
	api := newTestAPI(t)
	memberID, token := api.signup(t, "Ana Indica")
	adminToken := createTestJWTToken(uuid.New(), "admin")

	w := api.do(t, http.MethodPost, "/api/v1/admin/commissions", adminToken, gin.H{
		"referrer_id": memberID,
		"referred_id": uuid.New(),
		"amount":      "60.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	commission := decode[models.ReferralCommission](t, w)

	withdrawal := gin.H{"amount": "60.00", "pix_key": "ana@example.com", "pix_key_type": "email"}
	w = api.do(t, http.MethodPost, "/api/v1/payout/withdrawals", token, withdrawal)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "pending commissions are not withdrawable")

	w = api.do(t, http.MethodPost, "/api/v1/admin/commissions/"+commission.ID.String()+"/release", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/v1/payout/withdrawals", token, withdrawal)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.WithdrawalRequest](t, w)

	w = api.do(t, http.MethodPost, "/api/v1/payout/withdrawals", token, withdrawal)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/admin/withdrawals/"+created.ID.String()+"/approve", adminToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "proof is required")

	w = api.do(t, http.MethodPost, "/api/v1/admin/withdrawals/"+created.ID.String()+"/approve", adminToken, gin.H{"proof_url": "https://cdn.example/proof.png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[payout.ApprovalResult](t, w)
	assert.Equal(t, models.WithdrawalStatusPaid, result.Withdrawal.Status)
	assert.Len(t, result.Commissions, 1)
	assert.Equal(t, int64(100), result.PointsAwarded)

	w = api.do(t, http.MethodGet, "/api/v1/payout/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	balance := decode[payout.Balance](t, w)
	assert.True(t, balance.Paid.Equal(decimal.NewFromInt(60)), balance.Paid.String())
	assert.True(t, balance.Available.IsZero())

	w = api.do(t, http.MethodGet, "/api/v1/me/notifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[map[string][]models.Notification](t, w)
	require.NotEmpty(t, notes["notifications"])
	assert.Equal(t, models.NotificationWithdrawalPaid, notes["notifications"][0].Type)
}

func TestProfileRoutes(t *testing.T) {
	api := newTestAPI(t)
	id, token := api.signup(t, "João Pereira")

	w := api.do(t, http.MethodPost, "/api/v1/me", token, gin.H{"display_name": "De Novo"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPut, "/api/v1/me", token, gin.H{"slug": "joao-motoclube"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/profiles/joao-motoclube", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[map[string]any](t, w)
	assert.Equal(t, id.String(), view["id"])

	adminToken := createTestJWTToken(uuid.New(), "admin")
	w = api.do(t, http.MethodPut, "/api/v1/admin/profiles/"+id.String()+"/plan", adminToken, gin.H{"plan": "elite"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/v1/admin/profiles/"+id.String()+"/points", adminToken, gin.H{"amount": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	event := decode[models.PointsEvent](t, w)
	assert.Equal(t, int64(10), event.Amount, "admin adjustments skip the plan multiplier")
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		code apierrors.ErrorCode
	}{
		{marketplace.ErrAdNotFound, apierrors.ErrNotFound},
		{fmt.Errorf("wrapped: %w", marketplace.ErrNotOwner), apierrors.ErrNotOwner},
		{marketplace.ErrInvalidTransition, apierrors.ErrInvalidState},
		{marketplace.ErrTooManyImages, apierrors.ErrLimitExceeded},
		{payout.ErrInsufficientBalance, apierrors.ErrInsufficientBal},
		{payout.ErrPendingWithdrawal, apierrors.ErrConflict},
		{payout.ErrBelowMinimumThreshold, apierrors.ErrValidationFailed},
		{apierrors.ErrForbiddenError, apierrors.ErrForbidden},
		{fmt.Errorf("connection reset"), apierrors.ErrInternalServer},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, mapError(tt.err).Code, tt.err.Error())
	}
}
