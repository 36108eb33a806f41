package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finwise/api/middleware"
	"finwise/api/models"
	"finwise/api/subscription"
)

func authedContext(t *testing.T, method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	c.Set(middleware.UserKey, &models.SupabaseClaims{Sub: "user-1", Email: "user@example.com"})
	return c, w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetStatusNewUserGetsTrialBanner(t *testing.T) {
	store := newFakeSubStore()
	h := NewSubscriptionHandler(store)

	c, w := authedContext(t, http.MethodGet, "/api/subscription/status")
	h.GetStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeStatus(t, w)
	assert.False(t, resp.HasActiveAccess)
	assert.Equal(t, models.PlanFree, resp.PlanType)
	require.NotNil(t, resp.Banner)
	assert.Equal(t, subscription.BannerStartTrial, resp.Banner.Type)
}

func TestGetStatusPaidUser(t *testing.T) {
	end := time.Now().UTC().Add(20 * 24 * time.Hour)
	store := newFakeSubStore()
	store.subs["user-1"] = &models.Subscription{
		UserID:           "user-1",
		PlanType:         models.PlanPro,
		Status:           models.StatusActive,
		CurrentPeriodEnd: &end,
		HasUsedTrial:     true,
	}
	h := NewSubscriptionHandler(store)

	c, w := authedContext(t, http.MethodGet, "/api/subscription/status")
	h.GetStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeStatus(t, w)
	assert.True(t, resp.HasActiveAccess)
	assert.Equal(t, models.PlanPro, resp.PlanType)
	assert.Nil(t, resp.Banner)
}

func TestGetStatusDegradesOnStoreError(t *testing.T) {
	store := newFakeSubStore()
	store.readErr = assert.AnError
	h := NewSubscriptionHandler(store)

	c, w := authedContext(t, http.MethodGet, "/api/subscription/status")
	h.GetStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeStatus(t, w)
	assert.False(t, resp.HasActiveAccess)
	assert.Equal(t, models.PlanFree, resp.PlanType)
}

func TestGetStatusRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/subscription/status", nil)

	NewSubscriptionHandler(newFakeSubStore()).GetStatus(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStartTrial(t *testing.T) {
	store := newFakeSubStore()
	h := NewSubscriptionHandler(store)

	c, w := authedContext(t, http.MethodPost, "/api/subscription/trial")
	h.StartTrial(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.applied, 1)
	assert.Equal(t, subscription.TrialStart, store.applied[0].input.Transition)

	resp := decodeStatus(t, w)
	assert.True(t, resp.HasActiveAccess)
	assert.Equal(t, models.PlanBasic, resp.PlanType)
	assert.Equal(t, subscription.DefaultTrialDays, resp.TrialDaysLeft)
}

func TestStartTrialRejectsSecondTrial(t *testing.T) {
	store := newFakeSubStore()
	store.subs["user-1"] = &models.Subscription{
		UserID:       "user-1",
		PlanType:     models.PlanFree,
		Status:       models.StatusActive,
		HasUsedTrial: true,
	}
	h := NewSubscriptionHandler(store)

	c, w := authedContext(t, http.MethodPost, "/api/subscription/trial")
	h.StartTrial(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, store.applied)
}
