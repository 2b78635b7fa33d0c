package meeting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/seminar-portal/internal/middleware"
	"github.com/aura-webinar/seminar-portal/internal/models"
)

type stubSchedules struct {
	s *models.Schedule
}

func (st stubSchedules) GetBySlug(_ context.Context, slug string) (*models.Schedule, error) {
	if st.s == nil || st.s.Slug != slug {
		return nil, models.ErrNotFound
	}
	return st.s, nil
}

func strPtr(s string) *string { return &s }

func TestZoomSignatureClaims(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	signer := NewZoomSigner(ZoomConfig{SDKKey: "key", SDKSecret: "secret"})

	sig, err := signer.Sign("123456789", models.Viewer{Kind: models.KindCustomer, ID: "ABC123"}, now)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(sig, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)

	iat := now.Add(-30 * time.Second).Unix()
	assert.Equal(t, "key", claims["appKey"])
	assert.Equal(t, "123456789", claims["mn"])
	assert.EqualValues(t, 0, claims["role"])
	assert.EqualValues(t, iat, claims["iat"])
	assert.EqualValues(t, iat+7200, claims["exp"])
	assert.EqualValues(t, iat+7200, claims["tokenExp"])
}

func TestZegoSigner(t *testing.T) {
	signer := NewZegoSigner(ZegoConfig{AppID: 12345, ServerSecret: strings.Repeat("a", 32)})
	assert.Equal(t, "12345", signer.SDKKey())

	tok, err := signer.Sign("room-1", models.Viewer{Kind: models.KindCustomer, ID: "ABC123"}, time.Now())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, "04"))

	bad := NewZegoSigner(ZegoConfig{AppID: 12345, ServerSecret: "short"})
	_, err = bad.Sign("room-1", models.Viewer{}, time.Now())
	assert.Error(t, err)
}

func TestNewSigner(t *testing.T) {
	s, err := NewSigner(ProviderZoom, ZoomConfig{SDKKey: "k", SDKSecret: "s"}, ZegoConfig{})
	require.NoError(t, err)
	assert.Equal(t, ProviderZoom, s.Provider())

	_, err = NewSigner(ProviderZego, ZoomConfig{}, ZegoConfig{})
	assert.Error(t, err)
	_, err = NewSigner("teams", ZoomConfig{}, ZegoConfig{})
	assert.Error(t, err)
}

func TestJoinForRequiresLiveAndRoom(t *testing.T) {
	sched := &models.Schedule{Slug: "s1", Status: models.StatusUpcoming, MeetingNumber: strPtr("987"), MeetingPassword: strPtr("pw")}
	h := NewHandler(stubSchedules{s: sched}, NewZoomSigner(ZoomConfig{SDKKey: "k", SDKSecret: "s"}), nil)
	viewer := models.Viewer{Kind: models.KindCustomer, ID: "ABC123", Name: "Taro"}
	ctx := context.Background()

	_, err := h.JoinFor(ctx, "s1", viewer)
	assert.ErrorIs(t, err, models.ErrNotLive)

	sched.IsTestLive = true
	j, err := h.JoinFor(ctx, "s1", viewer)
	require.NoError(t, err)
	assert.Equal(t, "987", j.RoomID)
	assert.Equal(t, "pw", j.RoomSecret)
	assert.Equal(t, "Taro", j.DisplayName)
	assert.Equal(t, "k", j.SDKKey)
	assert.NotEmpty(t, j.Signature)

	sched.IsTestLive = false
	sched.Status = models.StatusLive
	sched.MeetingNumber = nil
	_, err = h.JoinFor(ctx, "s1", viewer)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = h.JoinFor(ctx, "missing", viewer)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestJoinEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sched := &models.Schedule{Slug: "s1", Status: models.StatusEnded, MeetingNumber: strPtr("987")}
	h := NewHandler(stubSchedules{s: sched}, NewZoomSigner(ZoomConfig{SDKKey: "k", SDKSecret: "s"}), nil)

	r := gin.New()
	r.GET("/watch/:slug/meeting", func(c *gin.Context) {
		c.Set(middleware.ContextViewer, models.Viewer{Kind: models.KindCustomer, ID: "ABC123", Name: "Taro"})
	}, h.Join)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/watch/s1/meeting", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	sched.Status = models.StatusLive
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/watch/s1/meeting", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool `json:"success"`
		Data    Join `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, ProviderZoom, body.Data.Provider)

	unconfigured := NewHandler(stubSchedules{s: sched}, nil, nil)
	r2 := gin.New()
	r2.GET("/watch/:slug/meeting", unconfigured.Join)
	w = httptest.NewRecorder()
	r2.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/watch/s1/meeting", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
