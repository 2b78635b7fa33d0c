package meeting

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

const (
	zoomRoleAttendee = 0
	zoomTokenTTL     = 2 * time.Hour
	// iat is backdated by zoomClockSkew.
	zoomClockSkew = 30 * time.Second
)

// ZoomConfig holds Meeting SDK app credentials.
type ZoomConfig struct {
	SDKKey    string
	SDKSecret string
}

// ZoomSigner produces Meeting SDK JWT signatures (HS256).
type ZoomSigner struct {
	cfg ZoomConfig
}

// NewZoomSigner creates a Zoom signer.
func NewZoomSigner(cfg ZoomConfig) *ZoomSigner { return &ZoomSigner{cfg: cfg} }

func (z *ZoomSigner) Provider() string { return ProviderZoom }
func (z *ZoomSigner) SDKKey() string   { return z.cfg.SDKKey }

// Sign returns a signature for joining meeting roomID. Viewers always join as attendees.
func (z *ZoomSigner) Sign(roomID string, _ models.Viewer, now time.Time) (string, error) {
	iat := now.Add(-zoomClockSkew).Unix()
	exp := iat + int64(zoomTokenTTL/time.Second)
	claims := jwt.MapClaims{
		"appKey":   z.cfg.SDKKey,
		"sdkKey":   z.cfg.SDKKey,
		"mn":       roomID,
		"role":     zoomRoleAttendee,
		"iat":      iat,
		"exp":      exp,
		"tokenExp": exp,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(z.cfg.SDKSecret))
}
