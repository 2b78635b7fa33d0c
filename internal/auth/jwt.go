package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims holds JWT claims for a resolved viewer identity.
type Claims struct {
	Kind     models.ViewerKind `json:"kind"`
	ViewerID string            `json:"viewer_id"`
	Name     string            `json:"name"`
	jwt.RegisteredClaims
}

// Viewer returns the identity carried by the claims.
func (c *Claims) Viewer() models.Viewer {
	return models.Viewer{Kind: c.Kind, ID: c.ViewerID, Name: c.Name}
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
	now         func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
		now:         time.Now,
	}
}

// Generate creates a new JWT for the viewer.
func (s *JWTService) Generate(v models.Viewer) (string, error) {
	now := s.now()
	claims := Claims{
		Kind:     v.Kind,
		ViewerID: v.ID,
		Name:     v.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   v.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != models.KindAdmin && claims.Kind != models.KindCustomer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ResolveViewer validates a token and returns its identity. Used by the channel endpoint.
func (s *JWTService) ResolveViewer(tokenString string) (models.Viewer, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return models.Viewer{}, err
	}
	return claims.Viewer(), nil
}
