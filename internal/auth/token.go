package auth

import (
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by bearer tokens issued by the identity provider
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier parses HS256 bearer tokens into sessions
type TokenVerifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenVerifier creates a verifier for the shared secret
func NewTokenVerifier(secret string, ttl time.Duration) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID. The identity provider owns login; this is
// used by tooling and tests that need a valid token.
func (v *TokenVerifier) Issue(userID string, role models.Role) (string, error) {
	now := v.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Parse verifies the token signature and expiry and returns the session
func (v *TokenVerifier) Parse(tokenStr string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.KindNotAuthenticated, "session expired")
		}
		return nil, &apperr.Error{Kind: apperr.KindNotAuthenticated, Msg: "invalid token", Err: err}
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperr.New(apperr.KindNotAuthenticated, "invalid token")
	}
	if !claims.Role.Valid() {
		return nil, apperr.New(apperr.KindNotAuthenticated, "token carries unknown role %q", claims.Role)
	}

	s := &Session{
		UserID:  claims.Subject,
		Role:    claims.Role,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
