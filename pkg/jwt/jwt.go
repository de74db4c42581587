package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "carematch/pkg/errors"
)

// ParticipantClaims carries the identity the external auth service minted for a
// carer or center. This backend never issues tokens, it only validates them.
type ParticipantClaims struct {
	ParticipantID   string `json:"participant_id"`
	ParticipantType string `json:"participant_type"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	issuer string
}

func NewManager(secret, issuer string) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer}
}

func (m *Manager) Validate(tokenString string) (*ParticipantClaims, error) {
	claims := &ParticipantClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}
	if !token.Valid || claims.ParticipantID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// Sign exists for tests and local tooling; production tokens come from the
// identity service.
func (m *Manager) Sign(participantID, participantType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &ParticipantClaims{
		ParticipantID:   participantID,
		ParticipantType: participantType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
