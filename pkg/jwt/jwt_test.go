package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "carematch/pkg/errors"
)

func TestSignAndValidate(t *testing.T) {
	m := NewManager("secret", "carematch-auth")

	token, err := m.Sign("carer-1", "carer", time.Hour)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "carer-1", claims.ParticipantID)
	require.Equal(t, "carer", claims.ParticipantType)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("secret", "carematch-auth")

	token, err := m.Sign("carer-1", "carer", -time.Minute)
	require.NoError(t, err)

	_, err = m.Validate(token)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("secret-a", "carematch-auth").Sign("carer-1", "carer", time.Hour)
	require.NoError(t, err)

	_, err = NewManager("secret-b", "carematch-auth").Validate(token)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	token, err := NewManager("secret", "someone-else").Sign("carer-1", "carer", time.Hour)
	require.NoError(t, err)

	_, err = NewManager("secret", "carematch-auth").Validate(token)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewManager("secret", "carematch-auth").Validate("not-a-token")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
