package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewJWTManager("secret", "institute", time.Hour)
	id := uuid.New()

	raw, issued, err := m.Generate(id, "ana@example.com", "professional")
	require.NoError(t, err)

	claims, err := m.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "professional", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejects(t *testing.T) {
	m := NewJWTManager("secret", "institute", time.Hour)
	raw, _, err := m.Generate(uuid.New(), "a@example.com", "admin")
	require.NoError(t, err)

	expired := NewJWTManager("secret", "institute", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Generate(uuid.New(), "a@example.com", "admin")
	require.NoError(t, err)

	tests := map[string]struct {
		manager *JWTManager
		token   string
	}{
		"wrong secret": {NewJWTManager("other", "institute", time.Hour), raw},
		"wrong issuer": {NewJWTManager("secret", "elsewhere", time.Hour), raw},
		"expired":      {m, old},
		"garbage":      {m, "not.a.token"},
		"tampered":     {m, raw[:len(raw)-2] + "xx"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.manager.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
