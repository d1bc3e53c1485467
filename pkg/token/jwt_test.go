package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("marie", "operator")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "marie", claims.Username)
	assert.Equal(t, "operator", claims.Role)

	_, err = NewJWTManager("other", 1).VerifyToken(tok)
	assert.Error(t, err)
	_, err = m.VerifyToken("garbage")
	assert.Error(t, err)
}
