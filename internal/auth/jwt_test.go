package auth

import (
	"testing"
	"time"

	"retail-order-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour)
	shopID := int64(100001)

	token, err := m.Issue(&models.Account{ID: 7, Role: models.RoleCustomer, ShopID: &shopID})
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.AccountID())
	assert.Equal(t, shopID, claims.ShopID)
	assert.False(t, claims.IsAdmin())
}

func TestParseRejectsWrongSecretAndExpiry(t *testing.T) {
	m := NewManager("secret", time.Hour)
	adminID := int64(100002)
	token, err := m.Issue(&models.Account{ID: 1, Role: models.RoleAdmin, AdminID: &adminID})
	require.NoError(t, err)

	_, err = NewManager("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewManager("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue(&models.Account{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = m.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
