package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/upb/classroom/models"
)

const testKey = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Issuer:     "classroom-api",
		Audience:   "classroom",
		DefaultTTL: time.Hour,
		MaxTTL:     24 * time.Hour,
		ClockSkew:  30 * time.Second,
	}
}

func testSecret(t *testing.T) Secret {
	t.Helper()
	secret, err := NewSecret(testKey)
	require.NoError(t, err)
	return secret
}

// newTestPair returns an issuer and validator sharing a key and a fixed clock
func newTestPair(t *testing.T, cfg Config) (*Issuer, *Validator) {
	t.Helper()
	secret := testSecret(t)

	issuer, err := NewIssuer(secret, cfg)
	require.NoError(t, err)
	issuer.now = func() time.Time { return testNow }

	validator, err := NewValidator(secret, cfg)
	require.NoError(t, err)
	validator.now = func() time.Time { return testNow }

	return issuer, validator
}

func aliceAccount() *models.Account {
	roleID := 2
	return &models.Account{
		AccountID: 1,
		UserID:    10,
		Email:     "alice@x.edu",
		FirstName: "Alice",
		LastName:  "Liddell",
		RoleID:    &roleID,
		RoleName:  "Manager",
	}
}
