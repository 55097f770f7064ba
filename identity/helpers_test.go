package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testIssuer   = "https://accounts.google.com"
	testClientID = "client-123.apps.example.com"
)

// Test helper to generate RSA key pair
func generateTestKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey
}

func publicJWK(key *rsa.PrivateKey, kid string) jose.JSONWebKey {
	return jose.JSONWebKey{Key: &key.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}
}

// jwksServer serves a mutable JWKS document and counts fetches
type jwksServer struct {
	*httptest.Server

	mu     sync.Mutex
	keys   []jose.JSONWebKey
	status int
	gate   chan struct{}
	hits   atomic.Int32
}

func newJWKSServer(t *testing.T, keys ...jose.JSONWebKey) *jwksServer {
	t.Helper()
	s := &jwksServer{keys: keys, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)

		s.mu.Lock()
		gate := s.gate
		status := s.status
		body, err := json.Marshal(jose.JSONWebKeySet{Keys: s.keys})
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) setKeys(keys ...jose.JSONWebKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}

func (s *jwksServer) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *jwksServer) setGate(gate chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = gate
}

func newTestKeySet(t *testing.T, url string, minRefresh time.Duration) *KeySet {
	t.Helper()
	return NewKeySet(KeySetConfig{
		JWKSURL:            url,
		Issuer:             testIssuer,
		RefreshInterval:    time.Hour,
		MinRefreshInterval: minRefresh,
		HTTPTimeout:        5 * time.Second,
	}, zaptest.NewLogger(t))
}

func newTestVerifier(t *testing.T, keys KeyLookup) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{
		Issuer:        testIssuer,
		IssuerAliases: []string{"accounts.google.com"},
		ClientIDs:     []string{testClientID, "mobile-client"},
		ClockSkew:     30 * time.Second,
	}, keys, zaptest.NewLogger(t))
	require.NoError(t, err)
	return v
}

func assertionClaimsMap() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testClientID,
		"sub":            "1098765",
		"email":          "alice@x.edu",
		"email_verified": true,
		"name":           "Alice Liddell",
		"picture":        "https://example.com/alice.png",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

// Test helper to create a signed assertion
func signAssertion(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}
