package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// DiscoverJWKSURL reads jwks_uri from the issuer's OpenID configuration document.
// The document's issuer must match issuer exactly.
func DiscoverJWKSURL(ctx context.Context, issuer string, client *http.Client) (string, error) {
	if client != nil {
		ctx = gooidc.ClientContext(ctx, client)
	}

	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("oidc discovery for %s: %w", issuer, err)
	}

	var metadata struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return "", fmt.Errorf("decode discovery document: %w", err)
	}
	if metadata.JWKSURL == "" {
		return "", errors.New("discovery document has no jwks_uri")
	}

	return metadata.JWKSURL, nil
}
