package token

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/relaygate/core/common"
	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
)

const googleTokenEndpoint = "https://oauth2.googleapis.com/token"

// VertexJWTRefresher exchanges a service-account JWT-bearer assertion for a
// Vertex AI access token, per the algorithm in the token refresher design.
type VertexJWTRefresher struct {
	HTTPClient *http.Client
	// PrivateKeyPEM is looked up per credential via KeyLookup since the RSA
	// private key is not itself a Credential field (it lives alongside
	// ClientId as operator-supplied service-account JSON).
	KeyLookup func(c *credential.Credential) (privateKeyPEM string, err error)
}

var _ VendorRefresher = (*VertexJWTRefresher)(nil)

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Refresh builds and signs the JWT-bearer assertion and exchanges it at
// Google's token endpoint.
func (v *VertexJWTRefresher) Refresh(ctx context.Context, c *credential.Credential) (string, time.Time, error) {
	pemKey, err := v.KeyLookup(c)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "look up vertex service account key")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "parse service account private key")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.Email,
		"sub":   c.Email,
		"aud":   "https://oauth2.googleapis.com/token",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"scope": "https://www.googleapis.com/auth/cloud-platform",
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	assertion, err := tok.SignedString(privateKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign jwt assertion")
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "build token exchange request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client().Do(req)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "exchange jwt for access token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "read token exchange response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, errs.TokenRefreshFailed(resp.StatusCode, errors.Errorf(
			"google token endpoint returned %d: %s", resp.StatusCode, common.SanitizePreview(body)))
	}

	var parsed googleTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", time.Time{}, errors.Wrap(err, "decode token exchange response")
	}
	if parsed.AccessToken == "" {
		return "", time.Time{}, errors.New("token exchange response missing access_token")
	}

	expiresAt := now.Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return parsed.AccessToken, expiresAt, nil
}

func (v *VertexJWTRefresher) client() *http.Client {
	if v.HTTPClient != nil {
		return v.HTTPClient
	}
	return http.DefaultClient
}

// DecodeJWTExpiry extracts the "exp" claim from an unverified JWT payload, used
// when a token carries its own expiry and no separate expiresAt was recorded.
func DecodeJWTExpiry(rawToken string) (time.Time, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(rawToken, claims); err != nil {
		return time.Time{}, errors.Wrap(err, "parse jwt payload")
	}
	expRaw, ok := claims["exp"]
	if !ok {
		return time.Time{}, errors.New("jwt has no exp claim")
	}
	switch v := expRaw.(type) {
	case float64:
		return time.Unix(int64(v), 0), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, errors.Wrap(err, "parse exp claim")
		}
		return time.Unix(n, 0), nil
	default:
		return time.Time{}, errors.New("unsupported exp claim type")
	}
}
