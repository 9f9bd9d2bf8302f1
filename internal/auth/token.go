package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/threadline-ai/threadline/pkg/types"
)

// TokenCodec signs and verifies the two credentials this server
// issues: the bearer token carrying a user identity, and the
// client-side session cookie carrying a small opaque state map.
// Both are HMAC-signed JWTs under the same secret; they differ only
// in claims and lifetime.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec creates a codec from the configured secret.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = 15 * 24 * time.Hour
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl}, nil
}

// Create signs a bearer token for the given user.
func (c *TokenCodec) Create(user *types.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"identifier": user.ID,
		"iat":        now.Unix(),
		"exp":        now.Add(c.ttl).Unix(),
	}
	if user.DisplayName != "" {
		claims["display_name"] = user.DisplayName
	}
	if user.Provider != "" {
		claims["provider"] = user.Provider
	}
	if user.Metadata != nil {
		claims["metadata"] = user.Metadata
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies a bearer token and reconstructs the ephemeral user.
// Any verification failure is reported as ErrUnauthorized.
func (c *TokenCodec) Decode(tokenString string) (*types.User, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return nil, err
	}

	identifier, _ := claims["identifier"].(string)
	if identifier == "" {
		return nil, fmt.Errorf("%w: missing identifier claim", ErrUnauthorized)
	}

	user := &types.User{ID: identifier}
	if name, ok := claims["display_name"].(string); ok {
		user.DisplayName = name
	}
	if provider, ok := claims["provider"].(string); ok {
		user.Provider = provider
	}
	if metadata, ok := claims["metadata"].(map[string]any); ok {
		user.Metadata = metadata
	}

	return user, nil
}

// EncodeState signs the client-side session state map. The state
// rides in its own cookie and never touches server-side storage.
func (c *TokenCodec) EncodeState(data map[string]any) (string, error) {
	claims := jwt.MapClaims{
		"data": data,
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// DecodeState verifies and extracts the client-side session state.
func (c *TokenCodec) DecodeState(tokenString string) (map[string]any, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return nil, err
	}

	data, ok := claims["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing state payload", ErrUnauthorized)
	}
	return data, nil
}

// parse verifies the signature and returns the claims map.
func (c *TokenCodec) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", ErrUnauthorized)
	}
	return claims, nil
}
