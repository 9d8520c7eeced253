package matchsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Authenticator maps a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

var ErrUnauthenticated = errors.New("missing or invalid token")

// StaticTokens authenticates against a fixed token -> user id table.
type StaticTokens map[string]string

func (t StaticTokens) Authenticate(ctx context.Context, token string) (string, error) {
	if userID, ok := t[token]; ok {
		return userID, nil
	}
	return "", ErrUnauthenticated
}

// ParseStaticTokens reads "token:user,token:user".
func ParseStaticTokens(spec string) (StaticTokens, error) {
	tokens := make(StaticTokens)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, userID, ok := strings.Cut(pair, ":")
		if !ok || token == "" || userID == "" {
			return nil, fmt.Errorf("invalid token entry %q", pair)
		}
		tokens[token] = userID
	}
	return tokens, nil
}

const jwtClaimUserID = "user_id"

// JWTAuthenticator accepts HS256 tokens carrying a user_id (or sub) claim.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrUnauthenticated
	}

	for _, key := range []string{jwtClaimUserID, "sub"} {
		if userID, ok := claims[key].(string); ok && userID != "" {
			return userID, nil
		}
	}
	return "", ErrUnauthenticated
}

// IssueToken signs a token for userID that expires after ttl.
func (a *JWTAuthenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		jwtClaimUserID: userID,
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticators tries each authenticator in order.
type Authenticators []Authenticator

func (as Authenticators) Authenticate(ctx context.Context, token string) (string, error) {
	for _, a := range as {
		if userID, err := a.Authenticate(ctx, token); err == nil {
			return userID, nil
		}
	}
	return "", ErrUnauthenticated
}

// NewAuthenticator builds the authenticator for a static token table and an
// optional JWT secret. It returns nil when neither is configured.
func NewAuthenticator(tokenSpec, jwtSecret string) (Authenticator, error) {
	var chain Authenticators
	if tokenSpec != "" {
		tokens, err := ParseStaticTokens(tokenSpec)
		if err != nil {
			return nil, err
		}
		chain = append(chain, tokens)
	}
	if jwtSecret != "" {
		chain = append(chain, NewJWTAuthenticator(jwtSecret))
	}
	switch len(chain) {
	case 0:
		return nil, nil
	case 1:
		return chain[0], nil
	}
	return chain, nil
}
