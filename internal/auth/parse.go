package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chazstevenson112/Steppr/internal/domain"
)

// Config holds the HS256 secret and the issuer tokens must carry.
type Config struct {
	Secret string
	Issuer string
}

// Claims is the verified caller.
type Claims struct {
	Subject   string
	Name      string
	Email     string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// tokenClaims is the wire shape of a Steppr access token.
type tokenClaims struct {
	jwt.RegisteredClaims
	Name   string    `json:"name,omitempty"`
	Email  string    `json:"email,omitempty"`
	Scopes scopeList `json:"scopes,omitempty"`
}

// scopeList accepts both the OAuth space-delimited string and a JSON array.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		*s = strings.Fields(joined)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("scopes: %w", err)
	}
	*s = list
	return nil
}

func (s scopeList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(s, " "))
}

// Parse verifies token against cfg. Tokens must be HS256, carry the
// configured issuer, a subject and an expiry.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(tc.Subject) == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	scopes := make(map[string]struct{}, len(tc.Scopes))
	for _, scope := range tc.Scopes {
		if scope != "" {
			scopes[scope] = struct{}{}
		}
	}
	return &Claims{
		Subject:   tc.Subject,
		Name:      tc.Name,
		Email:     tc.Email,
		Scopes:    scopes,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

// HasScope reports whether the token granted scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

// Identity returns the caller identity asserted by the token.
func (c *Claims) Identity() domain.Identity {
	if c == nil {
		return domain.Identity{}
	}
	return domain.Identity{UserID: c.Subject, Email: c.Email, DisplayName: c.Name}
}

// Issue signs an HS256 token for subject. It backs local tooling and tests;
// production tokens come from the identity provider.
func Issue(cfg Config, subject, name, email string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:   name,
		Email:  email,
		Scopes: scopes,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
