package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"billrecon/internal/config"
	"billrecon/internal/domain"
)

// Audience is the audience claim carried by API tokens.
const Audience = "billrecon-api"

// Claims are the JWT claims of an API token. Subject names the caller
// (an operator or an automation job).
type Claims struct {
	jwt.RegisteredClaims
}

// Token is a signed API token.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenService issues and validates API bearer tokens.
type TokenService interface {
	Issue(subject string, ttl time.Duration) (*Token, error)
	Validate(tokenString string) (*Claims, error)
}

type tokenService struct {
	cfg config.JWTConfig
	now func() time.Time
}

// NewTokenService creates an HS256 TokenService.
func NewTokenService(cfg config.JWTConfig) TokenService {
	return &tokenService{cfg: cfg, now: time.Now}
}

// Issue signs a token for subject. A zero ttl uses the configured expiry.
func (s *tokenService) Issue(subject string, ttl time.Duration) (*Token, error) {
	if subject == "" {
		return nil, fmt.Errorf("auth.Issue: empty subject")
	}
	if ttl <= 0 {
		ttl = s.cfg.TokenExpiry
	}
	now := s.now()
	expiry := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{Audience},
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &Token{AccessToken: signed, ExpiresAt: expiry}, nil
}

func (s *tokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithIssuer(s.cfg.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	aud, _ := claims.GetAudience()
	if !slices.Contains(aud, Audience) {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}
