package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

// Claims holds the custom claims carried by API tokens.
type Claims struct {
	Role string `json:"role"`
}

// Validate satisfies validator.CustomClaims. Role values are checked by NormalizeRole.
func (c *Claims) Validate(ctx context.Context) error {
	return nil
}

// ResolverConfig configures token verification.
type ResolverConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Resolver turns bearer tokens into principals.
type Resolver struct {
	validator *validator.Validator
}

func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	secret := []byte(cfg.Secret)

	v, err := validator.New(
		func(ctx context.Context) (interface{}, error) { return secret, nil },
		validator.HS256,
		cfg.Issuer,
		[]string{cfg.Audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &Claims{}
		}),
		validator.WithAllowedClockSkew(cfg.ClockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}
	return &Resolver{validator: v}, nil
}

// ValidateToken verifies signature, expiry, issuer and audience. Its
// signature matches jwtmiddleware.ValidateToken.
func (r *Resolver) ValidateToken(ctx context.Context, token string) (interface{}, error) {
	return r.validator.ValidateToken(ctx, token)
}

// Resolve verifies a raw token, with or without the "Bearer " prefix.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Principal, error) {
	token := strings.TrimSpace(raw)
	if scheme, rest, found := strings.Cut(token, " "); found && strings.EqualFold(scheme, "bearer") {
		token = strings.TrimSpace(rest)
	} else if strings.EqualFold(token, "bearer") {
		token = ""
	}
	if token == "" {
		return Principal{}, apperrors.ErrUnauthenticated
	}

	claims, err := r.ValidateToken(ctx, token)
	if err != nil {
		return Principal{}, apperrors.ErrInvalidToken.WithCause(err)
	}
	validated, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return Principal{}, apperrors.ErrInvalidToken
	}
	return PrincipalFromClaims(validated)
}

// PrincipalFromClaims maps verified claims onto a Principal. A role claim of
// "customer" yields a customer principal; anything else is staff.
func PrincipalFromClaims(claims *validator.ValidatedClaims) (Principal, error) {
	if claims == nil {
		return Principal{}, apperrors.ErrInvalidToken
	}

	id, err := strconv.ParseUint(claims.RegisteredClaims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Principal{}, apperrors.ErrInvalidToken.WithMessage("Token subject is not a valid account id")
	}

	var rawRole string
	if custom, ok := claims.CustomClaims.(*Claims); ok && custom != nil {
		rawRole = custom.Role
	}

	role := NormalizeRole(rawRole)
	if role == RoleCustomer {
		return Customer(uint(id)), nil
	}
	return Staff(uint(id), role), nil
}
