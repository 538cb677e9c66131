package identity

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssuerConfig configures token minting.
type IssuerConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Issuer mints HS256 tokens that Resolver accepts.
type Issuer struct {
	cfg IssuerConfig
	now func() time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewIssuer(cfg IssuerConfig) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Issuer{cfg: cfg, now: time.Now}
}

// Mint signs a token for p and returns it with its expiry.
func (i *Issuer) Mint(p Principal) (string, time.Time, error) {
	if p.IsZero() {
		return "", time.Time{}, errors.New("cannot mint a token for an empty principal")
	}

	role := p.Role.String()
	if p.Kind == KindCustomer {
		role = "customer"
	}
	return i.MintRole(p.ID, role)
}

// MintRole signs a token carrying a raw role claim, which may be empty or
// unrecognised.
func (i *Issuer) MintRole(id uint, role string) (string, time.Time, error) {
	if id == 0 {
		return "", time.Time{}, errors.New("cannot mint a token for account id 0")
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.cfg.TTL)
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id), 10),
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
