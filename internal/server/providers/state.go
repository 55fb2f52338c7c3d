package providers

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultStateTTL bounds how long a user may take to complete consent.
const DefaultStateTTL = time.Hour

// State is carried through the authorization server in the OAuth "state"
// parameter.
type State struct {
	CSRF   string
	UserID string
}

type stateClaims struct {
	jwt.RegisteredClaims
	CSRF   string `json:"csrf"`
	UserID string `json:"uid"`
}

// StateCodec signs State values so a callback can be attributed to the user
// who started the linking attempt without trusting the redirect.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStateCodec(secret []byte, ttl time.Duration) *StateCodec {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateCodec{secret: secret, ttl: ttl, now: time.Now}
}

func (c *StateCodec) Encode(s State) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		CSRF:   s.CSRF,
		UserID: s.UserID,
	})
	return token.SignedString(c.secret)
}

// Decode verifies raw and returns the state it carries. Any failure is
// reported as common.ErrOAuthExchange.
func (c *StateCodec) Decode(raw string) (State, error) {
	if raw == "" {
		return State{}, fmt.Errorf("%w: missing state", common.ErrOAuthExchange)
	}

	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return State{}, fmt.Errorf("%w: state expired", common.ErrOAuthExchange)
		}
		return State{}, fmt.Errorf("%w: invalid state: %v", common.ErrOAuthExchange, err)
	}

	if claims.CSRF == "" || claims.UserID == "" {
		return State{}, fmt.Errorf("%w: incomplete state", common.ErrOAuthExchange)
	}

	return State{CSRF: claims.CSRF, UserID: claims.UserID}, nil
}
