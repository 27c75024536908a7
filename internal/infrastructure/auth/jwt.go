// Package auth issues and verifies the HS256 bearer tokens that identify API callers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/expense-workflow/internal/domain/access"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/pkg/utils"
)

// ErrInvalidToken is returned for any token that cannot be trusted
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the actor identity. The subject is the user id.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies tokens with a shared secret
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator. now may be nil.
func NewAuthenticator(secret, issuer string, ttl time.Duration, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    now,
	}
}

// Issue signs a token for actor
func (a *Authenticator) Issue(actor access.Actor) (string, error) {
	if err := validateActor(actor); err != nil {
		return "", err
	}

	now := a.now()
	claims := Claims{
		Role:  string(actor.Role),
		Name:  actor.Name,
		Email: actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns the actor it names
func (a *Authenticator) Verify(tokenString string) (access.Actor, error) {
	if tokenString == "" {
		return access.Actor{}, fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return access.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return access.Actor{}, ErrInvalidToken
	}

	actor := access.Actor{
		ID:    claims.Subject,
		Role:  workflow.Role(claims.Role),
		Name:  claims.Name,
		Email: claims.Email,
	}
	if err := validateActor(actor); err != nil {
		return access.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actor, nil
}

func validateActor(actor access.Actor) error {
	if err := utils.ValidateActorID(actor.ID); err != nil {
		return err
	}
	if !actor.Role.IsValid() {
		return fmt.Errorf("unknown role %q", actor.Role)
	}
	if actor.Email != "" {
		if err := utils.ValidateEmail(actor.Email); err != nil {
			return err
		}
	}
	return nil
}
