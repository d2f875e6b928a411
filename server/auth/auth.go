// Package auth issues and validates bearer tokens for the inspection
// service's single operator credential, a login service and JWT issuer cut
// down to a single static account instead of a user table: there is one
// operator, configured at startup with a bcrypt-hashed password, and losing
// the process loses the "logged out" bit along with everything else, so no
// persisted invalidation nonce is needed.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer         = "llmctl-inspect"
	tokenLifetime  = time.Hour
	validationSkew = time.Minute
)

// Operator holds the single inspection-service credential and the secret
// used to sign bearer tokens for it.
type Operator struct {
	secret       []byte
	passwordHash []byte
}

// NewOperator builds an Operator from a plaintext password, hashing it with
// bcrypt at the default cost.
func NewOperator(secret []byte, password string) (*Operator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash operator password: %w", err)
	}
	return &Operator{secret: secret, passwordHash: hash}, nil
}

// Login checks password against the configured operator credential and, on
// success, returns a signed bearer token good for tokenLifetime.
func (o *Operator) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(o.passwordHash, []byte(password)); err != nil {
		return "", fmt.Errorf("auth: %w", ErrBadCredentials)
	}
	return o.generateToken()
}

func (o *Operator) generateToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":        issuer,
		"exp":        now.Add(tokenLifetime).Unix(),
		"iat":        now.Unix(),
		"authorized": true,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return tok.SignedString(o.secret)
}

// Validate reports whether tok is a currently-valid bearer token for this
// operator.
func (o *Operator) Validate(tok string) error {
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		return o.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer(issuer), jwt.WithLeeway(validationSkew))
	if err != nil {
		return fmt.Errorf("auth: %w: %s", ErrBadToken, err.Error())
	}
	if !parsed.Valid {
		return fmt.Errorf("auth: %w", ErrBadToken)
	}
	return nil
}
