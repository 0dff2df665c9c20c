// Package auth hashes passwords and issues the bearer tokens that identify
// a user on protected API routes.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// ErrInvalidCredentials hides whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Hasher hashes and checks passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using cost, or DefaultBcryptCost when cost is
// outside bcrypt's accepted range.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return Hasher{cost: cost}
}

func (h Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Check returns ErrInvalidCredentials when password does not match hash.
func (h Hasher) Check(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
