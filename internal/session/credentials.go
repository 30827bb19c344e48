package session

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialPolicy decides how passwords are stored on signup and checked on
// login against the record returned by the gateway.
type CredentialPolicy interface {
	Name() string
	// Seal turns a plaintext password into what is sent to the gateway.
	Seal(password string) (string, error)
	// Matches reports whether password matches the stored value.
	Matches(stored, password string) bool
}

// PlaintextPolicy stores and compares passwords verbatim. It matches the
// behavior of the json-server demo data and is the default.
type PlaintextPolicy struct{}

func (PlaintextPolicy) Name() string { return "plaintext" }

func (PlaintextPolicy) Seal(password string) (string, error) { return password, nil }

func (PlaintextPolicy) Matches(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// BcryptPolicy stores bcrypt hashes. Records that still hold a plaintext
// password never match, so mixed data sets need a migration first.
type BcryptPolicy struct {
	Cost int
}

func (BcryptPolicy) Name() string { return "bcrypt" }

func (p BcryptPolicy) Seal(password string) (string, error) {
	cost := p.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (BcryptPolicy) Matches(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// PolicyByName maps the AUTH_CREDENTIALS setting to a policy.
func PolicyByName(name string) (CredentialPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "plaintext":
		return PlaintextPolicy{}, nil
	case "bcrypt":
		return BcryptPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown credential policy %q", name)
	}
}
