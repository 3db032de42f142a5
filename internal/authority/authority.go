// Package authority gates privileged vault operations. The deployed model is a
// single admin API key, stored only as a bcrypt hash in configuration; the
// interface stays narrow so a role list could replace it later.
package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized indicates the presented credential does not grant the
// requested action. The operation aborts before any state is touched.
var ErrUnauthorized = errors.New("caller is not authorized")

// Authority decides whether a presented credential may perform privileged
// operations such as reward rate changes.
type Authority interface {
	Authorize(ctx context.Context, credential string) error
}

// AdminKey authorizes callers presenting the admin API key matching the
// configured bcrypt hash.
type AdminKey struct {
	hash []byte
}

// NewAdminKey builds an admin-key authority from a bcrypt hash string.
func NewAdminKey(hash string) (*AdminKey, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, fmt.Errorf("admin key hash is required")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid admin key hash: %w", err)
	}
	return &AdminKey{hash: []byte(hash)}, nil
}

// Authorize compares the presented key against the stored hash.
func (a *AdminKey) Authorize(_ context.Context, credential string) error {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(credential)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// Static is a fixed allow/deny authority for tests and for locked-down
// deployments with no admin key configured.
type Static struct {
	Allow bool
}

// Authorize returns ErrUnauthorized unless the authority allows everything.
func (s Static) Authorize(context.Context, string) error {
	if !s.Allow {
		return ErrUnauthorized
	}
	return nil
}
