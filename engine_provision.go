package mentorbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/mentorbridge/mentorbridge/password"
)

// Provision creates an account of any role, admin included, outside the
// self-service path. It is idempotent on email: an existing account is
// returned unchanged with created false. No token is issued.
func (e *Engine) Provision(ctx context.Context, req RegisterRequest) (user User, created bool, err error) {
	if e == nil || e.credentials == nil {
		return User{}, false, ErrEngineNotReady
	}

	input, err := e.accountInput(req, true)
	if err != nil {
		return User{}, false, err
	}

	existing, err := e.credentials.GetUserByEmail(ctx, input.Email)
	switch {
	case err == nil:
		return existing.User, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return User{}, false, e.backendError("provision.lookup", err)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordPolicy) {
			return User{}, false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return User{}, false, e.backendError("provision.hash", err)
	}
	input.PasswordHash = hash

	rec, err := e.credentials.CreateUser(ctx, input)
	if errors.Is(err, ErrAccountExists) {
		rec, err = e.credentials.GetUserByEmail(ctx, input.Email)
		if err != nil {
			return User{}, false, e.backendError("provision.lookup", err)
		}
		return rec.User, false, nil
	}
	if err != nil {
		return User{}, false, e.backendError("provision.create", err)
	}

	e.emitAudit(ctx, auditEventAccountProvisioned, true, rec.ID, rec.Role(), "", nil, nil)
	return rec.User, true, nil
}
