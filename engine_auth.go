package mentorbridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mentorbridge/mentorbridge/internal/rate"
	"github.com/mentorbridge/mentorbridge/password"
	"github.com/sirupsen/logrus"
)

var fieldValidator = validator.New(validator.WithRequiredStructEnabled())

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a student or mentor account and signs it in. Admin
// accounts cannot be self-registered.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (AuthToken, User, error) {
	if e == nil || e.credentials == nil {
		return AuthToken{}, User{}, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRegister(ctx, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricRegisterRateLimited)
				e.emitRateLimit(ctx, "register", nil)
				return AuthToken{}, User{}, ErrRegisterRateLimited
			}
			return AuthToken{}, User{}, e.backendError("register.rate", err)
		}
	}

	input, err := e.accountInput(req, false)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", "", err, nil)
		return AuthToken{}, User{}, err
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordPolicy) {
			return AuthToken{}, User{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return AuthToken{}, User{}, e.backendError("register.hash", err)
	}
	input.PasswordHash = hash

	rec, err := e.credentials.CreateUser(ctx, input)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", "", err, func() map[string]string {
				return map[string]string{"email": input.Email}
			})
			return AuthToken{}, User{}, ErrAccountExists
		}
		return AuthToken{}, User{}, e.backendError("register.create", err)
	}

	token, err := e.Issue(ctx, Identity{UserID: rec.ID, Role: rec.Role()})
	if err != nil {
		return AuthToken{}, User{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, rec.ID, rec.Role(), "", nil, nil)

	return token, rec.User, nil
}

func (e *Engine) accountInput(req RegisterRequest, allowAdmin bool) (CreateUserInput, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return CreateUserInput{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email := normalizeEmail(req.Email)
	if err := fieldValidator.Var(email, "required,email,max=254"); err != nil {
		return CreateUserInput{}, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if err := e.passwordHash.CheckPolicy(req.Password); err != nil {
		return CreateUserInput{}, fmt.Errorf("%w: password must be %d to %d bytes",
			ErrInvalidInput, e.config.Password.MinPasswordBytes, e.config.Password.MaxPasswordBytes)
	}

	role := RoleStudent
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := ParseRole(req.Role)
		if err != nil {
			return CreateUserInput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		role = parsed
	}

	var profile Profile
	switch role {
	case RoleStudent:
		if len(req.Expertise) > 0 || req.YearsExperience != 0 {
			return CreateUserInput{}, ErrMentorFieldsNotAllowed
		}
		profile = StudentProfile{}
	case RoleMentor:
		if req.YearsExperience < 0 {
			return CreateUserInput{}, fmt.Errorf("%w: years_experience must be >= 0", ErrInvalidInput)
		}
		profile = MentorProfile{
			Expertise:       cleanTags(req.Expertise),
			YearsExperience: req.YearsExperience,
		}
	case RoleAdmin:
		if !allowAdmin {
			return CreateUserInput{}, ErrRoleNotSelfAssignable
		}
		if len(req.Expertise) > 0 || req.YearsExperience != 0 {
			return CreateUserInput{}, ErrMentorFieldsNotAllowed
		}
		profile = AdminProfile{}
	default:
		return CreateUserInput{}, ErrRoleNotSelfAssignable
	}

	return CreateUserInput{
		Name:    name,
		Email:   email,
		College: strings.TrimSpace(req.College),
		Bio:     strings.TrimSpace(req.Bio),
		Skills:  cleanTags(req.Skills),
		Profile: profile,
	}, nil
}

// Login verifies email and password and issues a token. An unknown email and
// a wrong password produce the same [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, email, plaintext string) (AuthToken, User, error) {
	if e == nil || e.credentials == nil || e.passwordHash == nil {
		return AuthToken{}, User{}, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return AuthToken{}, User{}, e.loginRateLimited(ctx, email)
			}
			return AuthToken{}, User{}, e.backendError("login.rate", err)
		}
	}

	if email == "" || plaintext == "" {
		return AuthToken{}, User{}, e.loginFailed(ctx, email, ip, "", "empty_credentials")
	}

	rec, err := e.credentials.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrNotFound) {
			return AuthToken{}, User{}, e.loginFailed(ctx, email, ip, "", "user_not_found")
		}
		return AuthToken{}, User{}, e.backendError("login.lookup", err)
	}

	ok, err := e.passwordHash.Verify(plaintext, rec.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordPolicy) {
		e.logger.WithFields(logrus.Fields{
			"user_id": rec.ID,
			"error":   err.Error(),
		}).Warn("stored password hash rejected")
	}
	if err != nil || !ok {
		return AuthToken{}, User{}, e.loginFailed(ctx, email, ip, rec.ID, "bad_password")
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, email, ip); err != nil {
			e.logger.WithField("error", err.Error()).Warn("login limiter reset failed")
		}
	}

	if e.config.Password.UpgradeOnLogin && e.passwordHash.NeedsRehash(rec.PasswordHash) {
		e.rehash(ctx, rec.ID, plaintext)
	}

	token, err := e.Issue(ctx, Identity{UserID: rec.ID, Role: rec.Role()})
	if err != nil {
		return AuthToken{}, User{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, rec.Role(), "", nil, nil)

	return token, rec.User, nil
}

func (e *Engine) loginRateLimited(ctx context.Context, email string) error {
	e.metricInc(MetricLoginRateLimited)
	e.emitRateLimit(ctx, "login", func() map[string]string {
		return map[string]string{"identifier": email}
	})
	return ErrLoginRateLimited
}

func (e *Engine) loginFailed(ctx context.Context, email, ip, userID, reason string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return e.loginRateLimited(ctx, email)
			}
			e.logger.WithField("error", err.Error()).Warn("login limiter increment failed")
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", "", ErrInvalidCredentials, func() map[string]string {
		meta := map[string]string{
			"identifier": email,
			"reason":     reason,
		}
		if e.rateLimiter != nil && e.config.Security.MaxLoginAttempts > 0 {
			if n, err := e.rateLimiter.GetLoginAttempts(ctx, email); err == nil {
				meta["attempts"] = strconv.Itoa(n)
			}
		}
		return meta
	})
	return ErrInvalidCredentials
}

// rehash replaces a legacy or weaker hash after a successful login. Failure
// only costs the upgrade.
func (e *Engine) rehash(ctx context.Context, userID, plaintext string) {
	hash, err := e.passwordHash.Hash(plaintext)
	if err == nil {
		err = e.credentials.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("password rehash failed")
		return
	}
	e.metricInc(MetricPasswordRehashed)
	e.emitAudit(ctx, auditEventPasswordRehashed, true, userID, "", "", nil, nil)
}

/*
====================================
TOKEN AUTHORITY
====================================
*/

// Issue signs a token for id. The token expires Config.JWT.AccessTTL after
// issuance, truncated to whole seconds.
func (e *Engine) Issue(ctx context.Context, id Identity) (AuthToken, error) {
	if e == nil || e.jwtManager == nil {
		return AuthToken{}, ErrEngineNotReady
	}
	if strings.TrimSpace(id.UserID) == "" || !id.Role.Valid() {
		return AuthToken{}, fmt.Errorf("%w: identity requires user id and role", ErrInvalidInput)
	}

	var version uint64
	if e.versions != nil {
		v, err := e.versions.Current(ctx, id.UserID)
		if err != nil {
			return AuthToken{}, e.backendError("issue.version", err)
		}
		version = v
	}

	issued, err := e.jwtManager.CreateAccess(id.UserID, string(id.Role), version)
	if err != nil {
		return AuthToken{}, e.backendError("issue.sign", err)
	}

	return AuthToken{
		Value:     issued.Token,
		UserID:    id.UserID,
		IssuedAt:  issued.IssuedAt,
		ExpiresAt: issued.ExpiresAt,
	}, nil
}

// Validate resolves a token to an [Identity]. Malformed, expired and revoked
// tokens, and tokens whose user no longer exists, fail with an error matching
// [ErrUnauthenticated]. The returned role is the stored role, not the claim.
func (e *Engine) Validate(ctx context.Context, token string) (*Identity, error) {
	if e == nil || e.jwtManager == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricValidateLatency, start)

	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return nil, e.rejectToken(ctx, "", fmt.Errorf("%w: %w", ErrUnauthenticated, err))
	}

	if e.versions != nil {
		current, err := e.versions.Current(ctx, claims.UID)
		if err != nil {
			e.metricInc(MetricValidateFailure)
			return nil, e.backendError("validate.version", err)
		}
		if claims.Version < current {
			return nil, e.rejectToken(ctx, claims.UID, ErrTokenRevoked)
		}
	}

	rec, err := e.credentials.GetUserByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrNotFound) {
			return nil, e.rejectToken(ctx, claims.UID, fmt.Errorf("%w: user no longer exists", ErrUnauthenticated))
		}
		e.metricInc(MetricValidateFailure)
		return nil, e.backendError("validate.lookup", err)
	}

	e.metricInc(MetricValidateSuccess)

	id := &Identity{
		UserID:  rec.ID,
		Role:    rec.Role(),
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (e *Engine) rejectToken(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricValidateFailure)
	e.emitAudit(ctx, auditEventTokenRejected, false, userID, "", "", err, nil)
	return err
}

// RevokeAll invalidates every token issued to userID so far. It returns
// [ErrRevocationDisabled] unless Config.Revocation.Enabled is set; tokens
// then remain valid until natural expiry.
func (e *Engine) RevokeAll(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.versions == nil {
		return ErrRevocationDisabled
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if _, err := e.versions.Bump(ctx, userID); err != nil {
		return e.backendError("revoke_all", err)
	}
	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, userID, "", "", nil, nil)
	return nil
}

/*
====================================
AUTHORIZATION GUARD
====================================
*/

// Authorize validates token and checks the resolved role against roles.
// An empty set admits any authenticated identity. Resolution failures match
// [ErrUnauthenticated]; a role outside roles yields [ErrForbidden].
func (e *Engine) Authorize(ctx context.Context, token string, roles RoleSet) (*Identity, error) {
	id, err := e.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !roles.Empty() && !roles.Has(id.Role) {
		e.metricInc(MetricAuthorizeDenied)
		e.emitAudit(ctx, auditEventAccessDenied, false, id.UserID, id.Role, "", ErrForbidden, func() map[string]string {
			return map[string]string{"required": roles.String()}
		})
		return nil, fmt.Errorf("%w: role %s not in %s", ErrForbidden, id.Role, roles)
	}
	return id, nil
}

// AuthorizeAction is Authorize with the role set taken from the capability
// table entry for action.
func (e *Engine) AuthorizeAction(ctx context.Context, token string, action Action) (*Identity, error) {
	if e == nil || e.capabilities == nil {
		return nil, ErrEngineNotReady
	}
	roles, ok := e.capabilities.Required(action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %s", ErrForbidden, action)
	}
	return e.Authorize(ctx, token, roles)
}
