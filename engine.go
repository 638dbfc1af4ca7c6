package mentorbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mentorbridge/mentorbridge/booking"
	internalaudit "github.com/mentorbridge/mentorbridge/internal/audit"
	"github.com/mentorbridge/mentorbridge/internal/rate"
	"github.com/mentorbridge/mentorbridge/jwt"
	"github.com/mentorbridge/mentorbridge/password"
	"github.com/mentorbridge/mentorbridge/permission"
	"github.com/sirupsen/logrus"
)

// Engine is the request-driven core: it issues and validates tokens, guards
// every protected action and runs the booking state machine. It holds no
// per-user state between calls beyond what its stores persist, and is safe
// for concurrent use.
type Engine struct {
	config       Config
	credentials  CredentialStore
	messages     MessageStore
	feedback     FeedbackStore
	bookings     *booking.Machine
	capabilities *permission.Table
	rateLimiter  *rate.Limiter
	versions     *tokenVersions
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
	logger       logrus.FieldLogger
	now          func() time.Time

	// senderLocks serializes SendMessage per sender so created_at never
	// goes backwards for one sender. Senders share stripes by hash.
	senderLocks [senderLockStripes]sync.Mutex
}

const senderLockStripes = 64

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Metrics returns the Engine's counters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Capabilities returns the frozen action table.
func (e *Engine) Capabilities() *permission.Table {
	return e.capabilities
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// backendError logs err with op and wraps it in [ErrBackendUnavailable]
// unless it already carries one of the expected kinds.
func (e *Engine) backendError(op string, err error) error {
	if err == nil || isExpected(err) {
		return err
	}
	e.logger.WithFields(logrus.Fields{
		"op":    op,
		"error": err.Error(),
	}).Error("backend failure")
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func isExpected(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrStoreNotConfigured) ||
		errors.Is(err, ErrRevocationDisabled)
}

func (e *Engine) require(id *Identity, action Action) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if id == nil {
		return ErrUnauthenticated
	}
	if err := e.capabilities.Require(action, id.Role); err != nil {
		e.metricInc(MetricAuthorizeDenied)
		if errors.Is(err, permission.ErrUnknownAction) {
			return fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return err
	}
	return nil
}

// credentialDirectory exposes a CredentialStore to the booking machine.
type credentialDirectory struct {
	store CredentialStore
}

func (d credentialDirectory) LookupRole(ctx context.Context, userID string) (permission.Role, error) {
	rec, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrNotFound) {
			return "", booking.ErrUnknownUser
		}
		return "", err
	}
	return rec.Role(), nil
}
