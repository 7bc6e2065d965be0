package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seersec/seer/internal/identity"
)

// Decision is the outcome of a capability check. Every check yields exactly
// Allow or Deny; store failures are returned as errors, never as Deny.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// DecisionObserver receives every decision outcome, e.g. for metrics.
type DecisionObserver interface {
	ObserveAuthz(allowed bool)
}

// Engine decides whether a principal may perform an action. Both entry points
// re-read role and permission data from the identity store at decision time,
// so a grant revoked after token issuance denies immediately.
type Engine struct {
	store    identity.Store
	logger   *slog.Logger
	observer DecisionObserver
}

// NewEngine constructs an Engine backed by the given store. observer may be
// nil.
func NewEngine(store identity.Store, logger *slog.Logger, observer DecisionObserver) *Engine {
	return &Engine{store: store, logger: logger, observer: observer}
}

// RequireRole allows iff the principal's current role name equals roleName
// under case-insensitive comparison.
func (e *Engine) RequireRole(ctx context.Context, p *Principal, roleName string) (Decision, error) {
	role, err := e.store.FindRoleByID(ctx, p.RoleID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownRole) {
			return e.decided(p, "role:"+roleName, Deny("user role not found")), nil
		}
		return Decision{}, err
	}
	if !strings.EqualFold(role.Name, roleName) {
		reason := fmt.Sprintf("role mismatch: required %s, user has %s", identity.CanonicalName(roleName), role.Name)
		return e.decided(p, "role:"+roleName, Deny(reason)), nil
	}
	return e.decided(p, "role:"+roleName, Allow()), nil
}

// RequirePermission allows iff the principal's current role grants a
// permission whose name equals permissionName exactly.
func (e *Engine) RequirePermission(ctx context.Context, p *Principal, permissionName string) (Decision, error) {
	role, err := e.store.FindRoleByID(ctx, p.RoleID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownRole) {
			return e.decided(p, "permission:"+permissionName, Deny("user role not found")), nil
		}
		return Decision{}, err
	}
	perms, err := e.store.RolePermissions(ctx, role.ID)
	if err != nil {
		return Decision{}, err
	}
	for _, perm := range perms {
		if perm.Name == permissionName {
			return e.decided(p, "permission:"+permissionName, Allow()), nil
		}
	}
	reason := fmt.Sprintf("missing permission: %s for role %s", permissionName, role.Name)
	return e.decided(p, "permission:"+permissionName, Deny(reason)), nil
}

func (e *Engine) decided(p *Principal, capability string, d Decision) Decision {
	if e.observer != nil {
		e.observer.ObserveAuthz(d.Allowed)
	}
	if e.logger != nil {
		e.logger.Info("authorization decision",
			slog.String("email", p.Email),
			slog.String("capability", capability),
			slog.Bool("allowed", d.Allowed),
			slog.String("reason", d.Reason),
		)
	}
	return d
}
