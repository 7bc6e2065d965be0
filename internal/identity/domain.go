package identity

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Well-known role names. ADMIN is protected and can never be deleted; USER is
// the default role assigned at registration.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Permission names checked by the authorization engine.
const (
	PermManageUsers       = "MANAGE_USERS"
	PermManageRoles       = "MANAGE_ROLES"
	PermManagePermissions = "MANAGE_PERMISSIONS"
	PermViewAdminStats    = "VIEW_ADMIN_STATS"
	PermViewAuditLogs     = "VIEW_AUDIT_LOGS"
	PermViewThreats       = "VIEW_THREATS"
	PermManageThreats     = "MANAGE_THREATS"
	PermViewContent       = "VIEW_CONTENT"
)

// Sentinel errors surfaced by Store implementations.
var (
	ErrDuplicateIdentity   = errors.New("identity: email or username already registered")
	ErrDuplicateRole       = errors.New("identity: role already exists")
	ErrDuplicatePermission = errors.New("identity: permission already exists")
	ErrUnknownUser         = errors.New("identity: user not found")
	ErrUnknownRole         = errors.New("identity: role not found")
	ErrUnknownPermission   = errors.New("identity: permission not found")
	ErrProtectedRole       = errors.New("identity: cannot delete the ADMIN role")
	ErrRoleInUse           = errors.New("identity: role has assigned users")
	ErrNotGranted          = errors.New("identity: permission not assigned to role")
)

var upper = cases.Upper(language.Und)

// CanonicalName normalises a role name to the canonical upper case used for
// storage and comparison.
func CanonicalName(name string) string {
	return upper.String(strings.TrimSpace(name))
}

// User represents an account. PasswordHash is opaque and never serialised.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	RoleID       int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithRole pairs a user with its current role name for listings.
type UserWithRole struct {
	User
	RoleName string
}

// Role is a named collection of permissions. Every user references exactly
// one role.
type Role struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Permission is an atomic named capability.
type Permission struct {
	ID   int64
	Name string
}

// AuditEntry describes a privileged mutation appended to the audit log. It is
// written on the same transaction as the mutation it records.
type AuditEntry struct {
	AdminID            int64
	Action             string
	TargetUserID       *int64
	TargetRoleID       *int64
	TargetPermissionID *int64
}
