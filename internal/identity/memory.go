package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store backed by process memory. It mirrors the
// transactional behaviour of the PostgreSQL store, including rollback on
// error, and is used by tests and local development.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState

	// AuditErr, when set, makes AppendAudit fail so tests can prove that the
	// paired mutation rolls back.
	AuditErr error
}

type memState struct {
	users    map[int64]User
	roles    map[int64]Role
	perms    map[int64]Permission
	grants   map[int64]map[int64]struct{}
	audits   []AuditEntry
	nextUser int64
	nextRole int64
	nextPerm int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users:  make(map[int64]User),
		roles:  make(map[int64]Role),
		perms:  make(map[int64]Permission),
		grants: make(map[int64]map[int64]struct{}),
	}}
}

var _ Store = (*MemoryStore)(nil)

func (st *memState) clone() *memState {
	next := &memState{
		users:    make(map[int64]User, len(st.users)),
		roles:    make(map[int64]Role, len(st.roles)),
		perms:    make(map[int64]Permission, len(st.perms)),
		grants:   make(map[int64]map[int64]struct{}, len(st.grants)),
		audits:   append([]AuditEntry(nil), st.audits...),
		nextUser: st.nextUser,
		nextRole: st.nextRole,
		nextPerm: st.nextPerm,
	}
	for id, u := range st.users {
		next.users[id] = u
	}
	for id, r := range st.roles {
		next.roles[id] = r
	}
	for id, p := range st.perms {
		next.perms[id] = p
	}
	for roleID, set := range st.grants {
		copied := make(map[int64]struct{}, len(set))
		for permID := range set {
			copied[permID] = struct{}{}
		}
		next.grants[roleID] = copied
	}
	return next
}

func (m *MemoryStore) CreateUser(ctx context.Context, username, email, passwordHash string, roleID int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.state.users {
		if strings.EqualFold(u.Email, email) || u.Username == username {
			return User{}, ErrDuplicateIdentity
		}
	}
	if _, ok := m.state.roles[roleID]; !ok {
		return User{}, ErrUnknownRole
	}
	m.state.nextUser++
	now := time.Now().UTC()
	user := User{
		ID:           m.state.nextUser,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		RoleID:       roleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.state.users[user.ID] = user
	return user, nil
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.state.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrUnknownUser
}

func (m *MemoryStore) FindUserByID(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.findUser(id)
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]UserWithRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UserWithRole, 0, len(m.state.users))
	for _, u := range m.state.users {
		role := m.state.roles[u.RoleID]
		out = append(out, UserWithRole{User: u, RoleName: role.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) FindRoleByID(ctx context.Context, id int64) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.findRole(id)
}

func (m *MemoryStore) FindRoleByName(ctx context.Context, name string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.findRoleByName(name)
}

func (m *MemoryStore) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Role, 0, len(m.state.roles))
	for _, r := range m.state.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) FindPermissionByName(ctx context.Context, name string) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.findPermByName(name)
}

func (m *MemoryStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Permission, 0, len(m.state.perms))
	for _, p := range m.state.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.rolePermissions(roleID), nil
}

// WithTx clones the current state, runs fn against the clone and swaps it in
// only when fn succeeds.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.state.clone()
	tx := &memTx{store: m, state: staged}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = staged
	return nil
}

// AuditEntries returns the committed audit log, oldest first.
func (m *MemoryStore) AuditEntries() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.state.audits...)
}

// SetUserActive toggles the activity flag; helper for tests.
func (m *MemoryStore) SetUserActive(id int64, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.state.users[id]; ok {
		u.IsActive = active
		m.state.users[id] = u
	}
}

type memTx struct {
	store *MemoryStore
	state *memState
}

var _ TxStore = (*memTx)(nil)

func (t *memTx) FindUserByID(ctx context.Context, id int64) (User, error) {
	return t.state.findUser(id)
}

func (t *memTx) FindRoleByID(ctx context.Context, id int64) (Role, error) {
	return t.state.findRole(id)
}

func (t *memTx) FindRoleByName(ctx context.Context, name string) (Role, error) {
	return t.state.findRoleByName(name)
}

func (t *memTx) FindPermissionByName(ctx context.Context, name string) (Permission, error) {
	return t.state.findPermByName(name)
}

func (t *memTx) CreateRole(ctx context.Context, name string) (Role, error) {
	canonical := CanonicalName(name)
	for _, r := range t.state.roles {
		if r.Name == canonical {
			return Role{}, ErrDuplicateRole
		}
	}
	t.state.nextRole++
	role := Role{ID: t.state.nextRole, Name: canonical, CreatedAt: time.Now().UTC()}
	t.state.roles[role.ID] = role
	return role, nil
}

func (t *memTx) DeleteRole(ctx context.Context, id int64) (Role, error) {
	role, err := t.state.findRole(id)
	if err != nil {
		return Role{}, err
	}
	if role.Name == RoleAdmin {
		return Role{}, ErrProtectedRole
	}
	for _, u := range t.state.users {
		if u.RoleID == id {
			return Role{}, ErrRoleInUse
		}
	}
	delete(t.state.roles, id)
	delete(t.state.grants, id)
	return role, nil
}

func (t *memTx) CreatePermission(ctx context.Context, name string) (Permission, error) {
	for _, p := range t.state.perms {
		if p.Name == name {
			return Permission{}, ErrDuplicatePermission
		}
	}
	t.state.nextPerm++
	perm := Permission{ID: t.state.nextPerm, Name: name}
	t.state.perms[perm.ID] = perm
	return perm, nil
}

func (t *memTx) GrantPermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	set, ok := t.state.grants[roleID]
	if !ok {
		set = make(map[int64]struct{})
		t.state.grants[roleID] = set
	}
	if _, granted := set[permissionID]; granted {
		return false, nil
	}
	set[permissionID] = struct{}{}
	return true, nil
}

func (t *memTx) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	set, ok := t.state.grants[roleID]
	if !ok {
		return ErrNotGranted
	}
	if _, granted := set[permissionID]; !granted {
		return ErrNotGranted
	}
	delete(set, permissionID)
	return nil
}

func (t *memTx) ReassignUserRole(ctx context.Context, userID, roleID int64) error {
	user, err := t.state.findUser(userID)
	if err != nil {
		return err
	}
	if _, err := t.state.findRole(roleID); err != nil {
		return err
	}
	user.RoleID = roleID
	user.UpdatedAt = time.Now().UTC()
	t.state.users[userID] = user
	return nil
}

func (t *memTx) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if t.store.AuditErr != nil {
		return t.store.AuditErr
	}
	t.state.audits = append(t.state.audits, entry)
	return nil
}

func (st *memState) findUser(id int64) (User, error) {
	u, ok := st.users[id]
	if !ok {
		return User{}, ErrUnknownUser
	}
	return u, nil
}

func (st *memState) findRole(id int64) (Role, error) {
	r, ok := st.roles[id]
	if !ok {
		return Role{}, ErrUnknownRole
	}
	return r, nil
}

func (st *memState) findRoleByName(name string) (Role, error) {
	canonical := CanonicalName(name)
	for _, r := range st.roles {
		if r.Name == canonical {
			return r, nil
		}
	}
	return Role{}, ErrUnknownRole
}

func (st *memState) findPermByName(name string) (Permission, error) {
	for _, p := range st.perms {
		if p.Name == name {
			return p, nil
		}
	}
	return Permission{}, ErrUnknownPermission
}

func (st *memState) rolePermissions(roleID int64) []Permission {
	set := st.grants[roleID]
	out := make([]Permission, 0, len(set))
	for permID := range set {
		if p, ok := st.perms[permID]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
