package permission

import (
	"errors"
	"fmt"
	"sync"
)

// Action names a protected operation.
type Action string

const (
	ActionViewMe            Action = "view_me"
	ActionEditProfile       Action = "edit_profile"
	ActionListSessions      Action = "list_sessions"
	ActionBookSession       Action = "book_session"
	ActionTransitionSession Action = "transition_session"
	ActionSendMessage       Action = "send_message"
	ActionListMessages      Action = "list_messages"
	ActionSubmitFeedback    Action = "submit_feedback"
	ActionViewStats         Action = "view_stats"
)

// Table maps actions to the roles allowed to invoke them.
// A table is populated at startup and frozen before use.
type Table struct {
	mu      sync.RWMutex
	actions map[Action]RoleSet
	frozen  bool
}

// NewTable returns an empty, unfrozen table.
func NewTable() *Table {
	return &Table{actions: make(map[Action]RoleSet)}
}

// DefaultTable returns the frozen platform capability table.
func DefaultTable() *Table {
	t := NewTable()
	all := AnyRole()
	participants := NewRoleSet(RoleStudent, RoleMentor)

	_ = t.Register(ActionViewMe, all)
	_ = t.Register(ActionEditProfile, all)
	_ = t.Register(ActionSendMessage, all)
	_ = t.Register(ActionListMessages, all)
	_ = t.Register(ActionListSessions, all)
	_ = t.Register(ActionBookSession, NewRoleSet(RoleStudent))
	_ = t.Register(ActionSubmitFeedback, NewRoleSet(RoleStudent))
	_ = t.Register(ActionTransitionSession, participants)
	_ = t.Register(ActionViewStats, NewRoleSet(RoleAdmin))
	t.Freeze()
	return t
}

// Register binds action to roles. An empty role set is rejected because it
// would make the action unreachable.
func (t *Table) Register(action Action, roles RoleSet) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.New("capability table frozen")
	}
	if action == "" {
		return errors.New("action name cannot be empty")
	}
	if roles.Empty() {
		return errors.New("action requires at least one role")
	}
	if _, exists := t.actions[action]; exists {
		return errors.New("action already registered: " + string(action))
	}

	t.actions[action] = roles
	return nil
}

// Freeze makes the table read-only.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Required returns the role set for action.
func (t *Table) Required(action Action) (RoleSet, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roles, ok := t.actions[action]
	return roles, ok
}

// Require returns nil when role may perform action, [ErrForbidden] when it
// may not, and [ErrUnknownAction] when action was never registered.
func (t *Table) Require(action Action, role Role) error {
	roles, ok := t.Required(action)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if !roles.Has(role) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, action, roles)
	}
	return nil
}

// Count returns the number of registered actions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.actions)
}
