// Package presence tracks which connections have joined the chat and the
// user record attached to each of them.
package presence

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"
)

var (
	// ErrDuplicateConnection is returned by Register when the connection id
	// already has a user attached.
	ErrDuplicateConnection = errors.New("presence: connection already registered")

	// ErrNotFound is returned when no user is registered for a connection id.
	ErrNotFound = errors.New("presence: connection not registered")
)

// User is the presence record of one joined connection.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
	JoinedAt time.Time `json:"joinedAt"`
	IsTyping bool      `json:"isTyping"`
}

type entry struct {
	user User
	seq  uint64
}

// Registry maps live connection ids to user records. All methods are safe
// for concurrent use and return copies, never references into the map.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*entry
	seq   uint64
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock used to stamp JoinedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		users: make(map[string]*entry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register attaches a new user to the connection id. Usernames are not
// required to be unique.
func (r *Registry) Register(id, username, avatar string) (User, error) {
	joinedAt := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[id]; exists {
		return User{}, ErrDuplicateConnection
	}

	r.seq++
	e := &entry{
		user: User{
			ID:       id,
			Username: username,
			Avatar:   avatar,
			JoinedAt: joinedAt,
		},
		seq: r.seq,
	}
	r.users[id] = e
	return e.user, nil
}

// Deregister removes the user attached to id and returns its last state.
// Calling it again for the same id returns ErrNotFound.
func (r *Registry) Deregister(id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.users[id]
	if !exists {
		return User{}, ErrNotFound
	}
	delete(r.users, id)
	return e.user, nil
}

// Get returns the user attached to id.
func (r *Registry) Get(id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.users[id]
	if !exists {
		return User{}, ErrNotFound
	}
	return e.user, nil
}

// SetTyping updates the typing flag of the user attached to id.
func (r *Registry) SetTyping(id string, typing bool) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.users[id]
	if !exists {
		return User{}, ErrNotFound
	}
	e.user.IsTyping = typing
	return e.user, nil
}

// List returns a point-in-time copy of all users in join order.
func (r *Registry) List() []User {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.users))
	for _, e := range r.users {
		entries = append(entries, e)
	}
	users := make([]User, len(entries))
	slices.SortFunc(entries, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })
	for i, e := range entries {
		users[i] = e.user
	}
	r.mu.RUnlock()
	return users
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
