package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/infrastructure/logger"
	"github.com/taskmaster/taskclient/internal/ports"
)

// SessionKey is the storage key holding the serialized current identity.
const SessionKey = "current_user"

// SessionStore owns the current identity. It is the only writer of session
// state; everything else reads through ports.SessionReader.
type SessionStore struct {
	storage ports.SessionStorage
	logger  *logger.Logger

	mu      sync.RWMutex
	current *entities.Identity

	// notifyMu serializes writes with their notifications so subscribers see
	// values in call order.
	notifyMu    sync.Mutex
	subscribers map[int]func(*entities.Identity)
	nextID      int
}

// NewSessionStore creates a session store and restores any persisted session.
func NewSessionStore(storage ports.SessionStorage, logger *logger.Logger) *SessionStore {
	s := &SessionStore{
		storage:     storage,
		logger:      logger.WithComponent("session"),
		subscribers: make(map[int]func(*entities.Identity)),
	}
	s.current = s.restore()
	return s
}

// restore reads the persisted identity. Missing or corrupt records yield no
// session.
func (s *SessionStore) restore() *entities.Identity {
	raw, ok, err := s.storage.Get(SessionKey)
	if err != nil {
		s.logger.Warnw("Failed to read stored session", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var identity entities.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		s.logger.Warnw("Ignoring malformed stored session", "error", err)
		return nil
	}
	if !identity.Valid() {
		s.logger.Warnw("Ignoring incomplete stored session", "id", identity.ID)
		return nil
	}
	return &identity
}

// SetCurrent persists identity and makes it the current session. When the
// write fails the previous session stays in place.
func (s *SessionStore) SetCurrent(identity *entities.Identity) error {
	if !identity.Valid() {
		return fmt.Errorf("%w: identity needs an id and an email", entities.ErrInvalidInput)
	}

	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	copied := *identity

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if err := s.storage.Set(SessionKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	s.mu.Lock()
	s.current = &copied
	s.mu.Unlock()

	s.logger.Debugw("Session set", "user_id", copied.ID)
	s.publish(&copied)
	return nil
}

// Current returns a copy of the current identity.
func (s *SessionStore) Current() (*entities.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	identity := *s.current
	return &identity, true
}

// IsAuthenticated reports whether a session is present.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Logout removes the persisted record and clears the session. The in-memory
// session is cleared even when the record cannot be removed; the removal error
// is still returned. Subscribers are only notified when there was a session to
// clear.
func (s *SessionStore) Logout() error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	removeErr := s.storage.Remove(SessionKey)
	if removeErr != nil {
		s.logger.Warnw("Failed to remove persisted session", "error", removeErr)
	}

	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.mu.Unlock()

	if had {
		s.logger.Debug("Session cleared")
		s.publish(nil)
	}

	if removeErr != nil {
		return fmt.Errorf("failed to remove session: %w", removeErr)
	}
	return nil
}

// Subscribe registers fn for every session change, in registration order.
// fn is called immediately with the current value and must not call back
// into the store's write methods. The returned func removes the subscription.
func (s *SessionStore) Subscribe(fn func(*entities.Identity)) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	current, _ := s.Current()
	fn(current)

	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.subscribers, id)
	}
}

// publish must be called with notifyMu held.
func (s *SessionStore) publish(identity *entities.Identity) {
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		var v *entities.Identity
		if identity != nil {
			c := *identity
			v = &c
		}
		s.subscribers[id](v)
	}
}
