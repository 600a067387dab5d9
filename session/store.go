package session

import (
	"context"
	"sync"
	"time"
)

// Persister stores the session outside the process so it survives a restart.
//
// Load returns an empty Session and a nil error when nothing is persisted.
type Persister interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context) error
}

// Rotator is implemented by persisters that can replace the persisted token only while
// a session is still persisted. A false result means another writer cleared the session.
type Rotator interface {
	Rotate(ctx context.Context, token string, at time.Time) (bool, error)
}

// Store is the in-memory session of one client process, optionally written through to a
// [Persister]. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	current   Session
	epoch     uint64
	persister Persister
	now       func() time.Time
}

// NewStore returns an anonymous Store that writes through to p. A nil p keeps the
// session in memory only.
func NewStore(p Persister) *Store {
	return &Store{
		persister: p,
		now:       time.Now,
	}
}

// NewMemoryStore returns an anonymous Store without persistence.
func NewMemoryStore() *Store {
	return NewStore(nil)
}

// Load replaces the in-memory session with the persisted one. It is called once at
// process start; a Store without a persister is left untouched.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister == nil {
		return nil
	}

	loaded, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}

	s.epoch++
	if !loaded.Authenticated() {
		s.current = Session{Epoch: s.epoch}
		return nil
	}
	s.current = Session{
		Token:     loaded.Token,
		Role:      loaded.Role,
		UpdatedAt: loaded.UpdatedAt,
		Epoch:     s.epoch,
	}
	return nil
}

// Get returns a copy of the current session.
func (s *Store) Get() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// State returns the current state label.
func (s *Store) State() State {
	return s.Get().State()
}

// Set overwrites token and role and starts a new epoch. An empty token clears the
// session instead, keeping role meaningful only alongside a token.
func (s *Store) Set(ctx context.Context, token, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" {
		return s.clearLocked(ctx)
	}

	s.epoch++
	s.current = Session{
		Token:     token,
		Role:      role,
		UpdatedAt: s.now(),
		Epoch:     s.epoch,
	}
	if s.persister == nil {
		return nil
	}
	return s.persister.Save(ctx, s.current)
}

// Rotate replaces only the token. It reports whether the token was replaced; a Store
// that is anonymous, or an empty token, leaves the session unchanged.
func (s *Store) Rotate(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotateLocked(ctx, token)
}

// RotateAt behaves like Rotate but only while the session is still in epoch.
func (s *Store) RotateAt(ctx context.Context, epoch uint64, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Epoch != epoch {
		return false, nil
	}
	return s.rotateLocked(ctx, token)
}

// Clear empties token and role.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// ClearAt clears the session only while it is still in epoch. It reports whether the
// session was cleared.
func (s *Store) ClearAt(ctx context.Context, epoch uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Epoch != epoch {
		return false, nil
	}
	return true, s.clearLocked(ctx)
}

func (s *Store) rotateLocked(ctx context.Context, token string) (bool, error) {
	if token == "" || !s.current.Authenticated() {
		return false, nil
	}

	s.current.Token = token
	s.current.UpdatedAt = s.now()

	if s.persister == nil {
		return true, nil
	}

	if r, ok := s.persister.(Rotator); ok {
		persisted, err := r.Rotate(ctx, token, s.current.UpdatedAt)
		if err != nil {
			return true, err
		}
		if !persisted {
			// cleared by another writer; clear wins over rotation
			s.epoch++
			s.current = Session{Epoch: s.epoch}
			return false, nil
		}
		return true, nil
	}

	return true, s.persister.Save(ctx, s.current)
}

func (s *Store) clearLocked(ctx context.Context) error {
	s.epoch++
	s.current = Session{Epoch: s.epoch}
	if s.persister == nil {
		return nil
	}
	return s.persister.Delete(ctx)
}
