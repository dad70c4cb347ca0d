package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/indieinfra/mediadrop/workflow"
)

var ErrNotFound = errors.New("upload session not found")

// Session is one upload workflow addressed by ID.
type Session struct {
	ID        string
	CreatedAt time.Time
	Machine   *workflow.Machine
}

// Factory builds the machine for a new session.
type Factory func(id string) *workflow.Machine

// Registry keeps a bounded set of sessions. Sessions pushed out by newer ones are closed as if
// they had been removed: in-flight work is cancelled and their payload file deleted.
type Registry struct {
	cache   *lru.Cache[string, *Session]
	factory Factory
	now     func() time.Time

	// OnOpen and OnClose are optional hooks, called once per session.
	OnOpen  func(*Session)
	OnClose func(*Session)
}

func NewRegistry(size int, factory Factory) (*Registry, error) {
	if factory == nil {
		return nil, fmt.Errorf("session factory is nil")
	}

	r := &Registry{factory: factory, now: time.Now}

	cache, err := lru.NewWithEvict(size, func(id string, s *Session) {
		r.release(s)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	r.cache = cache

	return r, nil
}

// Create starts a new session with an idle workflow.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	s := &Session{ID: id, CreatedAt: r.now(), Machine: r.factory(id)}

	go func() {
		if err := s.Machine.Run(context.Background()); err != nil {
			log.Printf("session %v stopped: %v", id, err)
		}
	}()

	if r.OnOpen != nil {
		r.OnOpen(s)
	}

	if evicted := r.cache.Add(id, s); evicted {
		log.Printf("session cache full, evicted the least recently used session")
	}

	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove closes and forgets the session.
func (r *Registry) Remove(id string) error {
	if !r.cache.Remove(id) {
		return ErrNotFound
	}
	return nil
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close releases every session.
func (r *Registry) Close() {
	r.cache.Purge()
}

func (r *Registry) release(s *Session) {
	s.Machine.Close()

	if file := s.Machine.Snapshot().Context.File; file != nil {
		if err := file.Remove(); err != nil {
			log.Printf("session %v: failed to remove %v: %v", s.ID, file.Path, err)
		}
	}

	if r.OnClose != nil {
		r.OnClose(s)
	}
}
