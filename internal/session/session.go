// Package session holds the client-side conversation state: the opaque
// session identifier issued by the backend and the last successful exchange.
package session

import (
	"context"
	"sync"
)

// DefaultKey is the name the session identifier is persisted under.
const DefaultKey = "bengaliChemSessionId"

// Exchange is the most recent successful ask round trip.
type Exchange struct {
	Question string
	Answer   string
}

// State is created empty when the client starts and only changes on a
// successful response.
type State struct {
	mu   sync.RWMutex
	id   string
	last *Exchange
}

// NewState returns a state seeded with a previously persisted id, if any.
func NewState(id string) *State {
	return &State{id: id}
}

func (s *State) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Adopt replaces the held id when the backend supplies a different one.
// An empty id never clears the current value.
func (s *State) Adopt(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.id {
		return false
	}
	s.id = id
	return true
}

// Remember records the exchange used by regenerate and simplify.
func (s *State) Remember(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &Exchange{Question: question, Answer: answer}
}

func (s *State) LastExchange() (Exchange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Exchange{}, false
	}
	return *s.last, true
}

// Store persists the session identifier between client runs.
type Store interface {
	// Load returns "" when nothing has been stored yet.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
	Close() error
}
