package chat

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"chem-assistant/internal/llm"
)

// MemoryStore keeps conversations in process memory and drops them after ttl
// of inactivity.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{cache: cache.New(ttl, 10*time.Minute)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Conversation, error) {
	x, found := s.cache.Get(sessionID)
	if !found {
		return nil, ErrNotFound
	}
	// Callers mutate what they get back; hand out a copy.
	conv := *x.(*Conversation)
	conv.History = append([]llm.Message(nil), conv.History...)
	return &conv, nil
}

func (s *MemoryStore) Save(_ context.Context, conv *Conversation) error {
	c := *conv
	c.History = append([]llm.Message(nil), conv.History...)
	s.cache.Set(conv.SessionID, &c, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
