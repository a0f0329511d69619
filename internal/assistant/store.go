package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultSessionTTL = 30 * time.Minute

// Store keeps dialogues by session id and drops the ones left idle.
type Store struct {
	ex  Extractor
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Dialogue
}

func NewStore(ex Extractor, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{
		ex:       ex,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Dialogue),
	}
}

func (s *Store) Extractor() Extractor {
	return s.ex
}

// Create starts a new dialogue for the named campus.
func (s *Store) Create(campusName string) *Dialogue {
	d := NewDialogue(uuid.NewString(), campusName, s.ex)

	s.mu.Lock()
	defer s.mu.Unlock()
	d.lastSeen = s.now()
	s.sessions[d.ID] = d
	return d
}

// Get returns a live dialogue and marks it as used. Expired dialogues are
// removed and reported as missing.
func (s *Store) Get(id string) (*Dialogue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(d.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return nil, false
	}
	d.lastSeen = now
	return d, true
}

// Sweep removes every expired dialogue and returns how many went.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, d := range s.sessions {
		if now.Sub(d.lastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps on every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logrus.WithField("removed", n).Debug("Expired assistant sessions swept")
			}
		}
	}
}
