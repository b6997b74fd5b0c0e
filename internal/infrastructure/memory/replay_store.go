package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/agro-inventario/internal/application/ports"
)

var _ ports.ReplayStore = (*ReplayStore)(nil)

type replayEntry struct {
	resp    *ports.StoredResponse
	expires time.Time
}

// ReplayStore respuestas idempotentes en memoria, usado cuando no hay Redis configurado.
type ReplayStore struct {
	mu    sync.Mutex
	resps map[string]replayEntry
	locks map[string]time.Time
	now   func() time.Time
}

func NewReplayStore() *ReplayStore {
	return &ReplayStore{
		resps: make(map[string]replayEntry),
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (s *ReplayStore) Load(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.resps[key]
	if !ok {
		return nil, nil
	}
	if s.now().After(e.expires) {
		delete(s.resps, key)
		return nil, nil
	}
	cp := *e.resp
	cp.Body = append([]byte(nil), e.resp.Body...)
	return &cp, nil
}

func (s *ReplayStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.locks[key]; ok && s.now().Before(exp) {
		return false, nil
	}
	s.locks[key] = s.now().Add(ttl)
	return true, nil
}

func (s *ReplayStore) Save(_ context.Context, key string, resp *ports.StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *resp
	cp.Body = append([]byte(nil), resp.Body...)
	s.resps[key] = replayEntry{resp: &cp, expires: s.now().Add(ttl)}
	return nil
}

func (s *ReplayStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}
