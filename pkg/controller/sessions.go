package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Factory はセッションごとの Controller を作ります。
type Factory func() (*Controller, error)

// Sessions はブラウザセッションごとの Controller をメモリ上に保持します。
// 最後のアクセスから ttl が過ぎたセッションは破棄されます。永続化はしません。
type Sessions struct {
	store   *cache.Cache
	ttl     time.Duration
	factory Factory
	newID   func() string
	mu      sync.Mutex
}

// NewSessions は Sessions を初期化します。
func NewSessions(ttl time.Duration, factory Factory) (*Sessions, error) {
	if factory == nil {
		return nil, fmt.Errorf("factory is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive: %s", ttl)
	}
	return &Sessions{
		store:   cache.New(ttl, ttl/2),
		ttl:     ttl,
		factory: factory,
		newID:   uuid.NewString,
	}, nil
}

// Get は既存セッションを返し、有効期限を延長します。
func (s *Sessions) Get(id string) (*Controller, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touch(id)
}

// GetOrCreate は id のセッションを返します。無ければ新しい ID で作成します。
func (s *Sessions) GetOrCreate(id string) (string, *Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctrl, ok := s.touch(id); ok {
		return id, ctrl, nil
	}
	ctrl, err := s.factory()
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	newID := s.newID()
	s.store.Set(newID, ctrl, s.ttl)
	return newID, ctrl, nil
}

// Len は保持しているセッション数です（期限切れで未掃除のものを含むことがあります）。
func (s *Sessions) Len() int {
	return s.store.ItemCount()
}

func (s *Sessions) touch(id string) (*Controller, bool) {
	if id == "" {
		return nil, false
	}
	v, found := s.store.Get(id)
	if !found {
		return nil, false
	}
	ctrl, ok := v.(*Controller)
	if !ok {
		return nil, false
	}
	s.store.Set(id, ctrl, s.ttl)
	return ctrl, true
}
