package pending

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type notice struct {
	once sync.Once
	done chan struct{}
}

// Signal lets the attachment path announce that a sender's pending annotation
// has been written, so a text handler that raced ahead can wait for it instead
// of sleeping blindly. Entries expire on their own; the signal is process-local.
type Signal struct {
	mu      sync.Mutex
	notices *cache.Cache
}

func NewSignal(ttl time.Duration) *Signal {
	return &Signal{notices: cache.New(ttl, 2*ttl)}
}

func (s *Signal) get(senderID string) *notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.notices.Get(senderID); ok {
		return v.(*notice)
	}
	n := &notice{done: make(chan struct{})}
	s.notices.Set(senderID, n, cache.DefaultExpiration)
	return n
}

// Expect records that an attachment for senderID was accepted and its pending
// annotation is about to be written.
func (s *Signal) Expect(senderID string) {
	s.get(senderID)
}

// Expected reports whether an attachment was announced or published for
// senderID and has not been consumed since.
func (s *Signal) Expected(senderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notices.Get(senderID)
	return ok
}

func (s *Signal) Publish(senderID string) {
	n := s.get(senderID)
	n.once.Do(func() { close(n.done) })
}

// Reset forgets a consumed notice so the next wait blocks again.
func (s *Signal) Reset(senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices.Delete(senderID)
}

// Wait blocks until Publish is called for senderID, the timeout elapses or ctx
// is done. It reports whether the signal fired.
func (s *Signal) Wait(ctx context.Context, senderID string, timeout time.Duration) bool {
	n := s.get(senderID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-n.done:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
