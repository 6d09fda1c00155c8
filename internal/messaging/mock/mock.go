// Package mock provides a recording [messaging.Sender] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxbridge/internal/messaging"
)

// Sender records every message. Set Err to make Send fail.
type Sender struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every Send call. The message is still
	// recorded.
	Err error

	// Sent holds every message passed to Send, in order.
	Sent []messaging.Message

	// OnSend, if set, is called after recording each message.
	OnSend func(messaging.Message)
}

// Send implements [messaging.Sender].
func (s *Sender) Send(_ context.Context, msg messaging.Message) error {
	s.mu.Lock()
	s.Sent = append(s.Sent, msg)
	err, fn := s.Err, s.OnSend
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
	return err
}

// Messages returns a copy of the recorded messages.
func (s *Sender) Messages() []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]messaging.Message, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// Reset clears recorded messages.
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = nil
}

var _ messaging.Sender = (*Sender)(nil)
