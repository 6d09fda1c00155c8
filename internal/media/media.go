// Package media hosts synthesized audio for a limited time so the outbound
// messaging API can fetch it by URL.
package media

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an item stays retrievable when no TTL is configured.
const DefaultTTL = 15 * time.Minute

type item struct {
	data        []byte
	contentType string
	expires     time.Time
}

// Store is an in-memory, TTL-expired blob store. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
	ttl   time.Duration
	now   func() time.Time
}

// New creates a Store. A non-positive ttl uses [DefaultTTL].
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{items: make(map[string]item), ttl: ttl, now: time.Now}
}

// Put stores data and returns its id.
func (s *Store) Put(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("media: empty payload")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.items[id] = item{data: data, contentType: contentType, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return id, nil
}

// Get returns the payload for id if present and not expired.
func (s *Store) Get(id string) (data []byte, contentType string, ok bool) {
	s.mu.RLock()
	it, found := s.items[id]
	s.mu.RUnlock()
	if !found || !s.now().Before(it.expires) {
		return nil, "", false
	}
	return it.data, it.contentType, true
}

// Len returns the number of stored items, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sweep removes expired items and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, it := range s.items {
		if !now.Before(it.expires) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 2
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("media: swept expired items", "count", n)
			}
		}
	}
}

// URL joins the public base URL and the media path for id.
func URL(publicBase, id string) string {
	return strings.TrimRight(publicBase, "/") + "/media/" + id
}

// Handler serves GET /media/{id}.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, err := uuid.Parse(id); err != nil {
			http.NotFound(w, r)
			return
		}
		data, ct, ok := s.Get(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(data)
		}
	})
}

// Register mounts the handler on mux.
func (s *Store) Register(mux *http.ServeMux) {
	mux.Handle("GET /media/{id}", s.Handler())
}
