package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(ttl time.Duration) (*Store, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	s := New(ttl)
	s.now = clk.now
	return s, clk
}

func TestPutGet(t *testing.T) {
	t.Parallel()
	s, clk := newTestStore(time.Minute)

	id, err := s.Put([]byte("OggS"), "audio/ogg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, ct, ok := s.Get(id)
	if !ok || string(data) != "OggS" || ct != "audio/ogg" {
		t.Fatalf("Get = %q, %q, %v", data, ct, ok)
	}

	clk.advance(time.Minute)
	if _, _, ok := s.Get(id); ok {
		t.Error("item still retrievable at expiry")
	}
}

func TestPut_Empty(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(time.Minute)
	if _, err := s.Put(nil, "audio/ogg"); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()
	s, clk := newTestStore(time.Minute)

	old, _ := s.Put([]byte("a"), "")
	clk.advance(30 * time.Second)
	fresh, _ := s.Put([]byte("b"), "")
	clk.advance(45 * time.Second)

	if n := s.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if _, _, ok := s.Get(old); ok {
		t.Error("old item survived sweep")
	}
	if _, ct, ok := s.Get(fresh); !ok || ct != "application/octet-stream" {
		t.Errorf("fresh item: ok=%v ct=%q", ok, ct)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	s := New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(time.Minute)
	id, _ := s.Put([]byte("ID3audio"), "audio/mpeg")

	mux := http.NewServeMux()
	s.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(URL(srv.URL+"/", id))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ID3audio" {
		t.Errorf("status=%d body=%q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}

	for _, path := range []string{"/media/not-a-uuid", "/media/6f1c1a9e-0000-4000-8000-000000000000"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestURL(t *testing.T) {
	t.Parallel()
	if got := URL("https://bot.example.com/", "x"); got != "https://bot.example.com/media/x" {
		t.Errorf("URL = %q", got)
	}
}
