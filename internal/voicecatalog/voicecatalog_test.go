package voicecatalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/voxbridge/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voxbridge/pkg/provider/tts/mock"
)

func testVoices() []tts.Voice {
	return []tts.Voice{
		{Name: "es-ES-Standard-A", LanguageCodes: []string{"es-ES"}, Gender: tts.GenderFemale, Tier: tts.TierStandard},
		{Name: "es-ES-Wavenet-B", LanguageCodes: []string{"es-ES"}, Gender: tts.GenderMale, Tier: tts.TierNeural},
		{Name: "es-US-Neural2-A", LanguageCodes: []string{"es-US"}, Gender: tts.GenderFemale, Tier: tts.TierPremium},
		{Name: "es-ES-Wavenet-C", LanguageCodes: []string{"es-ES"}, Gender: tts.GenderFemale, Tier: tts.TierNeural},
		{Name: "en-US-Standard-B", LanguageCodes: []string{"en-US", "en-GB"}, Gender: tts.GenderMale, Tier: tts.TierStandard},
		{Name: "bad", LanguageCodes: []string{"cmn"}},
	}
}

func TestPickVoice_QualityOrder(t *testing.T) {
	t.Parallel()
	c := New(&ttsmock.Provider{ListVoicesResult: testVoices()})
	ctx := context.Background()

	got, err := c.PickVoice(ctx, "es", tts.GenderUnspecified)
	if err != nil {
		t.Fatalf("PickVoice: %v", err)
	}
	if got.Name != "es-US-Neural2-A" || got.Locale != "es-US" {
		t.Errorf("best es voice = %+v, want es-US-Neural2-A", got)
	}

	got, err = c.PickVoice(ctx, "es-ES", tts.GenderMale)
	if err != nil {
		t.Fatalf("PickVoice male: %v", err)
	}
	if got.Name != "es-ES-Wavenet-B" {
		t.Errorf("best male es voice = %q, want es-ES-Wavenet-B", got.Name)
	}
}

func TestPickVoice_NoGenderMatch(t *testing.T) {
	t.Parallel()
	c := New(&ttsmock.Provider{ListVoicesResult: testVoices()})
	_, err := c.PickVoice(context.Background(), "en", tts.GenderFemale)
	if !errors.Is(err, ErrNoVoice) {
		t.Fatalf("err = %v, want ErrNoVoice", err)
	}
}

func TestPickVoice_UnknownLanguage(t *testing.T) {
	t.Parallel()
	c := New(&ttsmock.Provider{ListVoicesResult: testVoices()})
	if _, err := c.PickVoice(context.Background(), "ja", tts.GenderUnspecified); !errors.Is(err, ErrNoVoice) {
		t.Fatalf("err = %v, want ErrNoVoice", err)
	}
}

func TestVoices_IndexedByPrefix(t *testing.T) {
	t.Parallel()
	c := New(&ttsmock.Provider{ListVoicesResult: testVoices()})
	es, err := c.Voices(context.Background(), "ES")
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	want := []string{"es-US-Neural2-A", "es-ES-Wavenet-B", "es-ES-Wavenet-C", "es-ES-Standard-A"}
	if len(es) != len(want) {
		t.Fatalf("got %d es voices, want %d", len(es), len(want))
	}
	for i, w := range want {
		if es[i].Name != w {
			t.Errorf("es[%d] = %q, want %q", i, es[i].Name, w)
		}
	}

	en, _ := c.Voices(context.Background(), "en")
	if len(en) != 1 {
		t.Errorf("multi-locale voice indexed %d times under en, want 1", len(en))
	}
}

// blockingLister counts calls and blocks until released.
type blockingLister struct {
	calls   atomic.Int32
	release chan struct{}
	voices  []tts.Voice
}

func (b *blockingLister) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
		return b.voices, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestLoad_SingleFlight(t *testing.T) {
	t.Parallel()
	l := &blockingLister{release: make(chan struct{}), voices: testVoices()}
	c := New(l)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.PickVoice(context.Background(), "es", tts.GenderUnspecified)
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(l.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("PickVoice: %v", err)
		}
	}
	if n := l.calls.Load(); n != 1 {
		t.Errorf("ListVoices called %d times, want 1", n)
	}

	// Cached: no further fetches.
	_, _ = c.PickVoice(context.Background(), "en", tts.GenderUnspecified)
	if n := l.calls.Load(); n != 1 {
		t.Errorf("ListVoices called %d times after cache fill, want 1", n)
	}
}

func TestLoad_FailureRetriesNextCall(t *testing.T) {
	t.Parallel()
	p := &ttsmock.Provider{ListVoicesErr: errors.New("403")}
	c := New(p)
	ctx := context.Background()

	if err := c.Load(ctx); err == nil {
		t.Fatal("expected load error")
	}
	if c.Loaded() {
		t.Fatal("catalog must stay unloaded after failure")
	}

	p.ListVoicesErr = nil
	p.ListVoicesResult = testVoices()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !c.Loaded() || p.ListCount() != 2 {
		t.Errorf("loaded=%v calls=%d, want true/2", c.Loaded(), p.ListCount())
	}
}

func TestLoad_CallerCancelDoesNotAbortFetch(t *testing.T) {
	t.Parallel()
	l := &blockingLister{release: make(chan struct{}), voices: testVoices()}
	c := New(l)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Load(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	close(l.release)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load after release: %v", err)
	}
	if n := l.calls.Load(); n != 1 {
		t.Errorf("ListVoices called %d times, want 1 (detached fetch should finish)", n)
	}
}
