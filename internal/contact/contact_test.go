package contact

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewSession_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("whatsapp:+15550001", now)
	if s.Step != StepAwaitingSource {
		t.Errorf("Step = %q, want %q", s.Step, StepAwaitingSource)
	}
	if s.PlanTier != PlanFree {
		t.Errorf("PlanTier = %q, want free", s.PlanTier)
	}
	if s.SourceLang != "" || s.TargetLang != "" || s.VoicePreference != VoiceUnset {
		t.Errorf("unexpected choices on new session: %+v", s)
	}
	if !s.CreatedAt.Equal(now) || !s.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v / %v", s.CreatedAt, s.UpdatedAt)
	}
}

func TestSession_ResetKeepsUsage(t *testing.T) {
	for _, step := range []Step{StepAwaitingSource, StepAwaitingTarget, StepAwaitingVoice, StepReady} {
		s := &Session{
			Step: step, SourceLang: "es", TargetLang: "en",
			VoicePreference: VoiceFemale, UsageCounter: 42, PlanTier: "pro",
		}
		s.Reset()
		if s.Step != StepAwaitingSource || s.SourceLang != "" || s.TargetLang != "" || s.VoicePreference != VoiceUnset {
			t.Errorf("from %s: after reset %+v", step, s)
		}
		if s.UsageCounter != 42 || s.PlanTier != "pro" {
			t.Errorf("from %s: metering changed: %+v", step, s)
		}
	}
}

func TestSession_Complete(t *testing.T) {
	tests := []struct {
		src, dst string
		want     bool
	}{
		{"es", "en", true},
		{"es", "", false},
		{"", "en", false},
		{"es", "es", false},
	}
	for _, tt := range tests {
		s := &Session{SourceLang: tt.src, TargetLang: tt.dst}
		if got := s.Complete(); got != tt.want {
			t.Errorf("Complete(%q,%q) = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestStep_Valid(t *testing.T) {
	if !StepReady.Valid() || Step("TUTORIAL").Valid() {
		t.Error("Valid misclassified steps")
	}
}

func TestMemStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	got, err := st.Load(ctx, "c1")
	if err != nil || got != nil {
		t.Fatalf("Load unknown = %v, %v; want nil, nil", got, err)
	}

	s := NewSession("c1", time.Now())
	s.SourceLang = "es"
	if err := st.Upsert(ctx, s); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	s.SourceLang = "fr" // must not leak into the store

	got, err = st.Load(ctx, "c1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SourceLang != "es" {
		t.Errorf("SourceLang = %q, want es", got.SourceLang)
	}
}

func TestMemStore_Records(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	_ = st.InsertRecord(ctx, &Record{ID: "1", ContactID: "a", OriginalText: "hola"})
	_ = st.InsertRecord(ctx, &Record{ID: "2", ContactID: "b"})
	_ = st.InsertRecord(ctx, &Record{ID: "3", ContactID: "a"})

	recs := st.Records("a")
	if len(recs) != 2 || recs[0].ID != "1" || recs[1].ID != "3" {
		t.Fatalf("records = %+v", recs)
	}
}

func TestMemStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemStore().Upsert(ctx, &Session{ContactID: "x"})
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "upsert" {
		t.Fatalf("err = %v, want PersistenceError(upsert)", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatal("PersistenceError must unwrap to context.Canceled")
	}
}
