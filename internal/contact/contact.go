// Package contact holds the persisted per-contact state: the onboarding
// [Session] and the append-only [Record] log, plus the [Store] interface the
// bot reads and writes them through.
//
// Backends live in sub-packages (postgres, dynamo); [MemStore] serves tests
// and single-process deployments.
package contact

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Step is an onboarding stage.
type Step string

const (
	StepAwaitingSource Step = "AWAITING_SOURCE_LANG"
	StepAwaitingTarget Step = "AWAITING_TARGET_LANG"
	StepAwaitingVoice  Step = "AWAITING_VOICE_PREFERENCE"
	StepReady          Step = "READY"
)

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	switch s {
	case StepAwaitingSource, StepAwaitingTarget, StepAwaitingVoice, StepReady:
		return true
	}
	return false
}

// VoicePreference is the contact's preferred synthesis voice gender.
type VoicePreference string

const (
	VoiceUnset  VoicePreference = ""
	VoiceMale   VoicePreference = "MALE"
	VoiceFemale VoicePreference = "FEMALE"
)

// PlanFree is the plan tier every new contact starts on.
const PlanFree = "free"

// Session is the persisted onboarding and metering state of one contact.
type Session struct {
	ContactID       string
	Step            Step
	SourceLang      string
	TargetLang      string
	VoicePreference VoicePreference
	UsageCounter    int64
	PlanTier        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewSession returns the default row inserted on first contact.
func NewSession(contactID string, now time.Time) *Session {
	return &Session{
		ContactID: contactID,
		Step:      StepAwaitingSource,
		PlanTier:  PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset returns the session to the first onboarding step. Language and voice
// choices are cleared; usage and plan are kept.
func (s *Session) Reset() {
	s.Step = StepAwaitingSource
	s.SourceLang = ""
	s.TargetLang = ""
	s.VoicePreference = VoiceUnset
}

// Complete reports whether both languages are set and differ, which is the
// precondition for translating on behalf of this contact.
func (s *Session) Complete() bool {
	return s.SourceLang != "" && s.TargetLang != "" && s.SourceLang != s.TargetLang
}

// Record is one processed message in the translation log.
type Record struct {
	ID             string
	ContactID      string
	OriginalText   string
	TranslatedText string
	SourceLang     string
	DestLang       string
	CreatedAt      time.Time
}

// ErrNotFound is returned by backends internally when a contact has no row.
// [Store.Load] translates it into a nil session.
var ErrNotFound = errors.New("contact: not found")

// Store persists sessions and records.
//
// Load returns (nil, nil) for an unknown contact. Upsert writes the full row,
// last write wins. InsertRecord appends to the log and never updates.
type Store interface {
	Load(ctx context.Context, contactID string) (*Session, error)
	Upsert(ctx context.Context, s *Session) error
	InsertRecord(ctx context.Context, r *Record) error
}

// Pinger is implemented by stores that can report connectivity for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PersistenceError reports a failed store read or write.
type PersistenceError struct {
	Op  string // "load", "upsert" or "insert_record"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("contact: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
