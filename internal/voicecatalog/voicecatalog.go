// Package voicecatalog caches the synthesis voice list, indexed by two-letter
// language code.
//
// The catalog is loaded once per process on first use (or eagerly via
// [Catalog.Load] at startup). Concurrent first callers share one fetch. A
// failed fetch leaves the catalog empty so the next caller tries again; a
// successful one is kept for the process lifetime.
package voicecatalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// ErrNoVoice is returned by [Catalog.PickVoice] when no voice matches.
var ErrNoVoice = errors.New("voicecatalog: no voice for language")

const defaultLoadTimeout = 30 * time.Second

// Lister is the part of a TTS provider the catalog needs.
type Lister interface {
	ListVoices(ctx context.Context) ([]tts.Voice, error)
}

// Entry is one candidate voice for a language.
type Entry struct {
	Name   string
	Locale string // the voice's locale for this language, e.g. "es-ES"
	Gender tts.Gender
	Tier   tts.Tier
}

// Option configures a [Catalog].
type Option func(*Catalog)

// WithLoadTimeout bounds the shared fetch. Default: 30s.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// Catalog is a read-through cache of the provider's voices. Safe for
// concurrent use.
type Catalog struct {
	lister      Lister
	loadTimeout time.Duration
	sf          singleflight.Group

	mu     sync.RWMutex
	byLang map[string][]Entry // nil until loaded
}

// New creates an empty Catalog backed by lister.
func New(lister Lister, opts ...Option) *Catalog {
	c := &Catalog{lister: lister, loadTimeout: defaultLoadTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Loaded reports whether a fetch has succeeded.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byLang != nil
}

// Load fetches the voice list unless it is already cached. The fetch runs
// detached from ctx so one caller giving up does not fail the others; ctx
// only bounds how long this caller waits.
func (c *Catalog) Load(ctx context.Context) error {
	if c.Loaded() {
		return nil
	}
	ch := c.sf.DoChan("load", func() (any, error) {
		if c.Loaded() {
			return nil, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		start := time.Now()
		voices, err := c.lister.ListVoices(fetchCtx)
		if err != nil {
			return nil, fmt.Errorf("voicecatalog: load: %w", err)
		}
		idx := index(voices)

		c.mu.Lock()
		c.byLang = idx
		c.mu.Unlock()

		slog.Info("voice catalog loaded",
			"voices", len(voices), "languages", len(idx), "duration", time.Since(start))
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Voices returns the candidates for lang, best first. lang may be a code
// ("es") or a locale ("es-MX").
func (c *Catalog) Voices(ctx context.Context, lang string) ([]Entry, error) {
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.byLang[prefix(lang)]), nil
}

// PickVoice returns the best voice for lang. When gender is set only voices
// of that gender are considered; the caller decides whether to retry without
// the filter. Quality order is premium, then neural, then standard.
func (c *Catalog) PickVoice(ctx context.Context, lang string, gender tts.Gender) (Entry, error) {
	entries, err := c.Voices(ctx, lang)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if gender == tts.GenderUnspecified || e.Gender == gender {
			return e, nil
		}
	}
	if gender != tts.GenderUnspecified {
		return Entry{}, fmt.Errorf("%w %q with gender %s", ErrNoVoice, lang, gender)
	}
	return Entry{}, fmt.Errorf("%w %q", ErrNoVoice, lang)
}

// index groups voices by two-letter prefix and sorts each group by tier
// (best first), then by name for a stable pick.
func index(voices []tts.Voice) map[string][]Entry {
	idx := make(map[string][]Entry)
	for _, v := range voices {
		seen := make(map[string]bool, len(v.LanguageCodes))
		for _, locale := range v.LanguageCodes {
			p := prefix(locale)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			idx[p] = append(idx[p], Entry{Name: v.Name, Locale: locale, Gender: v.Gender, Tier: v.Tier})
		}
	}
	for _, entries := range idx {
		slices.SortStableFunc(entries, func(a, b Entry) int {
			if a.Tier != b.Tier {
				return cmp.Compare(b.Tier, a.Tier)
			}
			return strings.Compare(a.Name, b.Name)
		})
	}
	return idx
}

func prefix(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if len(lang) != 2 {
		return ""
	}
	return lang
}
