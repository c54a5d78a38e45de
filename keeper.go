// Package formkeep preserves in-progress web form input across
// client-driven page navigations and tab lifecycle events, so users do
// not lose unsubmitted data.
//
// The pipeline:
//
//	discovery → registry → field events → codec.Encode → snapshot.Wrap → store
//	page replaced → registry rebuilt → store → freshness check → codec.Decode
//
// The Keeper owns the registry of forms for the current DOM generation and
// decides when to encode-and-persist (trailing debounce, immediate
// structural events, flush on hide/unload/pre-navigation) or
// decode-and-apply (registration, navigation completion). The persistent
// store outlives DOM generations, keyed per form identity, so snapshots
// survive the registry being rebuilt.
//
// Usage:
//
//	k, err := formkeep.New(cfg, kv, doc.Discoverer())
//	k.Rebuild(ctx)               // discover + auto-restore
//	k.FieldChanged(ctx, id, cat) // wire from DOM events
//	k.PageHidden(ctx)            // flush hooks
package formkeep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/formkeep/codec"
	"github.com/hazyhaar/formkeep/form"
	"github.com/hazyhaar/formkeep/internal/idgen"
	"github.com/hazyhaar/formkeep/snapshot"
	"github.com/hazyhaar/formkeep/store"
)

// ErrUnknownForm is returned by public operations naming an unregistered form.
var ErrUnknownForm = fmt.Errorf("formkeep: unknown form")

// Keeper is the lifecycle coordinator. Create one per page context.
type Keeper struct {
	cfg      *Config
	kv       store.KV
	discover form.Discoverer
	logger   *slog.Logger
	newID    idgen.Generator
	now      func() time.Time

	mu      sync.Mutex
	forms   map[string]*registeredForm
	ex      codec.Exclusion
	pageURL string
}

// Option customises a Keeper.
type Option func(*Keeper)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *Keeper) { k.logger = l }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) { k.now = now }
}

// WithIDGenerator overrides the generator for anonymous form identities.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(k *Keeper) { k.newID = gen }
}

// New creates a Keeper over the given store and discovery contract.
func New(cfg *Config, kv store.KV, discover form.Discoverer, opts ...Option) (*Keeper, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if kv == nil {
		return nil, fmt.Errorf("formkeep: store is required")
	}
	if discover == nil {
		return nil, fmt.Errorf("formkeep: discoverer is required")
	}

	k := &Keeper{
		cfg:      cfg,
		kv:       kv,
		discover: discover,
		logger:   slog.Default(),
		newID:    idgen.Prefixed("form_", idgen.Default),
		now:      time.Now,
		forms:    make(map[string]*registeredForm),
		ex:       codec.NewExclusion(cfg.ExcludeFields...),
	}
	for _, o := range opts {
		o(k)
	}
	return k, nil
}

// SetPageURL records the current page identifier stamped into envelopes.
func (k *Keeper) SetPageURL(url string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pageURL = url
}

// Rebuild discards the registry and reconstructs it from the current DOM
// generation, restoring fresh snapshots when auto-restore is on. Call it
// once at startup and after every content replacement.
func (k *Keeper) Rebuild(ctx context.Context) {
	forms := k.discover()

	k.mu.Lock()
	defer k.mu.Unlock()

	// Cancel pending debounces: their entries are about to be replaced.
	// Pending submission checks stay armed across the rebuild — the normal
	// success flow is exactly submit followed by a navigation, and the
	// deferred presence check must still run against the new content
	// (submitCheckFired re-discovers and handles both outcomes).
	for _, rf := range k.forms {
		if rf.debounce != nil {
			rf.debounce.Stop()
			rf.debounce = nil
		}
	}
	k.forms = make(map[string]*registeredForm, len(forms))

	for _, f := range forms {
		id, generated := k.identityOf(f)
		if _, dup := k.forms[id]; dup {
			k.logger.Warn("formkeep: duplicate form identity, skipping", "id", id)
			continue
		}
		rf := &registeredForm{
			id:         id,
			form:       f,
			storageKey: k.cfg.StoragePrefix + id,
			generated:  generated,
		}
		k.forms[id] = rf
		k.debugf("formkeep: registered form", "id", id, "key", rf.storageKey)

		if k.cfg.AutoRestore {
			if err := k.restoreLocked(ctx, rf); err != nil {
				k.logger.Warn("formkeep: restore failed", "id", id, "error", err)
			}
		}
	}
}

// FieldChanged reacts to a field-change event on a registered form. Most
// categories (re)arm the trailing debounce; structural ones persist
// immediately. Only the final change of a rapid burst is persisted.
func (k *Keeper) FieldChanged(ctx context.Context, formID string, cat form.Category) {
	if !k.cfg.AutoSave {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	rf, ok := k.forms[formID]
	if !ok {
		return
	}

	if b, known := BindingFor(cat); known && b.Immediate {
		if rf.debounce != nil {
			rf.debounce.Stop()
			rf.debounce = nil
		}
		if err := k.persistLocked(ctx, rf); err != nil {
			k.logger.Warn("formkeep: immediate persist failed", "id", formID, "error", err)
		}
		return
	}

	// Trailing debounce: a new event cancels and restarts the timer.
	if rf.debounce != nil {
		rf.debounce.Stop()
	}
	rf.state = statePendingSave
	var t *time.Timer
	t = time.AfterFunc(k.cfg.DebounceWindow, func() {
		k.debounceFired(formID, t)
	})
	rf.debounce = t
}

func (k *Keeper) debounceFired(formID string, t *time.Timer) {
	k.mu.Lock()
	defer k.mu.Unlock()

	rf, ok := k.forms[formID]
	if !ok || rf.debounce != t {
		// Registry was rebuilt or the timer was rearmed; this fire is stale.
		return
	}
	rf.debounce = nil
	if err := k.persistLocked(context.Background(), rf); err != nil {
		k.logger.Warn("formkeep: debounced persist failed", "id", formID, "error", err)
	}
}

// PageHidden flushes all forms when the page becomes hidden.
func (k *Keeper) PageHidden(ctx context.Context) { k.Flush(ctx) }

// PageUnloading flushes all forms before unload.
func (k *Keeper) PageUnloading(ctx context.Context) { k.Flush(ctx) }

// BeforeReplace flushes all forms before the page-transition library
// replaces the content.
func (k *Keeper) BeforeReplace(ctx context.Context) { k.Flush(ctx) }

// AfterReplace rebuilds the registry from the freshly rendered content.
func (k *Keeper) AfterReplace(ctx context.Context) { k.Rebuild(ctx) }

// AfterAnimate re-attempts restoration once transition animations settle,
// for widgets whose visual state the animation may have reset.
func (k *Keeper) AfterAnimate(ctx context.Context) {
	if !k.cfg.AutoRestore {
		return
	}
	if err := k.Restore(ctx, ""); err != nil {
		k.logger.Warn("formkeep: post-animate restore failed", "error", err)
	}
}

// Flush persists every registered form immediately, bypassing debounce.
func (k *Keeper) Flush(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for id, rf := range k.forms {
		if rf.debounce != nil {
			rf.debounce.Stop()
			rf.debounce = nil
		}
		if err := k.persistLocked(ctx, rf); err != nil {
			k.logger.Warn("formkeep: flush persist failed", "id", id, "error", err)
		}
	}
}

// Submitted schedules the deferred submission check. Acting synchronously
// would misread server-side validation failures that re-render the same
// form without a navigation, so the decision waits SubmitCheckDelay and
// then tests for the form's continued presence: still present means
// validation failure (retain), gone means success (discard). The heuristic
// is racy against slow responses; it is the only signal available absent
// an explicit success indicator. Forms with a generated identity carry no
// id or name for discovery to match, so the check would always read
// "gone"; their state is retained instead and ages out via the staleness
// purge.
func (k *Keeper) Submitted(ctx context.Context, formID string) {
	if !k.cfg.ClearOnSubmit {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	rf, ok := k.forms[formID]
	if !ok {
		return
	}
	if rf.generated {
		k.debugf("formkeep: anonymous form submitted, presence check skipped", "id", formID)
		return
	}
	if rf.submitCheck != nil {
		rf.submitCheck.Stop()
	}
	rf.submitCheck = time.AfterFunc(k.cfg.SubmitCheckDelay, func() {
		k.submitCheckFired(formID)
	})
}

func (k *Keeper) submitCheckFired(formID string) {
	// Discovery runs outside the lock: it touches the host's DOM.
	present := false
	for _, f := range k.discover() {
		if f.ID() == formID || f.Name() == formID {
			present = true
			break
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if rf, ok := k.forms[formID]; ok {
		rf.submitCheck = nil
	}

	if present {
		k.debugf("formkeep: form still present after submit, retaining state", "id", formID)
		return
	}

	key := k.cfg.StoragePrefix + formID
	if err := k.kv.Remove(context.Background(), key); err != nil {
		k.logger.Warn("formkeep: clear after submit failed", "id", formID, "error", err)
		return
	}
	if rf, ok := k.forms[formID]; ok {
		rf.state = stateIdle
		rf.lastPersistedAt = nil
	}
	k.debugf("formkeep: form gone after submit, state discarded", "id", formID)
}

// Save persists one form (or all, with an empty id) now, bypassing debounce.
func (k *Keeper) Save(ctx context.Context, formID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if formID == "" {
		var firstErr error
		for _, rf := range k.forms {
			if rf.debounce != nil {
				rf.debounce.Stop()
				rf.debounce = nil
			}
			if err := k.persistLocked(ctx, rf); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	rf, ok := k.forms[formID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownForm, formID)
	}
	if rf.debounce != nil {
		rf.debounce.Stop()
		rf.debounce = nil
	}
	return k.persistLocked(ctx, rf)
}

// Restore decodes the persisted snapshot onto one form (or all).
func (k *Keeper) Restore(ctx context.Context, formID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if formID == "" {
		var firstErr error
		for _, rf := range k.forms {
			if err := k.restoreLocked(ctx, rf); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	rf, ok := k.forms[formID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownForm, formID)
	}
	return k.restoreLocked(ctx, rf)
}

// Clear removes persisted state for one form (or all).
func (k *Keeper) Clear(ctx context.Context, formID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if formID == "" {
		keys, err := k.kv.Keys(ctx, k.cfg.StoragePrefix)
		if err != nil {
			return err
		}
		var firstErr error
		for _, key := range keys {
			if err := k.kv.Remove(ctx, key); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		for _, rf := range k.forms {
			rf.state = stateIdle
			rf.lastPersistedAt = nil
		}
		return firstErr
	}

	rf, ok := k.forms[formID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownForm, formID)
	}
	if err := k.kv.Remove(ctx, rf.storageKey); err != nil {
		return err
	}
	rf.state = stateIdle
	rf.lastPersistedAt = nil
	return nil
}

// persistLocked encodes and stores one form. Caller holds k.mu.
func (k *Keeper) persistLocked(ctx context.Context, rf *registeredForm) error {
	snap := codec.Encode(rf.form, k.ex)
	env := snapshot.Wrap(snap, k.now(), k.pageURL)

	payload, err := snapshot.MarshalEnvelope(&env)
	if err != nil {
		return fmt.Errorf("formkeep: marshal %q: %w", rf.id, err)
	}
	if err := k.kv.Set(ctx, rf.storageKey, payload); err != nil {
		// No retry: the next field change will attempt again.
		return fmt.Errorf("formkeep: persist %q: %w", rf.id, err)
	}

	now := k.now()
	rf.state = stateSaved
	rf.lastPersistedAt = &now
	k.debugf("formkeep: persisted", "id", rf.id, "fields", len(snap.Fields))
	return nil
}

// restoreLocked reads, validates, and applies one form's envelope. A
// malformed or stale envelope is treated as absent state and purged as a
// side effect of the read. Caller holds k.mu.
func (k *Keeper) restoreLocked(ctx context.Context, rf *registeredForm) error {
	payload, ok, err := k.kv.Get(ctx, rf.storageKey)
	if err != nil {
		return fmt.Errorf("formkeep: read %q: %w", rf.id, err)
	}
	if !ok {
		return nil
	}

	env, err := snapshot.UnmarshalEnvelope(payload)
	if err != nil {
		k.logger.Warn("formkeep: malformed envelope, purging", "id", rf.id, "error", err)
		if rmErr := k.kv.Remove(ctx, rf.storageKey); rmErr != nil {
			k.logger.Warn("formkeep: purge failed", "id", rf.id, "error", rmErr)
		}
		return nil
	}

	if !env.Usable(k.now()) {
		k.debugf("formkeep: stale envelope, purging", "id", rf.id, "captured_at", env.CapturedAt())
		if rmErr := k.kv.Remove(ctx, rf.storageKey); rmErr != nil {
			k.logger.Warn("formkeep: purge failed", "id", rf.id, "error", rmErr)
		}
		return nil
	}

	codec.Decode(rf.form, env.State, k.ex)
	k.debugf("formkeep: restored", "id", rf.id, "fields", len(env.State.Fields))
	return nil
}

func (k *Keeper) debugf(msg string, args ...any) {
	if k.cfg.Debug {
		k.logger.Info(msg, args...)
		return
	}
	k.logger.Debug(msg, args...)
}
