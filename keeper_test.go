package formkeep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/formkeep/form"
	"github.com/hazyhaar/formkeep/form/htmlform"
	"github.com/hazyhaar/formkeep/snapshot"
	"github.com/hazyhaar/formkeep/store"
)

const contactHTML = `<html><body>
<form id="contact">
	<input type="text" name="email" value="">
	<textarea name="message"></textarea>
	<input type="checkbox" name="newsletter" value="weekly">
	<input type="hidden" name="authenticity_token" value="tok-1">
	<input type="submit" value="Send">
</form>
</body></html>`

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.DebounceWindow = 20 * time.Millisecond
	cfg.SubmitCheckDelay = 20 * time.Millisecond
	return cfg
}

// countingKV wraps a KV and counts Set calls, so debounce coalescing is
// observable.
type countingKV struct {
	store.KV
	mu   sync.Mutex
	sets int
}

func (c *countingKV) Set(ctx context.Context, key string, payload []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.KV.Set(ctx, key, payload)
}

func (c *countingKV) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func newTestKeeper(t *testing.T, cfg *Config, kv store.KV, html string) (*Keeper, *htmlform.Document) {
	t.Helper()
	doc, err := htmlform.ParseString(html)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	k, err := New(cfg, kv, doc.Discoverer())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k, doc
}

func fieldByName(t *testing.T, f form.Form, name string) form.Field {
	t.Helper()
	for _, fl := range f.Fields() {
		if fl.Name() == name {
			return fl
		}
	}
	t.Fatalf("field %q not found", name)
	return nil
}

func storedEnvelope(t *testing.T, kv store.KV, key string) *snapshot.Envelope {
	t.Helper()
	payload, ok, err := kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %q: %v", key, err)
	}
	if !ok {
		t.Fatalf("no payload stored under %q", key)
	}
	env, err := snapshot.UnmarshalEnvelope(payload)
	if err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestRebuildRegistersForms(t *testing.T) {
	k, _ := newTestKeeper(t, testConfig(), store.NewMemory(), contactHTML)
	k.Rebuild(context.Background())

	ins, err := k.Inspect(context.Background())
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(ins.Forms) != 1 {
		t.Fatalf("got %d forms, want 1", len(ins.Forms))
	}
	fs := ins.Forms[0]
	if fs.ID != "contact" {
		t.Errorf("ID = %q, want %q", fs.ID, "contact")
	}
	if fs.StorageKey != "formkeep:contact" {
		t.Errorf("StorageKey = %q, want %q", fs.StorageKey, "formkeep:contact")
	}
	if fs.State != "idle" {
		t.Errorf("State = %q, want %q", fs.State, "idle")
	}
}

func TestDebounceCoalescesRapidChanges(t *testing.T) {
	kv := &countingKV{KV: store.NewMemory()}
	k, doc := newTestKeeper(t, testConfig(), kv, contactHTML)
	ctx := context.Background()
	k.Rebuild(ctx)

	email := fieldByName(t, doc.Forms()[0], "email")
	for _, v := range []string{"a", "al", "ali@example.com"} {
		email.SetValue(v)
		k.FieldChanged(ctx, "contact", form.CategoryText)
	}

	time.Sleep(150 * time.Millisecond)

	if got := kv.setCount(); got != 1 {
		t.Fatalf("got %d persists, want 1", got)
	}
	env := storedEnvelope(t, kv, "formkeep:contact")
	if got := env.State.Fields["email"].First(); got != "ali@example.com" {
		t.Errorf("persisted email = %q, want final value", got)
	}
}

func TestStructuralChangePersistsImmediately(t *testing.T) {
	kv := &countingKV{KV: store.NewMemory()}
	k, _ := newTestKeeper(t, testConfig(), kv, contactHTML)
	ctx := context.Background()
	k.Rebuild(ctx)

	k.FieldChanged(ctx, "contact", form.CategoryFile)

	// No sleep: structural categories must not wait for the debounce.
	if got := kv.setCount(); got != 1 {
		t.Fatalf("got %d persists, want 1 immediate", got)
	}
}

func TestFlushCancelsPendingDebounce(t *testing.T) {
	kv := &countingKV{KV: store.NewMemory()}
	k, _ := newTestKeeper(t, testConfig(), kv, contactHTML)
	ctx := context.Background()
	k.Rebuild(ctx)

	k.FieldChanged(ctx, "contact", form.CategoryText)
	k.Flush(ctx)

	time.Sleep(150 * time.Millisecond)

	if got := kv.setCount(); got != 1 {
		t.Fatalf("got %d persists, want 1 (flush only, debounce cancelled)", got)
	}
}

func TestAutoSaveOffIgnoresFieldChanges(t *testing.T) {
	cfg := testConfig()
	cfg.AutoSave = false
	kv := &countingKV{KV: store.NewMemory()}
	k, _ := newTestKeeper(t, cfg, kv, contactHTML)
	ctx := context.Background()
	k.Rebuild(ctx)

	k.FieldChanged(ctx, "contact", form.CategoryText)
	k.FieldChanged(ctx, "contact", form.CategoryFile)
	time.Sleep(100 * time.Millisecond)

	if got := kv.setCount(); got != 0 {
		t.Fatalf("got %d persists with auto_save off, want 0", got)
	}
}

func TestRestoreAppliesPersistedSnapshot(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	k1, doc1 := newTestKeeper(t, testConfig(), kv, contactHTML)
	k1.SetPageURL("https://example.com/contact")
	k1.Rebuild(ctx)
	fieldByName(t, doc1.Forms()[0], "email").SetValue("ali@example.com")
	fieldByName(t, doc1.Forms()[0], "newsletter").SetChecked(true)
	if err := k1.Save(ctx, "contact"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh generation of the same page, fields empty again.
	k2, doc2 := newTestKeeper(t, testConfig(), kv, contactHTML)
	k2.Rebuild(ctx)

	f := doc2.Forms()[0]
	if got := fieldByName(t, f, "email").Value(); got != "ali@example.com" {
		t.Errorf("restored email = %q, want %q", got, "ali@example.com")
	}
	if !fieldByName(t, f, "newsletter").Checked() {
		t.Error("newsletter not restored to checked")
	}
	if got := fieldByName(t, f, "authenticity_token").Value(); got != "tok-1" {
		t.Errorf("excluded token = %q, want untouched %q", got, "tok-1")
	}

	events := doc2.ChangeEvents()
	if len(events) == 0 {
		t.Fatal("no change events dispatched on restore")
	}
}

func TestStaleSnapshotPurgedOnRestore(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	captured := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	k1, doc1 := newTestKeeper(t, testConfig(), kv, contactHTML)
	k1.now = func() time.Time { return captured }
	k1.Rebuild(ctx)
	fieldByName(t, doc1.Forms()[0], "email").SetValue("old@example.com")
	if err := k1.Save(ctx, "contact"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	k2, doc2 := newTestKeeper(t, testConfig(), kv, contactHTML)
	k2.now = func() time.Time { return captured.Add(snapshot.MaxAge + time.Minute) }
	k2.Rebuild(ctx)

	if got := fieldByName(t, doc2.Forms()[0], "email").Value(); got != "" {
		t.Errorf("stale snapshot applied: email = %q, want empty", got)
	}
	if _, ok, _ := kv.Get(ctx, "formkeep:contact"); ok {
		t.Error("stale snapshot not purged from store")
	}
}

func TestMalformedEnvelopePurgedOnRestore(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	if err := kv.Set(ctx, "formkeep:contact", []byte("{not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	k, doc := newTestKeeper(t, testConfig(), kv, contactHTML)
	k.Rebuild(ctx)

	if got := fieldByName(t, doc.Forms()[0], "email").Value(); got != "" {
		t.Errorf("email = %q after malformed restore, want empty", got)
	}
	if _, ok, _ := kv.Get(ctx, "formkeep:contact"); ok {
		t.Error("malformed envelope not purged")
	}
}

func TestSubmittedDiscardsWhenFormGone(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	doc, err := htmlform.ParseString(contactHTML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	empty, err := htmlform.ParseString(`<html><body><p>Thanks!</p></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var mu sync.Mutex
	current := doc
	discover := func() []form.Form {
		mu.Lock()
		defer mu.Unlock()
		return current.Forms()
	}

	k, err := New(testConfig(), kv, discover)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	k.Rebuild(ctx)
	if err := k.Save(ctx, "contact"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	k.Submitted(ctx, "contact")
	mu.Lock()
	current = empty // successful submit navigated away
	mu.Unlock()

	time.Sleep(150 * time.Millisecond)

	if _, ok, _ := kv.Get(ctx, "formkeep:contact"); ok {
		t.Error("state retained although the form is gone after submit")
	}
}

func TestSubmittedRetainsWhenFormStillPresent(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	k, _ := newTestKeeper(t, testConfig(), kv, contactHTML)
	k.Rebuild(ctx)
	if err := k.Save(ctx, "contact"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The form stays in the DOM: server-side validation failure.
	k.Submitted(ctx, "contact")
	time.Sleep(150 * time.Millisecond)

	if _, ok, _ := kv.Get(ctx, "formkeep:contact"); !ok {
		t.Error("state discarded although the form is still present")
	}
}

func TestSubmittedDiscardsAcrossNavigation(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	doc, err := htmlform.ParseString(contactHTML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	thanks, err := htmlform.ParseString(`<html><body><p>Thanks!</p></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var mu sync.Mutex
	current := doc
	discover := func() []form.Form {
		mu.Lock()
		defer mu.Unlock()
		return current.Forms()
	}

	k, err := New(testConfig(), kv, discover)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	k.Rebuild(ctx)
	if err := k.Save(ctx, "contact"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The normal success flow: submit, then the page-transition library
	// replaces the content before the deferred check fires.
	k.Submitted(ctx, "contact")
	mu.Lock()
	current = thanks
	mu.Unlock()
	k.BeforeReplace(ctx)
	k.AfterReplace(ctx)

	time.Sleep(150 * time.Millisecond)

	if _, ok, _ := kv.Get(ctx, "formkeep:contact"); ok {
		t.Error("state retained after submit followed by navigation")
	}
}

func TestSubmittedRetainsAnonymousForm(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	doc, err := htmlform.ParseString(`<html><body>
<form><input type="text" name="q" value="hello"></form>
</body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	k, err := New(testConfig(), kv, doc.Discoverer(),
		WithIDGenerator(func() string { return "form_anon1" }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	k.Rebuild(ctx)
	if err := k.Save(ctx, "form_anon1"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A generated identity can never be matched by re-discovery, so the
	// presence heuristic has no signal; state must be retained.
	k.Submitted(ctx, "form_anon1")
	time.Sleep(150 * time.Millisecond)

	if _, ok, _ := kv.Get(ctx, "formkeep:form_anon1"); !ok {
		t.Error("anonymous form state discarded by a check that cannot match it")
	}
}

func TestOperationsRejectUnknownForm(t *testing.T) {
	k, _ := newTestKeeper(t, testConfig(), store.NewMemory(), contactHTML)
	ctx := context.Background()
	k.Rebuild(ctx)

	for _, op := range []func(context.Context, string) error{k.Save, k.Restore, k.Clear} {
		if err := op(ctx, "nope"); !errors.Is(err, ErrUnknownForm) {
			t.Errorf("got %v, want ErrUnknownForm", err)
		}
	}
}

func TestClearAllRemovesEveryKey(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	k, _ := newTestKeeper(t, testConfig(), kv, contactHTML)
	k.Rebuild(ctx)
	if err := k.Save(ctx, ""); err != nil {
		t.Fatalf("Save all: %v", err)
	}

	if err := k.Clear(ctx, ""); err != nil {
		t.Fatalf("Clear all: %v", err)
	}
	keys, err := kv.Keys(ctx, "formkeep:")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("got %d keys after Clear all, want 0", len(keys))
	}

	ins, err := k.Inspect(ctx)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got := ins.Forms[0].State; got != "idle" {
		t.Errorf("State after clear = %q, want %q", got, "idle")
	}
}

func TestInspectDoesNotPurgeStaleState(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	captured := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	k, doc := newTestKeeper(t, testConfig(), kv, contactHTML)
	k.now = func() time.Time { return captured }
	k.Rebuild(ctx)
	fieldByName(t, doc.Forms()[0], "email").SetValue("x@example.com")
	if err := k.Save(ctx, "contact"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	k.now = func() time.Time { return captured.Add(snapshot.MaxAge + time.Hour) }
	ins, err := k.Inspect(ctx)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	p := ins.Forms[0].Persisted
	if p == nil {
		t.Fatal("Persisted summary missing")
	}
	if p.Usable {
		t.Error("Usable = true for a stale envelope")
	}
	if _, ok, _ := kv.Get(ctx, "formkeep:contact"); !ok {
		t.Error("Inspect purged the envelope; diagnostics must not mutate")
	}
}
