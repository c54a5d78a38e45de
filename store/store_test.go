package store

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/formkeep/internal/dbopen"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return map[string]KV{
		"memory": NewMemory(),
		"sqlite": NewSQLite(db),
	}
}

func TestKV_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get(ctx, "formkeep:missing"); err != nil || ok {
				t.Fatalf("get missing: ok=%v err=%v, want absent", ok, err)
			}

			if err := kv.Set(ctx, "formkeep:signup", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			payload, ok, err := kv.Get(ctx, "formkeep:signup")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if string(payload) != `{"a":1}` {
				t.Errorf("payload: got %s", payload)
			}

			// Last write wins.
			if err := kv.Set(ctx, "formkeep:signup", []byte(`{"a":2}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			payload, _, _ = kv.Get(ctx, "formkeep:signup")
			if string(payload) != `{"a":2}` {
				t.Errorf("after overwrite: got %s", payload)
			}

			if err := kv.Remove(ctx, "formkeep:signup"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if _, ok, _ := kv.Get(ctx, "formkeep:signup"); ok {
				t.Error("removed key still present")
			}
			// Removing an absent key is not an error.
			if err := kv.Remove(ctx, "formkeep:signup"); err != nil {
				t.Errorf("remove absent: %v", err)
			}
		})
	}
}

func TestKV_KeysPrefix(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv.Set(ctx, "formkeep:a", []byte("1"))
			kv.Set(ctx, "formkeep:b", []byte("2"))
			kv.Set(ctx, "other:c", []byte("3"))

			keys, err := kv.Keys(ctx, "formkeep:")
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			if len(keys) != 2 {
				t.Fatalf("keys: got %v, want 2 formkeep entries", keys)
			}
			for _, k := range keys {
				if k != "formkeep:a" && k != "formkeep:b" {
					t.Errorf("unexpected key %q", k)
				}
			}
		})
	}
}

func TestKV_KeysPrefixWildcardsAreLiteral(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// A configured prefix may contain LIKE wildcard characters;
			// they must match literally, not as patterns.
			kv.Set(ctx, "my_app:a", []byte("1"))
			kv.Set(ctx, "myXapp:b", []byte("2"))
			kv.Set(ctx, "my%app:c", []byte("3"))

			keys, err := kv.Keys(ctx, "my_app:")
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			if len(keys) != 1 || keys[0] != "my_app:a" {
				t.Fatalf("keys for %q: got %v, want [my_app:a]", "my_app:", keys)
			}

			keys, err = kv.Keys(ctx, "my%app:")
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			if len(keys) != 1 || keys[0] != "my%app:c" {
				t.Fatalf("keys for %q: got %v, want [my%%app:c]", "my%app:", keys)
			}
		})
	}
}
