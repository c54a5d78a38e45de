package formkeep

import (
	"context"
	"sort"
	"time"

	"github.com/hazyhaar/formkeep/snapshot"
)

// Inspection is the diagnostics view: the current registry plus a summary
// of what is persisted per form.
type Inspection struct {
	Forms      []FormStatus `json:"forms"`
	StoredKeys []string     `json:"stored_keys"`
}

// FormStatus describes one registry entry.
type FormStatus struct {
	ID              string         `json:"id"`
	StorageKey      string         `json:"storage_key"`
	State           string         `json:"state"`
	LastPersistedAt *time.Time     `json:"last_persisted_at,omitempty"`
	Persisted       *PersistedInfo `json:"persisted,omitempty"`
}

// PersistedInfo summarises the stored envelope for one form.
type PersistedInfo struct {
	CapturedAt time.Time `json:"captured_at"`
	URL        string    `json:"url"`
	Fields     int       `json:"fields"`
	Usable     bool      `json:"usable"`
}

// Inspect returns the registry and per-form persisted summaries. Unlike
// Restore, reading here never purges: diagnostics must not mutate state.
func (k *Keeper) Inspect(ctx context.Context) (*Inspection, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := &Inspection{}

	ids := make([]string, 0, len(k.forms))
	for id := range k.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rf := k.forms[id]
		st := FormStatus{
			ID:              rf.id,
			StorageKey:      rf.storageKey,
			State:           rf.state.String(),
			LastPersistedAt: rf.lastPersistedAt,
		}

		if payload, ok, err := k.kv.Get(ctx, rf.storageKey); err == nil && ok {
			if env, err := snapshot.UnmarshalEnvelope(payload); err == nil {
				st.Persisted = &PersistedInfo{
					CapturedAt: env.CapturedAt(),
					URL:        env.URL,
					Fields:     len(env.State.Fields),
					Usable:     env.Usable(k.now()),
				}
			}
		}
		out.Forms = append(out.Forms, st)
	}

	keys, err := k.kv.Keys(ctx, k.cfg.StoragePrefix)
	if err != nil {
		return nil, err
	}
	out.StoredKeys = keys
	return out, nil
}
