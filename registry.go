package formkeep

import (
	"time"

	"github.com/hazyhaar/formkeep/form"
)

// saveState is the per-form persistence state.
type saveState int

const (
	stateIdle saveState = iota
	statePendingSave
	stateSaved
)

func (s saveState) String() string {
	switch s {
	case statePendingSave:
		return "pending_save"
	case stateSaved:
		return "saved"
	default:
		return "idle"
	}
}

// registeredForm is one registry entry. Entries live exactly one DOM
// generation: the registry is cleared and rebuilt wholesale on content
// replacement, never incrementally diffed.
type registeredForm struct {
	id         string
	form       form.Form
	storageKey string
	state      saveState
	generated  bool

	// debounce is the armed trailing-debounce handle; arming cancels any
	// existing one. submitCheck is the deferred submission-cleanup handle.
	debounce    *time.Timer
	submitCheck *time.Timer

	lastPersistedAt *time.Time
}

// identityOf derives the stable form identity: explicit id attribute,
// falling back to the name attribute, generated otherwise. A generated
// identity is cached on the entry so it stays stable for the form's DOM
// lifetime, but cannot match anything persisted by a previous generation,
// and cannot be re-discovered by the submission presence check.
func (k *Keeper) identityOf(f form.Form) (id string, generated bool) {
	if id := f.ID(); id != "" {
		return id, false
	}
	if name := f.Name(); name != "" {
		return name, false
	}
	return k.newID(), true
}
