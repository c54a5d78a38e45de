// Package codec converts between live form state and structured snapshots.
//
// Encode walks every eligible control of a form and produces a
// snapshot.Snapshot; Decode replays a snapshot onto a freshly rendered
// (possibly DOM-regenerated) form, per field-type rules. The two are
// inverse over a round-trip, except file inputs where restoration is
// informational only.
package codec

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/formkeep/form"
	"github.com/hazyhaar/formkeep/snapshot"
)

// Exclusion is the set of field names never read or written.
type Exclusion map[string]struct{}

// NewExclusion builds an Exclusion from field names.
func NewExclusion(names ...string) Exclusion {
	ex := make(Exclusion, len(names))
	for _, n := range names {
		ex[n] = struct{}{}
	}
	return ex
}

func (ex Exclusion) excluded(name string) bool {
	_, ok := ex[name]
	return ok
}

// Encode captures the current state of every eligible field of f.
//
// Rules:
//   - fields with empty or excluded names are skipped entirely;
//   - repeated names accumulate: scalar on first occurrence, promoted to a
//     list on the second, appended after that;
//   - checked checkboxes contribute their value, every unchecked checkbox
//     is recorded in the unchecked metadata list;
//   - only the checked member of a radio group contributes;
//   - multi-selects contribute one value per selected option;
//   - file inputs and upload widgets contribute FileRef metadata, never
//     bytes; dropdown widgets contribute their open/closed flag.
func Encode(f form.Form, ex Exclusion) snapshot.Snapshot {
	snap := snapshot.New()

	for _, fld := range f.Fields() {
		name := fld.Name()
		if name == "" || ex.excluded(name) {
			continue
		}

		switch fld.Category() {
		case form.CategoryIgnored:

		case form.CategoryCheckbox:
			if fld.Checked() {
				snap.Add(name, fld.Value())
			} else {
				snap.MarkUnchecked(name)
			}

		case form.CategoryRadio:
			if fld.Checked() {
				snap.Add(name, fld.Value())
			}

		case form.CategorySelectMulti:
			for _, opt := range fld.Options() {
				if opt.Selected() {
					snap.Add(name, opt.Value())
				}
			}

		case form.CategoryFile:
			if refs := fld.Files(); len(refs) > 0 {
				snap.SetWidget(name, snapshot.FileList(refs))
			}

		default:
			snap.Add(name, fld.Value())
		}
	}

	for _, w := range f.Widgets() {
		name := w.Name()
		if name == "" || ex.excluded(name) {
			continue
		}
		switch w.Kind() {
		case form.WidgetDropdown:
			snap.SetWidget(name, snapshot.OpenState(w.Open()))
		case form.WidgetFile:
			if refs := w.Files(); len(refs) > 0 {
				snap.SetWidget(name, snapshot.FileList(refs))
			}
		}
	}

	return snap
}

// Decode replays snap onto f. Pass order matters: the generic per-field
// pass runs first, then every name in the unchecked list forces its
// checkboxes off (so it is not overridden), then widget state is replayed.
// A change notification is dispatched for every field a value was applied
// to, as if the user had typed it.
func Decode(f form.Form, snap snapshot.Snapshot, ex Exclusion) {
	fields := f.Fields()
	byName := make(map[string][]form.Field, len(fields))
	for _, fld := range fields {
		byName[fld.Name()] = append(byName[fld.Name()], fld)
	}

	for name, val := range snap.Fields {
		if name == "" || ex.excluded(name) {
			continue
		}
		for _, fld := range byName[name] {
			if applyField(fld, val) {
				fld.DispatchChange()
			}
		}
	}

	for _, name := range snap.Unchecked {
		if ex.excluded(name) {
			continue
		}
		for _, fld := range byName[name] {
			if fld.Category() != form.CategoryCheckbox {
				continue
			}
			fld.SetChecked(false)
			fld.DispatchChange()
		}
	}

	replayWidgets(f, snap, ex, byName)
}

// applyField applies one captured value to one control and reports whether
// anything was applied.
func applyField(fld form.Field, val snapshot.Value) bool {
	switch fld.Category() {
	case form.CategoryIgnored:
		return false

	case form.CategoryFile:
		// Browsers forbid programmatic file assignment.
		return false

	case form.CategoryCheckbox:
		// Checked iff the captured value (list or scalar) matches.
		fld.SetChecked(val.Contains(fld.Value()))
		return true

	case form.CategoryRadio:
		fld.SetChecked(val.First() == fld.Value())
		return true

	case form.CategorySelectMulti:
		for _, opt := range fld.Options() {
			opt.SetSelected(val.Contains(opt.Value()))
		}
		return true

	default:
		// Scalar, or the first captured value if a list was recorded.
		fld.SetValue(val.First())
		return true
	}
}

func replayWidgets(f form.Form, snap snapshot.Snapshot, ex Exclusion, byName map[string][]form.Field) {
	if len(snap.Widgets) == 0 {
		return
	}

	widgets := make(map[string]form.Widget)
	for _, w := range f.Widgets() {
		widgets[w.Name()] = w
	}

	for name, wv := range snap.Widgets {
		if ex.excluded(name) {
			continue
		}

		if open, ok := wv.Open(); ok {
			if w, found := widgets[name]; found && w.Kind() == form.WidgetDropdown {
				w.SetOpen(open)
			}
			continue
		}

		if refs := wv.Files(); len(refs) > 0 {
			f.ShowFileNotice(name, FileNotice(refs))
		}
	}
}

// FileNotice formats the informational text rendered near a file input:
// one "name (size)" entry per captured file, human-readable binary sizes.
func FileNotice(refs []snapshot.FileRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = fmt.Sprintf("%s (%s)", r.Name, snapshot.HumanSize(r.Size))
	}
	return strings.Join(parts, ", ")
}
