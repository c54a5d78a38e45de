// Package snapshot defines the structured types produced and consumed by the
// form codec. These are the public API contract: any consumer (stores, MCP
// tools, diagnostics) imports this package to read or persist form state.
package snapshot

import (
	"encoding/json"
	"fmt"
)

// Metadata keys live in a reserved underscore namespace inside the flattened
// snapshot object so they cannot collide with real field names. Forms must
// not name fields after these keys.
const (
	MetaUnchecked = "_unchecked"
	MetaWidgets   = "_widgets"
)

// FileRef describes one file selected in a file input. Browsers forbid
// programmatic file assignment, so restoration is informational only:
// never bytes, only name/size/type.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// WidgetValue is captured custom-widget state: either a boolean open/closed
// flag (dropdown widgets) or a list of file references (upload widgets).
type WidgetValue struct {
	open  *bool
	files []FileRef
}

// OpenState creates a WidgetValue carrying a dropdown open flag.
func OpenState(open bool) WidgetValue {
	return WidgetValue{open: &open}
}

// FileList creates a WidgetValue carrying upload-widget file references.
func FileList(refs []FileRef) WidgetValue {
	return WidgetValue{files: append([]FileRef(nil), refs...)}
}

// Open returns the open flag and whether this widget value carries one.
func (w WidgetValue) Open() (bool, bool) {
	if w.open == nil {
		return false, false
	}
	return *w.open, true
}

// Files returns the captured file references, nil for flag-valued widgets.
func (w WidgetValue) Files() []FileRef { return w.files }

// MarshalJSON emits a bare bool for flags and an array for file lists.
func (w WidgetValue) MarshalJSON() ([]byte, error) {
	if w.open != nil {
		return json.Marshal(*w.open)
	}
	return json.Marshal(w.files)
}

// UnmarshalJSON accepts either a bool or an array of file references.
func (w *WidgetValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && (data[0] == 't' || data[0] == 'f') {
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*w = WidgetValue{open: &b}
		return nil
	}
	var refs []FileRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return err
	}
	*w = WidgetValue{files: refs}
	return nil
}

// Snapshot is a point-in-time structured capture of one form's field values:
// a field-name → value map plus the unchecked-checkbox list and custom-widget
// state. It flattens to a single JSON object with the metadata lists under
// the reserved keys.
type Snapshot struct {
	Fields    map[string]Value
	Unchecked []string
	Widgets   map[string]WidgetValue
}

// New creates an empty Snapshot.
func New() Snapshot {
	return Snapshot{Fields: make(map[string]Value)}
}

// Empty reports whether nothing was captured.
func (s Snapshot) Empty() bool {
	return len(s.Fields) == 0 && len(s.Unchecked) == 0 && len(s.Widgets) == 0
}

// Add records a value for name, promoting to a list on repeat occurrences.
func (s *Snapshot) Add(name, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]Value)
	}
	if prev, ok := s.Fields[name]; ok {
		s.Fields[name] = prev.Append(value)
		return
	}
	s.Fields[name] = String(value)
}

// MarkUnchecked records a checkbox name observed unchecked at capture time.
func (s *Snapshot) MarkUnchecked(name string) {
	for _, n := range s.Unchecked {
		if n == name {
			return
		}
	}
	s.Unchecked = append(s.Unchecked, name)
}

// SetWidget records custom-widget state under the widget's name.
func (s *Snapshot) SetWidget(name string, w WidgetValue) {
	if s.Widgets == nil {
		s.Widgets = make(map[string]WidgetValue)
	}
	s.Widgets[name] = w
}

// MarshalJSON flattens fields and metadata into one object.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	flat := make(map[string]json.RawMessage, len(s.Fields)+2)
	for name, v := range s.Fields {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("snapshot: field %q: %w", name, err)
		}
		flat[name] = data
	}
	if len(s.Unchecked) > 0 {
		data, err := json.Marshal(s.Unchecked)
		if err != nil {
			return nil, err
		}
		flat[MetaUnchecked] = data
	}
	if len(s.Widgets) > 0 {
		data, err := json.Marshal(s.Widgets)
		if err != nil {
			return nil, err
		}
		flat[MetaWidgets] = data
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits the flattened object back into fields and metadata.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	out := New()
	for name, raw := range flat {
		switch name {
		case MetaUnchecked:
			if err := json.Unmarshal(raw, &out.Unchecked); err != nil {
				return fmt.Errorf("snapshot: %s: %w", MetaUnchecked, err)
			}
		case MetaWidgets:
			if err := json.Unmarshal(raw, &out.Widgets); err != nil {
				return fmt.Errorf("snapshot: %s: %w", MetaWidgets, err)
			}
		default:
			var v Value
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("snapshot: field %q: %w", name, err)
			}
			out.Fields[name] = v
		}
	}
	*s = out
	return nil
}
