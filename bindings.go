package formkeep

import "github.com/hazyhaar/formkeep/form"

// EventKind names a DOM event an adapter wires at field registration time.
type EventKind string

const (
	EventInput  EventKind = "input"
	EventChange EventKind = "change"
)

// Binding maps a field category to the events worth listening for and
// whether a change persists immediately or through the debounce window.
// Structural acts (dropdown selection, file selection, custom check
// containers) bypass debounce because they don't produce contiguous
// input streams.
type Binding struct {
	Events    []EventKind
	Immediate bool
}

var bindings = map[form.Category]Binding{
	form.CategoryText:        {Events: []EventKind{EventInput, EventChange}},
	form.CategoryTextarea:    {Events: []EventKind{EventInput, EventChange}},
	form.CategoryHidden:      {Events: []EventKind{EventChange}},
	form.CategoryCheckbox:    {Events: []EventKind{EventChange}},
	form.CategoryRadio:       {Events: []EventKind{EventChange}},
	form.CategorySelectOne:   {Events: []EventKind{EventChange}},
	form.CategorySelectMulti: {Events: []EventKind{EventChange}, Immediate: true},
	form.CategoryFile:        {Events: []EventKind{EventChange}, Immediate: true},
	form.CategoryWidget:      {Events: []EventKind{EventChange}, Immediate: true},
}

// BindingFor returns the wiring entry for a category. Adapters consult it
// once per field at registration time.
func BindingFor(cat form.Category) (Binding, bool) {
	b, ok := bindings[cat]
	return b, ok
}
