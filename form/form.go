// Package form abstracts the DOM surface formkeep operates on. The codec
// and the keeper only see these interfaces; adapters bind them to a parsed
// HTML document (htmlform) or a live browser page (rodform).
package form

import "github.com/hazyhaar/formkeep/snapshot"

// Category classifies a field for codec and event-wiring purposes.
type Category int

const (
	// CategoryText covers text-like inputs: text, email, url, number,
	// search, tel, password, date and friends.
	CategoryText Category = iota
	CategoryHidden
	CategoryTextarea
	CategoryCheckbox
	CategoryRadio
	CategorySelectOne
	CategorySelectMulti
	CategoryFile
	// CategoryWidget marks custom-widget containers (dropdowns with an
	// open/closed visual state, pseudo-file-inputs).
	CategoryWidget
	// CategoryIgnored marks submit/reset/button/image inputs, which carry
	// no user state worth preserving.
	CategoryIgnored
)

func (c Category) String() string {
	switch c {
	case CategoryText:
		return "text"
	case CategoryHidden:
		return "hidden"
	case CategoryTextarea:
		return "textarea"
	case CategoryCheckbox:
		return "checkbox"
	case CategoryRadio:
		return "radio"
	case CategorySelectOne:
		return "select-one"
	case CategorySelectMulti:
		return "select-multi"
	case CategoryFile:
		return "file"
	case CategoryWidget:
		return "widget"
	default:
		return "ignored"
	}
}

// CategoryOf maps an element tag and its type attribute to a Category.
func CategoryOf(tag, typ string) Category {
	switch tag {
	case "textarea":
		return CategoryTextarea
	case "select":
		return CategorySelectOne // callers upgrade to multi via the multiple attr
	case "input":
	default:
		return CategoryIgnored
	}
	switch typ {
	case "checkbox":
		return CategoryCheckbox
	case "radio":
		return CategoryRadio
	case "file":
		return CategoryFile
	case "hidden":
		return CategoryHidden
	case "submit", "button", "reset", "image":
		return CategoryIgnored
	default:
		return CategoryText
	}
}

// Option is one entry of a select element.
type Option interface {
	Value() string
	Selected() bool
	SetSelected(bool)
}

// Field is a single named form control.
type Field interface {
	Name() string
	Category() Category

	// Value and SetValue carry the scalar value for non-option fields.
	// For checkboxes and radios, Value is the submission value.
	Value() string
	SetValue(string)

	// Checked state, meaningful for checkboxes and radios only.
	Checked() bool
	SetChecked(bool)

	// Options, meaningful for select categories only.
	Options() []Option

	// Files returns selected-file metadata for file inputs, never bytes.
	Files() []snapshot.FileRef

	// DispatchChange fires a change notification so dependent validation
	// and UI logic reacts as if the user had typed the value.
	DispatchChange()
}

// WidgetKind discriminates custom widgets.
type WidgetKind int

const (
	// WidgetDropdown is a multi-option dropdown with an open/closed state.
	WidgetDropdown WidgetKind = iota
	// WidgetFile is a pseudo-file-input holding selected-file metadata.
	WidgetFile
)

// Widget is a designated custom-widget container within a form.
type Widget interface {
	Name() string
	Kind() WidgetKind
	Open() bool
	SetOpen(bool)
	Files() []snapshot.FileRef
}

// Form is one eligible form on the current page.
type Form interface {
	// ID returns the explicit id attribute, "" if absent.
	ID() string
	// Name returns the name attribute, "" if absent.
	Name() string
	// Fields returns all eligible controls in document order.
	Fields() []Field
	// Widgets returns designated custom-widget containers.
	Widgets() []Widget
	// ShowFileNotice renders a read-only informational notice near the
	// named file input; file inputs are never assigned programmatically.
	ShowFileNotice(fieldName, text string)
}

// Discoverer is the collaborator contract for form discovery: it returns
// the set of eligible forms in the current DOM generation.
type Discoverer func() []Form
