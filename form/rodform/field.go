package rodform

import (
	"context"

	"github.com/hazyhaar/formkeep/form"
	"github.com/hazyhaar/formkeep/snapshot"
)

// Wire shapes of the scan payload. File entries decode straight into
// snapshot.FileRef since the JSON keys match.

type scannedForm struct {
	Index   int             `json:"index"`
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Fields  []scannedField  `json:"fields"`
	Widgets []scannedWidget `json:"widgets"`
}

type scannedField struct {
	Index    int                `json:"index"`
	Tag      string             `json:"tag"`
	Type     string             `json:"type"`
	Name     string             `json:"name"`
	Value    string             `json:"value"`
	Checked  bool               `json:"checked"`
	Multiple bool               `json:"multiple"`
	Options  []scannedOption    `json:"options"`
	Files    []snapshot.FileRef `json:"files"`
}

type scannedOption struct {
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

type scannedWidget struct {
	Index int                `json:"index"`
	Kind  string             `json:"kind"`
	Name  string             `json:"name"`
	Open  bool               `json:"open"`
	Files []snapshot.FileRef `json:"files"`
}

type rodForm struct {
	page *Page
	ctx  context.Context
	data *scannedForm
}

func (f *rodForm) ID() string   { return f.data.ID }
func (f *rodForm) Name() string { return f.data.Name }

func (f *rodForm) Fields() []form.Field {
	out := make([]form.Field, 0, len(f.data.Fields))
	for i := range f.data.Fields {
		out = append(out, &rodField{form: f, data: &f.data.Fields[i]})
	}
	return out
}

func (f *rodForm) Widgets() []form.Widget {
	out := make([]form.Widget, 0, len(f.data.Widgets))
	for i := range f.data.Widgets {
		out = append(out, &rodWidget{form: f, data: &f.data.Widgets[i]})
	}
	return out
}

// ShowFileNotice inserts (or refreshes) a read-only notice div right after
// the named file input. The input itself is never assigned.
func (f *rodForm) ShowFileNotice(fieldName, text string) {
	f.page.eval(f.ctx, `(formIdx, name, text) => {
		const form = document.forms[formIdx];
		if (!form) return;
		const input = form.querySelector('input[type="file"][name="' + CSS.escape(name) + '"]');
		if (!input) return;
		let notice = form.querySelector('div.formkeep-file-notice[data-for="' + CSS.escape(name) + '"]');
		if (!notice) {
			notice = document.createElement('div');
			notice.className = 'formkeep-file-notice';
			notice.dataset.for = name;
			input.insertAdjacentElement('afterend', notice);
		}
		notice.textContent = text;
	}`, f.data.Index, fieldName, text)
}

type rodField struct {
	form *rodForm
	data *scannedField
}

func (fl *rodField) Name() string { return fl.data.Name }

func (fl *rodField) Category() form.Category {
	cat := form.CategoryOf(fl.data.Tag, fl.data.Type)
	if cat == form.CategorySelectOne && fl.data.Multiple {
		return form.CategorySelectMulti
	}
	return cat
}

func (fl *rodField) Value() string { return fl.data.Value }
func (fl *rodField) Checked() bool { return fl.data.Checked }

func (fl *rodField) SetValue(v string) {
	fl.data.Value = v
	fl.form.page.eval(fl.form.ctx, `(formIdx, elIdx, v) => {
		const el = document.forms[formIdx].elements[elIdx];
		if (!el) return;
		if (el.tagName.toLowerCase() === 'select') {
			for (const o of el.options) o.selected = (o.value === v);
			return;
		}
		el.value = v;
	}`, fl.form.data.Index, fl.data.Index, v)
}

func (fl *rodField) SetChecked(v bool) {
	fl.data.Checked = v
	fl.form.page.eval(fl.form.ctx, `(formIdx, elIdx, v) => {
		const el = document.forms[formIdx].elements[elIdx];
		if (el) el.checked = v;
	}`, fl.form.data.Index, fl.data.Index, v)
}

func (fl *rodField) Options() []form.Option {
	out := make([]form.Option, 0, len(fl.data.Options))
	for i := range fl.data.Options {
		out = append(out, &rodOption{field: fl, data: &fl.data.Options[i]})
	}
	return out
}

func (fl *rodField) Files() []snapshot.FileRef { return fl.data.Files }

func (fl *rodField) DispatchChange() {
	fl.form.page.eval(fl.form.ctx, `(formIdx, elIdx) => {
		const el = document.forms[formIdx].elements[elIdx];
		if (el) el.dispatchEvent(new Event('change', {bubbles: true}));
	}`, fl.form.data.Index, fl.data.Index)
}

type rodOption struct {
	field *rodField
	data  *scannedOption
}

func (o *rodOption) Value() string  { return o.data.Value }
func (o *rodOption) Selected() bool { return o.data.Selected }

func (o *rodOption) SetSelected(v bool) {
	o.data.Selected = v
	fl := o.field
	fl.form.page.eval(fl.form.ctx, `(formIdx, elIdx, value, v) => {
		const el = document.forms[formIdx].elements[elIdx];
		if (!el || !el.options) return;
		for (const opt of el.options) {
			if (opt.value === value) opt.selected = v;
		}
	}`, fl.form.data.Index, fl.data.Index, o.data.Value, v)
}

type rodWidget struct {
	form *rodForm
	data *scannedWidget
}

func (w *rodWidget) Name() string { return w.data.Name }

func (w *rodWidget) Kind() form.WidgetKind {
	if w.data.Kind == "file" {
		return form.WidgetFile
	}
	return form.WidgetDropdown
}

func (w *rodWidget) Open() bool { return w.data.Open }

func (w *rodWidget) SetOpen(v bool) {
	w.data.Open = v
	w.form.page.eval(w.form.ctx, `(formIdx, wIdx, v) => {
		const form = document.forms[formIdx];
		if (!form) return;
		const el = form.querySelectorAll('[data-widget]')[wIdx];
		if (el) el.dataset.open = v ? 'true' : 'false';
	}`, w.form.data.Index, w.data.Index, v)
}

func (w *rodWidget) Files() []snapshot.FileRef { return w.data.Files }
