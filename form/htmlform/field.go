package htmlform

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/formkeep/form"
	"github.com/hazyhaar/formkeep/snapshot"
)

const noticeClass = "formkeep-file-notice"

type htmlForm struct {
	doc  *Document
	node *html.Node
}

func (f *htmlForm) ID() string   { return attrVal(f.node, "id") }
func (f *htmlForm) Name() string { return attrVal(f.node, "name") }

func (f *htmlForm) Fields() []form.Field {
	var out []form.Field
	walk(f.node, func(n *html.Node) {
		switch n.DataAtom {
		case atom.Input, atom.Select, atom.Textarea:
			cat := form.CategoryOf(n.Data, attrVal(n, "type"))
			if cat == form.CategorySelectOne && hasAttr(n, "multiple") {
				cat = form.CategorySelectMulti
			}
			out = append(out, &field{doc: f.doc, node: n, cat: cat})
		}
	})
	return out
}

func (f *htmlForm) Widgets() []form.Widget {
	var out []form.Widget
	walk(f.node, func(n *html.Node) {
		switch attrVal(n, "data-widget") {
		case "dropdown":
			out = append(out, &widget{node: n, kind: form.WidgetDropdown})
		case "file":
			out = append(out, &widget{node: n, kind: form.WidgetFile})
		}
	})
	return out
}

// ShowFileNotice inserts (or updates) an informational notice element right
// after the named file input. File inputs themselves are never assigned.
func (f *htmlForm) ShowFileNotice(fieldName, text string) {
	var target *html.Node
	walk(f.node, func(n *html.Node) {
		if target == nil && n.DataAtom == atom.Input &&
			attrVal(n, "type") == "file" && attrVal(n, "name") == fieldName {
			target = n
		}
	})
	if target == nil {
		return
	}

	// Reuse an existing notice for this field.
	if next := target.NextSibling; next != nil && next.Type == html.ElementNode &&
		attrVal(next, "class") == noticeClass && attrVal(next, "data-for") == fieldName {
		setTextContent(next, text)
		return
	}

	notice := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr: []html.Attribute{
			{Key: "class", Val: noticeClass},
			{Key: "data-for", Val: fieldName},
		},
	}
	notice.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	target.Parent.InsertBefore(notice, target.NextSibling)
}

type field struct {
	doc  *Document
	node *html.Node
	cat  form.Category
}

func (f *field) Name() string            { return attrVal(f.node, "name") }
func (f *field) Category() form.Category { return f.cat }

func (f *field) Value() string {
	switch f.node.DataAtom {
	case atom.Textarea:
		return textContent(f.node)
	case atom.Select:
		var first, selected string
		for i, o := range f.options() {
			if i == 0 {
				first = o.Value()
			}
			if o.Selected() && selected == "" {
				selected = o.Value()
			}
		}
		if selected != "" {
			return selected
		}
		return first
	default:
		// Checked controls submit "on" when no value attribute is present.
		if v, ok := attr(f.node, "value"); ok {
			return v
		}
		if f.cat == form.CategoryCheckbox || f.cat == form.CategoryRadio {
			return "on"
		}
		return ""
	}
}

func (f *field) SetValue(v string) {
	switch f.node.DataAtom {
	case atom.Textarea:
		setTextContent(f.node, v)
	case atom.Select:
		for _, o := range f.options() {
			o.SetSelected(o.Value() == v)
		}
	default:
		setAttr(f.node, "value", v)
	}
}

func (f *field) Checked() bool { return hasAttr(f.node, "checked") }

func (f *field) SetChecked(checked bool) {
	if checked {
		setAttr(f.node, "checked", "checked")
		return
	}
	delAttr(f.node, "checked")
}

func (f *field) Options() []form.Option {
	opts := f.options()
	out := make([]form.Option, len(opts))
	for i, o := range opts {
		out[i] = o
	}
	return out
}

func (f *field) options() []*option {
	var out []*option
	walk(f.node, func(n *html.Node) {
		if n.DataAtom == atom.Option {
			out = append(out, &option{node: n})
		}
	})
	return out
}

// Files always returns nil: a static parse tree carries no file selections.
// Live pages expose them through the rodform adapter or file widgets.
func (f *field) Files() []snapshot.FileRef { return nil }

func (f *field) DispatchChange() { f.doc.recordChange(f.Name()) }

type option struct {
	node *html.Node
}

func (o *option) Value() string {
	if v, ok := attr(o.node, "value"); ok {
		return v
	}
	return textContent(o.node)
}

func (o *option) Selected() bool { return hasAttr(o.node, "selected") }

func (o *option) SetSelected(selected bool) {
	if selected {
		setAttr(o.node, "selected", "selected")
		return
	}
	delAttr(o.node, "selected")
}
