package htmlform

import (
	"strconv"

	"golang.org/x/net/html"

	"github.com/hazyhaar/formkeep/form"
	"github.com/hazyhaar/formkeep/snapshot"
)

// widget adapts a designated custom-widget container. Containers carry
// data-widget="dropdown"|"file" and data-name; dropdowns track their open
// visual state in data-open, file widgets list selections as child
// elements with data-file-name/-size/-type.
type widget struct {
	node *html.Node
	kind form.WidgetKind
}

func (w *widget) Name() string {
	if n := attrVal(w.node, "data-name"); n != "" {
		return n
	}
	return attrVal(w.node, "name")
}

func (w *widget) Kind() form.WidgetKind { return w.kind }

func (w *widget) Open() bool {
	return attrVal(w.node, "data-open") == "true"
}

func (w *widget) SetOpen(open bool) {
	setAttr(w.node, "data-open", strconv.FormatBool(open))
}

func (w *widget) Files() []snapshot.FileRef {
	var out []snapshot.FileRef
	walk(w.node, func(n *html.Node) {
		name, ok := attr(n, "data-file-name")
		if !ok {
			return
		}
		size, _ := strconv.ParseInt(attrVal(n, "data-file-size"), 10, 64)
		out = append(out, snapshot.FileRef{
			Name: name,
			Size: size,
			Type: attrVal(n, "data-file-type"),
		})
	})
	return out
}
