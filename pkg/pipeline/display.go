package pipeline

import (
	"strings"

	"golang.org/x/net/html"
)

// writeDisplay replaces the one text node inside n that shows the handle (or
// whatever we last wrote there) with want, leaving sibling text and markup
// untouched. Nodes often wrap the visible name in structural markup, so
// whole-node replacement would destroy it.
//
// When a resolved label is shown, the handle is kept recoverable as a title
// tooltip; showing the bare handle removes the tooltip again.
func writeDisplay(n *html.Node, m *marker, want string, tooltip bool) {
	target := findDisplayText(n, m)
	if target == nil {
		// Nothing shows the handle (identity attribute with unrelated visible
		// text). No label was written, so the tooltip stays off too.
		removeAttrIf(n, "title", "@"+m.handle)
		return
	}

	leading, core, trailing := splitPadding(target.Data)
	if m.shown == "" {
		m.sigil = strings.HasPrefix(core, "@")
	}

	next := want
	// A leading sigil survives only while the handle itself is shown;
	// the label form carries the sigil in the tooltip instead.
	if m.sigil && strings.EqualFold(want, m.handle) {
		next = "@" + want
	}

	target.Data = leading + next + trailing
	m.shown = next

	if tooltip {
		setAttr(n, "title", "@"+m.handle)
	} else {
		removeAttrIf(n, "title", "@"+m.handle)
	}
}

// findDisplayText locates the text node whose content equals the handle or
// the currently shown value, with or without a leading sigil,
// case-insensitively.
func findDisplayText(n *html.Node, m *marker) *html.Node {
	if n.Type == html.TextNode {
		if m.matchesText(strings.TrimSpace(n.Data)) {
			return n
		}
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findDisplayText(c, m); found != nil {
			return found
		}
	}
	return nil
}

func (m *marker) matchesText(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	bare := strings.TrimPrefix(trimmed, "@")
	if strings.EqualFold(bare, m.handle) {
		return true
	}
	if m.shown == "" {
		return false
	}
	return trimmed == m.shown || strings.EqualFold(bare, strings.TrimPrefix(m.shown, "@"))
}

// splitPadding separates surrounding whitespace from the visible text so the
// replacement preserves the node's original spacing.
func splitPadding(data string) (leading, core, trailing string) {
	core = strings.TrimLeft(data, " \t\r\n")
	leading = data[:len(data)-len(core)]
	trimmed := strings.TrimRight(core, " \t\r\n")
	trailing = core[len(trimmed):]
	return leading, trimmed, trailing
}

func setAttr(n *html.Node, key, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// removeAttrIf drops an attribute only when it holds the value we put there,
// so a pre-existing author-supplied title is left alone.
func removeAttrIf(n *html.Node, key, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key && n.Attr[i].Val == value {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
