// Package view builds the admin pages as a tree of virtual nodes and
// renders the tree to HTML.
package view

import (
	"html"
	"io"
	"strings"
)

// voidElements never have children or a closing tag.
var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true, "link": true, "meta": true,
}

// Attr is one element attribute. An attribute with an empty value and
// Bool set renders as a bare name.
type Attr struct {
	Key   string
	Value string
	Bool  bool
}

// Node is an element, a text node or a fragment of trusted markup.
type Node struct {
	Tag      string
	Attrs    []Attr
	Children []*Node
	Text     string
	// Trusted marks Text as already sanitized markup.
	Trusted bool
}

// El creates an element.
func El(tag string, attrs []Attr, children ...*Node) *Node {
	return &Node{Tag: tag, Attrs: attrs, Children: compact(children)}
}

// Text creates an escaped text node.
func Text(s string) *Node { return &Node{Text: s} }

// Raw creates a node of trusted markup. Only sanitized strings may be
// passed.
func Raw(s string) *Node { return &Node{Text: s, Trusted: true} }

// Fragment groups nodes without a wrapping element.
func Fragment(children ...*Node) *Node { return &Node{Children: compact(children)} }

// A builds attributes from alternating key/value pairs.
func A(kv ...string) []Attr {
	out := make([]Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Attr{Key: kv[i], Value: kv[i+1]})
	}
	return out
}

// Flag returns a boolean attribute when on, nil otherwise.
func Flag(name string, on bool) []Attr {
	if !on {
		return nil
	}
	return []Attr{{Key: name, Bool: true}}
}

// Join concatenates attribute lists.
func Join(lists ...[]Attr) []Attr {
	var out []Attr
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func compact(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Render writes n as HTML.
func Render(w io.Writer, n *Node) error {
	var b strings.Builder
	write(&b, n)
	_, err := io.WriteString(w, b.String())
	return err
}

// String renders n to a string.
func String(n *Node) string {
	var b strings.Builder
	write(&b, n)
	return b.String()
}

func write(b *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	if n.Tag == "" {
		if n.Trusted {
			b.WriteString(n.Text)
		} else {
			b.WriteString(html.EscapeString(n.Text))
		}
		for _, c := range n.Children {
			write(b, c)
		}
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		if a.Bool && a.Value == "" {
			continue
		}
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if voidElements[n.Tag] {
		return
	}
	for _, c := range n.Children {
		write(b, c)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}
