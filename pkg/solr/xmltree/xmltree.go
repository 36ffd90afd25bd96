// Package xmltree parses an XML document into a navigable element tree.
// It backs the search proxy's non-JSON response mode, where the body is
// handed to callers as markup rather than decoded records.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoRoot is returned when a document contains no element.
var ErrNoRoot = errors.New("xmltree: document has no root element")

// Node is one element. Text holds the element's own character data,
// concatenated, with surrounding whitespace trimmed.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
	Parent   *Node
}

// Parse reads a whole document and returns its root element.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var root, cur *Node
	var text strings.Builder
	var texts []string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltree: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local, Parent: cur}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if cur == nil {
				if root != nil {
					return nil, errors.New("xmltree: multiple root elements")
				}
				root = n
			} else {
				cur.Children = append(cur.Children, n)
			}
			texts = append(texts, text.String())
			text.Reset()
			cur = n
		case xml.EndElement:
			cur.Text = strings.TrimSpace(text.String())
			text.Reset()
			text.WriteString(texts[len(texts)-1])
			texts = texts[:len(texts)-1]
			cur = cur.Parent
		case xml.CharData:
			if cur != nil {
				text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// ParseBytes parses an in-memory document.
func ParseBytes(data []byte) (*Node, error) {
	return Parse(bytes.NewReader(data))
}

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	return n.Attrs[name]
}

// Find returns the first descendant matching a slash-separated path of
// element names relative to n. A path segment may be qualified with an
// attribute match, e.g. `result/doc/str[@name=id]`.
func (n *Node) Find(path string) *Node {
	found := n.FindAll(path)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// FindAll returns every element matching path, in document order.
func (n *Node) FindAll(path string) []*Node {
	if n == nil {
		return nil
	}
	nodes := []*Node{n}
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		name, attr, value := parseSegment(seg)
		var next []*Node
		for _, node := range nodes {
			for _, c := range node.Children {
				if c.Name != name && name != "*" {
					continue
				}
				if attr != "" && c.Attrs[attr] != value {
					continue
				}
				next = append(next, c)
			}
		}
		nodes = next
	}
	return nodes
}

// parseSegment splits `name[@attr=value]` into its parts.
func parseSegment(seg string) (name, attr, value string) {
	open := strings.IndexByte(seg, '[')
	if open < 0 || !strings.HasSuffix(seg, "]") {
		return seg, "", ""
	}
	name = seg[:open]
	cond := strings.TrimPrefix(seg[open+1:len(seg)-1], "@")
	attr, value, _ = strings.Cut(cond, "=")
	value = strings.Trim(value, `"'`)
	return name, attr, value
}
