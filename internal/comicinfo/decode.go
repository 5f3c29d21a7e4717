package comicinfo

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const xmlNamespaceURI = "http://www.w3.org/XML/1998/namespace"

var (
	// ErrMalformed wraps every reason a document could not be decoded.
	ErrMalformed = errors.New("comicinfo: malformed document")
	// ErrUnboundPrefix reports a prefix with no namespace binding.
	ErrUnboundPrefix = errors.New("comicinfo: unbound namespace prefix")
)

// Parse decodes data and returns an empty Record when it is not a usable
// document.
func Parse(data []byte) Record {
	rec, err := Decode(data)
	if err != nil {
		return Record{}
	}
	return rec
}

// Decode parses data into a Record. Errors wrap ErrMalformed.
func Decode(data []byte) (Record, error) {
	root, err := parseTree(data)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return buildRecord(root), nil
}

type scope struct {
	parent   *scope
	bindings []Namespace
}

func (s *scope) lookup(prefix string) (string, bool) {
	if prefix == "xml" {
		return xmlNamespaceURI, true
	}
	for sc := s; sc != nil; sc = sc.parent {
		for i := len(sc.bindings) - 1; i >= 0; i-- {
			if sc.bindings[i].Prefix == prefix {
				return sc.bindings[i].URI, true
			}
		}
	}
	return "", false
}

type node struct {
	name     xml.Name
	attrs    []xml.Attr
	text     []byte
	children []*node
	scope    *scope
}

func isNamespaceDecl(attr xml.Attr) bool {
	return attr.Name.Space == "xmlns" || (attr.Name.Space == "" && attr.Name.Local == "xmlns")
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

// parseTree reads raw tokens so literal prefixes survive, and performs the
// well-formedness checks RawToken leaves to the caller.
func parseTree(data []byte) (*node, error) {
	dec, err := newDecoder(data)
	if err != nil {
		return nil, err
	}

	var (
		root  *node
		stack []*node
	)
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && root != nil {
				return nil, errors.New("multiple root elements")
			}
			var parent *scope
			if len(stack) > 0 {
				parent = stack[len(stack)-1].scope
			}
			n, err := newNode(t.Copy(), parent)
			if err != nil {
				return nil, err
			}
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.children = append(top.children, n)
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element </%s>", qualified(t.Name))
			}
			top := stack[len(stack)-1]
			if top.name != t.Name {
				return nil, fmt.Errorf("element <%s> closed by </%s>", qualified(top.name), qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, errors.New("text outside the root element")
				}
				continue
			}
			top := stack[len(stack)-1]
			top.text = append(top.text, t...)
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("element <%s> is not closed", qualified(stack[len(stack)-1].name))
	}
	return root, nil
}

func newNode(start xml.StartElement, parent *scope) (*node, error) {
	sc := &scope{parent: parent}
	for _, attr := range start.Attr {
		switch {
		case attr.Name.Space == "xmlns":
			if attr.Value == "" {
				return nil, fmt.Errorf("prefix %q bound to an empty namespace", attr.Name.Local)
			}
			sc.bindings = append(sc.bindings, Namespace{Prefix: attr.Name.Local, URI: attr.Value})
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			sc.bindings = append(sc.bindings, Namespace{URI: attr.Value})
		}
	}
	if len(sc.bindings) == 0 && parent != nil {
		sc = parent
	}

	n := &node{name: start.Name, attrs: start.Attr, scope: sc}
	if n.name.Space != "" {
		if _, ok := sc.lookup(n.name.Space); !ok {
			return nil, fmt.Errorf("element <%s>: %w", qualified(n.name), ErrUnboundPrefix)
		}
	}
	for _, attr := range start.Attr {
		if isNamespaceDecl(attr) || attr.Name.Space == "" {
			continue
		}
		if _, ok := sc.lookup(attr.Name.Space); !ok {
			return nil, fmt.Errorf("attribute %s on <%s>: %w", qualified(attr.Name), qualified(n.name), ErrUnboundPrefix)
		}
	}
	return n, nil
}

func buildRecord(root *node) Record {
	var rec Record
	for _, attr := range root.attrs {
		switch {
		case attr.Name.Space == "xmlns":
			rec.AddNamespace(attr.Name.Local, attr.Value)
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			rec.DefaultNamespace = attr.Value
		default:
			rec.RootAttrs = append(rec.RootAttrs, Attr{Name: qualified(attr.Name), Value: attr.Value})
		}
	}
	collectPrefixes(&rec, root)

	for _, child := range root.children {
		prefix := child.name.Space
		if prefix == "" {
			prefix = BasePrefix
		}
		var attrs []Attr
		for _, attr := range child.attrs {
			if isNamespaceDecl(attr) {
				continue
			}
			attrs = append(attrs, Attr{Name: qualified(attr.Name), Value: attr.Value})
		}
		text := strings.TrimSpace(string(child.text))
		if len(attrs) > 0 || len(child.children) > 0 {
			rec.appendComplex(prefix, child.name.Local, Entry{
				Attrs:    attrs,
				Text:     text,
				Children: toElements(child.children),
			})
			continue
		}
		rec.SetField(prefix, child.name.Local, text)
	}
	return rec
}

// collectPrefixes records every prefix used by an element or attribute in
// the tree. Bindings already present win.
func collectPrefixes(rec *Record, n *node) {
	note := func(prefix string) {
		if prefix == "" || prefix == "xml" || prefix == "xmlns" {
			return
		}
		if _, ok := rec.NamespaceURI(prefix); ok {
			return
		}
		if uri, ok := n.scope.lookup(prefix); ok {
			rec.AddNamespace(prefix, uri)
		}
	}
	note(n.name.Space)
	for _, attr := range n.attrs {
		if isNamespaceDecl(attr) {
			continue
		}
		note(attr.Name.Space)
	}
	for _, child := range n.children {
		collectPrefixes(rec, child)
	}
}

func toElements(nodes []*node) []Element {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		var attrs []Attr
		for _, attr := range n.attrs {
			attrs = append(attrs, Attr{Name: qualified(attr.Name), Value: attr.Value})
		}
		out = append(out, Element{
			Name:     qualified(n.name),
			Text:     strings.TrimSpace(string(n.text)),
			Attrs:    attrs,
			Children: toElements(n.children),
		})
	}
	return out
}
