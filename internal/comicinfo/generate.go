package comicinfo

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidName reports a tag or attribute name that is not a valid XML name.
var ErrInvalidName = errors.New("comicinfo: invalid XML name")

const indentUnit = "  "

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;",
	)
)

// Generate serializes rec as an indented ComicInfo document. Fields with
// empty or whitespace-only values are omitted. Output is deterministic for a
// given record.
func Generate(rec Record) ([]byte, error) {
	var body bytes.Buffer
	if err := writeFields(&body, rec); err != nil {
		return nil, err
	}
	if err := writeComplex(&body, rec); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	out.WriteString("<" + RootElement)
	if rec.DefaultNamespace != "" {
		writeAttr(&out, "xmlns", rec.DefaultNamespace)
	}
	for _, ns := range rec.Namespaces {
		if ns.Prefix == "xml" || ns.Prefix == "" {
			continue
		}
		if !ValidName(ns.Prefix) {
			return nil, fmt.Errorf("namespace prefix %q: %w", ns.Prefix, ErrInvalidName)
		}
		writeAttr(&out, "xmlns:"+ns.Prefix, ns.URI)
	}
	for _, attr := range rec.RootAttrs {
		if err := checkQualified(rec, attr.Name); err != nil {
			return nil, fmt.Errorf("root attribute: %w", err)
		}
		writeAttr(&out, attr.Name, attr.Value)
	}
	if body.Len() == 0 {
		out.WriteString("/>\n")
		return out.Bytes(), nil
	}
	out.WriteString(">\n")
	out.Write(body.Bytes())
	out.WriteString("</" + RootElement + ">\n")
	return out.Bytes(), nil
}

func groupBinding(rec Record, prefix string) (string, error) {
	if prefix == BasePrefix {
		return "", nil
	}
	uri, ok := rec.NamespaceURI(prefix)
	if !ok {
		return "", fmt.Errorf("prefix %q: %w", prefix, ErrUnboundPrefix)
	}
	if !ValidName(prefix) {
		return "", fmt.Errorf("prefix %q: %w", prefix, ErrInvalidName)
	}
	return uri, nil
}

func qualify(prefix, tag string) string {
	if prefix == BasePrefix {
		return tag
	}
	return prefix + ":" + tag
}

func writeFields(b *bytes.Buffer, rec Record) error {
	for _, group := range rec.Fields {
		uri, err := groupBinding(rec, group.Prefix)
		if err != nil {
			return fmt.Errorf("field group: %w", err)
		}
		for _, f := range group.Fields {
			if strings.TrimSpace(f.Value) == "" {
				continue
			}
			if !ValidName(f.Tag) {
				return fmt.Errorf("field %q: %w", f.Tag, ErrInvalidName)
			}
			name := qualify(group.Prefix, f.Tag)
			b.WriteString(indentUnit + "<" + name)
			if group.Prefix != BasePrefix {
				writeAttr(b, "xmlns:"+group.Prefix, uri)
			}
			b.WriteByte('>')
			textEscaper.WriteString(b, f.Value)
			b.WriteString("</" + name + ">\n")
		}
	}
	return nil
}

func writeComplex(b *bytes.Buffer, rec Record) error {
	for _, group := range rec.Complex {
		uri, err := groupBinding(rec, group.Prefix)
		if err != nil {
			return fmt.Errorf("complex group: %w", err)
		}
		for _, el := range group.Elements {
			if !ValidName(el.Tag) {
				return fmt.Errorf("complex element %q: %w", el.Tag, ErrInvalidName)
			}
			name := qualify(group.Prefix, el.Tag)
			for _, entry := range el.Entries {
				b.WriteString(indentUnit + "<" + name)
				declared := map[string]bool{}
				if group.Prefix != BasePrefix {
					writeAttr(b, "xmlns:"+group.Prefix, uri)
					declared[group.Prefix] = true
				}
				for _, attr := range entry.Attrs {
					if err := checkQualified(rec, attr.Name); err != nil {
						return fmt.Errorf("complex element %q: %w", el.Tag, err)
					}
					prefix := namePrefix(attr.Name)
					if prefix == "" || prefix == "xml" || declared[prefix] {
						continue
					}
					attrURI, _ := rec.NamespaceURI(prefix)
					writeAttr(b, "xmlns:"+prefix, attrURI)
					declared[prefix] = true
				}
				for _, attr := range entry.Attrs {
					writeAttr(b, attr.Name, attr.Value)
				}
				if err := writeContent(b, name, entry.Text, entry.Children, 1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeElement(b *bytes.Buffer, el Element, depth int) error {
	if !validQualifiedName(el.Name) {
		return fmt.Errorf("element %q: %w", el.Name, ErrInvalidName)
	}
	b.WriteString(strings.Repeat(indentUnit, depth) + "<" + el.Name)
	for _, attr := range el.Attrs {
		if !validQualifiedName(attr.Name) {
			return fmt.Errorf("attribute %q: %w", attr.Name, ErrInvalidName)
		}
		writeAttr(b, attr.Name, attr.Value)
	}
	return writeContent(b, el.Name, el.Text, el.Children, depth)
}

func writeContent(b *bytes.Buffer, name, text string, children []Element, depth int) error {
	switch {
	case text == "" && len(children) == 0:
		b.WriteString(" />\n")
	case len(children) == 0:
		b.WriteByte('>')
		textEscaper.WriteString(b, text)
		b.WriteString("</" + name + ">\n")
	default:
		b.WriteByte('>')
		textEscaper.WriteString(b, text)
		b.WriteByte('\n')
		for _, child := range children {
			if err := writeElement(b, child, depth+1); err != nil {
				return err
			}
		}
		b.WriteString(strings.Repeat(indentUnit, depth) + "</" + name + ">\n")
	}
	return nil
}

func writeAttr(b *bytes.Buffer, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	attrEscaper.WriteString(b, value)
	b.WriteByte('"')
}

// checkQualified validates an attribute name whose prefix must be bound in rec.
func checkQualified(rec Record, name string) error {
	if !validQualifiedName(name) {
		return fmt.Errorf("attribute %q: %w", name, ErrInvalidName)
	}
	prefix := namePrefix(name)
	if prefix == "" || prefix == "xml" {
		return nil
	}
	if prefix == "xmlns" {
		return fmt.Errorf("attribute %q: namespace declarations belong in Namespaces: %w", name, ErrInvalidName)
	}
	if _, ok := rec.NamespaceURI(prefix); !ok {
		return fmt.Errorf("attribute %q: %w", name, ErrUnboundPrefix)
	}
	return nil
}

func namePrefix(name string) string {
	if i := strings.IndexByte(name, ':'); i > 0 {
		return name[:i]
	}
	return ""
}

// ValidName reports whether name is a valid unprefixed XML name.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)):
		default:
			return false
		}
	}
	return true
}

func validQualifiedName(name string) bool {
	prefix, local, found := strings.Cut(name, ":")
	if !found {
		return ValidName(name)
	}
	return ValidName(prefix) && ValidName(local)
}
