package comicinfo

import "slices"

const (
	// BasePrefix groups fields and complex elements without a namespace prefix.
	BasePrefix = "base"
	// DocumentName is the file name of the metadata document inside archives
	// and page folders. Matching is case-insensitive.
	DocumentName = "ComicInfo.xml"
	// RootElement is the document element written by Generate.
	RootElement = "ComicInfo"
	// Keep is the edit value meaning "leave the original field as it is".
	Keep = "{keep}"
)

// Namespace binds a prefix to a namespace URI.
type Namespace struct {
	Prefix string
	URI    string
}

// Attr is an attribute with its literal (possibly prefixed) name.
type Attr struct {
	Name  string
	Value string
}

// Field is a simple text element.
type Field struct {
	Tag   string
	Value string
}

// FieldGroup holds the fields of one prefix in document order.
type FieldGroup struct {
	Prefix string
	Fields []Field
}

// Element is a nested element below a complex entry, kept verbatim.
type Element struct {
	Name     string
	Text     string
	Attrs    []Attr
	Children []Element
}

// Entry is one occurrence of a complex element.
type Entry struct {
	Attrs    []Attr
	Text     string
	Children []Element
}

// ComplexElement collects every occurrence of one complex tag.
type ComplexElement struct {
	Tag     string
	Entries []Entry
}

// ComplexGroup holds the complex elements of one prefix in document order.
type ComplexGroup struct {
	Prefix   string
	Elements []ComplexElement
}

// Record is the parsed form of a metadata document.
type Record struct {
	// DefaultNamespace is the root's xmlns="..." declaration, if any.
	DefaultNamespace string
	Namespaces       []Namespace
	// RootAttrs are non-namespace attributes carried by the root element.
	RootAttrs []Attr
	Fields    []FieldGroup
	Complex   []ComplexGroup
	// OriginalLocation is the entry path the document was read from.
	OriginalLocation string
}

// IsEmpty reports whether the record carries no content at all.
func (r Record) IsEmpty() bool {
	return r.DefaultNamespace == "" && len(r.Namespaces) == 0 && len(r.RootAttrs) == 0 &&
		len(r.Fields) == 0 && len(r.Complex) == 0
}

// NamespaceURI returns the URI bound to prefix.
func (r Record) NamespaceURI(prefix string) (string, bool) {
	for _, ns := range r.Namespaces {
		if ns.Prefix == prefix {
			return ns.URI, true
		}
	}
	return "", false
}

// AddNamespace records a binding unless prefix is already bound.
func (r *Record) AddNamespace(prefix, uri string) bool {
	if prefix == "" || prefix == "xml" || prefix == "xmlns" {
		return false
	}
	if _, ok := r.NamespaceURI(prefix); ok {
		return false
	}
	r.Namespaces = append(r.Namespaces, Namespace{Prefix: prefix, URI: uri})
	return true
}

// Field returns the value stored for prefix/tag.
func (r Record) Field(prefix, tag string) (string, bool) {
	for _, group := range r.Fields {
		if group.Prefix != prefix {
			continue
		}
		for _, f := range group.Fields {
			if f.Tag == tag {
				return f.Value, true
			}
		}
	}
	return "", false
}

// SetField overwrites prefix/tag in place or appends it after the existing
// fields of its group.
func (r *Record) SetField(prefix, tag, value string) {
	for gi := range r.Fields {
		group := &r.Fields[gi]
		if group.Prefix != prefix {
			continue
		}
		for fi := range group.Fields {
			if group.Fields[fi].Tag == tag {
				group.Fields[fi].Value = value
				return
			}
		}
		group.Fields = append(group.Fields, Field{Tag: tag, Value: value})
		return
	}
	r.Fields = append(r.Fields, FieldGroup{Prefix: prefix, Fields: []Field{{Tag: tag, Value: value}}})
}

// Complexes returns the entries stored for prefix/tag.
func (r Record) Complexes(prefix, tag string) []Entry {
	for _, group := range r.Complex {
		if group.Prefix != prefix {
			continue
		}
		for _, el := range group.Elements {
			if el.Tag == tag {
				return el.Entries
			}
		}
	}
	return nil
}

func (r *Record) appendComplex(prefix, tag string, entry Entry) {
	for gi := range r.Complex {
		group := &r.Complex[gi]
		if group.Prefix != prefix {
			continue
		}
		for ei := range group.Elements {
			if group.Elements[ei].Tag == tag {
				group.Elements[ei].Entries = append(group.Elements[ei].Entries, entry)
				return
			}
		}
		group.Elements = append(group.Elements, ComplexElement{Tag: tag, Entries: []Entry{entry}})
		return
	}
	r.Complex = append(r.Complex, ComplexGroup{
		Prefix:   prefix,
		Elements: []ComplexElement{{Tag: tag, Entries: []Entry{entry}}},
	})
}

// Clone returns a deep copy that shares no slices with r.
func (r Record) Clone() Record {
	out := Record{
		DefaultNamespace: r.DefaultNamespace,
		Namespaces:       slices.Clone(r.Namespaces),
		RootAttrs:        slices.Clone(r.RootAttrs),
		OriginalLocation: r.OriginalLocation,
	}
	if r.Fields != nil {
		out.Fields = make([]FieldGroup, len(r.Fields))
		for i, group := range r.Fields {
			out.Fields[i] = FieldGroup{Prefix: group.Prefix, Fields: slices.Clone(group.Fields)}
		}
	}
	if r.Complex != nil {
		out.Complex = make([]ComplexGroup, len(r.Complex))
		for i, group := range r.Complex {
			elements := make([]ComplexElement, len(group.Elements))
			for j, el := range group.Elements {
				entries := make([]Entry, len(el.Entries))
				for k, entry := range el.Entries {
					entries[k] = Entry{
						Attrs:    slices.Clone(entry.Attrs),
						Text:     entry.Text,
						Children: cloneElements(entry.Children),
					}
				}
				elements[j] = ComplexElement{Tag: el.Tag, Entries: entries}
			}
			out.Complex[i] = ComplexGroup{Prefix: group.Prefix, Elements: elements}
		}
	}
	return out
}

func cloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i, el := range in {
		out[i] = Element{
			Name:     el.Name,
			Text:     el.Text,
			Attrs:    slices.Clone(el.Attrs),
			Children: cloneElements(el.Children),
		}
	}
	return out
}
