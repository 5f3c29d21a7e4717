// Package editset loads the field edits a batch run applies.
//
// Edits come from a TOML or YAML file or from Tag=Value pairs given on the
// command line. Both produce the same ordered merge.Edits: unprefixed tags in
// schema order followed by unknown unprefixed tags alphabetically, then every
// other prefix alphabetically with its tags sorted. Values of known tags are
// validated and canonicalized by the schema before they reach the merge.
//
// A file may also bind extra namespace prefixes so prefixed edits can be
// written:
//
//	[namespaces]
//	ext = "https://example.org/ext"
//
//	[base]
//	Title = "{titleFromName}"
//	Number = "{index}"
//
//	[ext]
//	Source = "scan"
//
// Top-level keys that are not tables are treated as unprefixed tags.
package editset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"comictag/internal/comicinfo"
	"comictag/internal/merge"
)

// NamespacesTable is the reserved table holding prefix bindings.
const NamespacesTable = "namespaces"

// ErrUnsupportedFormat reports an edit file whose extension is not recognized.
var ErrUnsupportedFormat = errors.New("editset: unsupported file format")

// Set is a loaded edit set.
type Set struct {
	Edits      merge.Edits
	Namespaces []comicinfo.Namespace
}

// Apply binds the set's namespaces on rec. Existing bindings win.
func (s Set) Apply(rec *comicinfo.Record) {
	for _, ns := range s.Namespaces {
		rec.AddNamespace(ns.Prefix, ns.URI)
	}
}

// Load reads an edit file. The format is chosen by extension: .toml, .yaml
// or .yml.
func Load(path string, schema comicinfo.Schema) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read edit file: %w", err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return Set{}, fmt.Errorf("parse edit file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Set{}, fmt.Errorf("parse edit file %s: %w", path, err)
		}
	default:
		return Set{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	b := newBuilder(schema)
	for key, value := range raw {
		table, isTable := value.(map[string]any)
		switch {
		case key == NamespacesTable:
			if !isTable {
				return Set{}, fmt.Errorf("%s must be a table", NamespacesTable)
			}
			if err := b.addNamespaces(table); err != nil {
				return Set{}, err
			}
		case isTable:
			for tag, v := range table {
				if err := b.add(key, tag, v); err != nil {
					return Set{}, err
				}
			}
		default:
			if err := b.add(comicinfo.BasePrefix, key, value); err != nil {
				return Set{}, err
			}
		}
	}
	return b.build()
}

// ParseAssignments parses Tag=Value or prefix:Tag=Value pairs. A later pair
// for the same slot replaces an earlier one.
func ParseAssignments(pairs []string, schema comicinfo.Schema) (merge.Edits, error) {
	b := newBuilder(schema)
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("assignment %q: expected Tag=Value", pair)
		}
		prefix, tag := comicinfo.BasePrefix, strings.TrimSpace(name)
		if p, t, found := strings.Cut(tag, ":"); found {
			prefix, tag = p, t
		}
		if err := b.add(prefix, tag, value); err != nil {
			return nil, err
		}
	}
	set, err := b.build()
	if err != nil {
		return nil, err
	}
	return set.Edits, nil
}

type builder struct {
	schema     comicinfo.Schema
	values     map[string]map[string]string
	namespaces map[string]string
}

func newBuilder(schema comicinfo.Schema) *builder {
	return &builder{
		schema:     schema,
		values:     make(map[string]map[string]string),
		namespaces: make(map[string]string),
	}
}

func (b *builder) add(prefix, tag string, raw any) error {
	prefix = strings.TrimSpace(prefix)
	tag = strings.TrimSpace(tag)
	if prefix == "" {
		prefix = comicinfo.BasePrefix
	}
	if prefix != comicinfo.BasePrefix && !comicinfo.ValidName(prefix) {
		return fmt.Errorf("prefix %q: %w", prefix, comicinfo.ErrInvalidName)
	}
	if !comicinfo.ValidName(tag) {
		return fmt.Errorf("tag %q: %w", tag, comicinfo.ErrInvalidName)
	}
	value, err := scalar(raw)
	if err != nil {
		return fmt.Errorf("%s:%s: %w", prefix, tag, err)
	}
	if prefix == comicinfo.BasePrefix {
		if spec, ok := b.schema.Lookup(tag); ok {
			converted, err := spec.Convert(value)
			if err != nil {
				return err
			}
			value = converted
		}
	}
	if b.values[prefix] == nil {
		b.values[prefix] = make(map[string]string)
	}
	b.values[prefix][tag] = value
	return nil
}

func (b *builder) addNamespaces(table map[string]any) error {
	for prefix, v := range table {
		uri, err := scalar(v)
		if err != nil || strings.TrimSpace(uri) == "" {
			return fmt.Errorf("namespace %q: expected a URI string", prefix)
		}
		if !comicinfo.ValidName(prefix) || prefix == comicinfo.BasePrefix {
			return fmt.Errorf("namespace prefix %q: %w", prefix, comicinfo.ErrInvalidName)
		}
		b.namespaces[prefix] = strings.TrimSpace(uri)
	}
	return nil
}

func (b *builder) build() (Set, error) {
	var set Set

	if base := b.values[comicinfo.BasePrefix]; len(base) > 0 {
		var unknown []string
		for tag := range base {
			if b.schema.Index(tag) < 0 {
				unknown = append(unknown, tag)
			}
		}
		for _, tag := range b.schema.Tags() {
			if v, ok := base[tag]; ok {
				set.Edits = append(set.Edits, merge.Base(tag, v))
			}
		}
		slices.Sort(unknown)
		for _, tag := range unknown {
			set.Edits = append(set.Edits, merge.Base(tag, base[tag]))
		}
	}

	prefixes := make([]string, 0, len(b.values))
	for prefix := range b.values {
		if prefix != comicinfo.BasePrefix {
			prefixes = append(prefixes, prefix)
		}
	}
	slices.Sort(prefixes)
	for _, prefix := range prefixes {
		tags := make([]string, 0, len(b.values[prefix]))
		for tag := range b.values[prefix] {
			tags = append(tags, tag)
		}
		slices.Sort(tags)
		for _, tag := range tags {
			set.Edits = append(set.Edits, merge.Edit{Prefix: prefix, Tag: tag, Value: b.values[prefix][tag]})
		}
	}

	nsPrefixes := make([]string, 0, len(b.namespaces))
	for prefix := range b.namespaces {
		nsPrefixes = append(nsPrefixes, prefix)
	}
	slices.Sort(nsPrefixes)
	for _, prefix := range nsPrefixes {
		set.Namespaces = append(set.Namespaces, comicinfo.Namespace{Prefix: prefix, URI: b.namespaces[prefix]})
	}
	return set, nil
}

func scalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
