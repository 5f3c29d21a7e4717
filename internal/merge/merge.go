// Package merge overlays user edits onto parsed ComicInfo records.
package merge

import (
	"comictag/internal/comicinfo"
	"comictag/internal/placeholder"
)

// Keep is the edit value that leaves the original field untouched.
const Keep = comicinfo.Keep

// Edit sets one prefix/tag slot to a placeholder template.
type Edit struct {
	Prefix string
	Tag    string
	Value  string
}

// Edits is applied in order, which fixes the position of newly added fields.
type Edits []Edit

// Base returns an edit of the unprefixed namespace.
func Base(tag, value string) Edit {
	return Edit{Prefix: comicinfo.BasePrefix, Tag: tag, Value: value}
}

// Lookup returns the value of the last edit for prefix/tag.
func (e Edits) Lookup(prefix, tag string) (string, bool) {
	for i := len(e) - 1; i >= 0; i-- {
		if e[i].Prefix == prefix && e[i].Tag == tag {
			return e[i].Value, true
		}
	}
	return "", false
}

// Merge returns a deep copy of original with every edit applied. Keep skips
// the slot; any other value is resolved against ctx and overwrites or appends
// the field. Namespaces and complex elements are carried over unchanged.
func Merge(ctx placeholder.Context, original comicinfo.Record, edits Edits) comicinfo.Record {
	out := original.Clone()
	for _, edit := range edits {
		if edit.Value == Keep {
			continue
		}
		prefix := edit.Prefix
		if prefix == "" {
			prefix = comicinfo.BasePrefix
		}
		out.SetField(prefix, edit.Tag, placeholder.Resolve(edit.Value, ctx))
	}
	return out
}

// Common reports, for each tag, the value shared by every record or Keep when
// the records disagree. A tag absent from a record counts as the empty value.
func Common(records []comicinfo.Record, prefix string, tags []string) Edits {
	out := make(Edits, 0, len(tags))
	if len(records) == 0 {
		return out
	}
	for _, tag := range tags {
		first, _ := records[0].Field(prefix, tag)
		value := first
		for _, rec := range records[1:] {
			if v, _ := rec.Field(prefix, tag); v != first {
				value = Keep
				break
			}
		}
		out = append(out, Edit{Prefix: prefix, Tag: tag, Value: value})
	}
	return out
}
