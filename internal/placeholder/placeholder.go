// Package placeholder substitutes {key} tokens in edit values with per-item
// context values such as the file name or the item's batch position.
package placeholder

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"comictag/internal/textutil"
)

// Context keys built by ItemContext.
const (
	KeyFileName      = "fileName"
	KeyIndex         = "index"
	KeyNumber        = "number"
	KeyTotal         = "total"
	KeyExt           = "ext"
	KeyParent        = "parent"
	KeyPath          = "path"
	KeyTitleFromName = "titleFromName"
)

// Context maps placeholder names (without braces) to their values.
type Context map[string]string

// Resolve replaces every {key} of ctx found in template in a single pass.
// Replacement text is never scanned again and unknown tokens stay as they are.
func Resolve(template string, ctx Context) string {
	if len(ctx) == 0 || !strings.Contains(template, "{") {
		return template
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", ctx[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ItemContext builds the context for one catalog item. relPath is the
// slash-separated path relative to the source root and index is 1-based.
func ItemContext(relPath string, index, total int) Context {
	return itemContext(relPath, index, total, true)
}

// FolderContext is ItemContext for a loose folder item, whose name is used
// whole even when it contains a dot.
func FolderContext(relPath string, index, total int) Context {
	return itemContext(relPath, index, total, false)
}

func itemContext(relPath string, index, total int, splitExt bool) Context {
	relPath = strings.TrimSuffix(path.Clean(strings.ReplaceAll(relPath, "\\", "/")), "/")
	base := path.Base(relPath)
	stem, ext := base, ""
	if splitExt {
		ext = path.Ext(base)
		stem = strings.TrimSuffix(base, ext)
		if stem == "" {
			stem = base
			ext = ""
		}
	}
	parent := path.Base(path.Dir(relPath))
	if parent == "." || parent == "/" {
		parent = ""
	}
	return Context{
		KeyFileName:      stem,
		KeyIndex:         strconv.Itoa(index),
		KeyNumber:        strconv.Itoa(index),
		KeyTotal:         strconv.Itoa(total),
		KeyExt:           strings.TrimPrefix(ext, "."),
		KeyParent:        parent,
		KeyPath:          relPath,
		KeyTitleFromName: textutil.TitleFromFileName(stem),
	}
}

// With returns a copy of c extended by extra. Keys in extra win.
func (c Context) With(extra Context) Context {
	out := make(Context, len(c)+len(extra))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
