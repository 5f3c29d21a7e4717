package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"comictag/internal/catalog"
	"comictag/internal/comicinfo"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type fieldJSON struct {
	Prefix string `json:"prefix"`
	Tag    string `json:"tag"`
	Value  string `json:"value"`
}

type itemJSON struct {
	Index   int         `json:"index"`
	Path    string      `json:"path"`
	Kind    string      `json:"kind"`
	Problem string      `json:"problem,omitempty"`
	Fields  []fieldJSON `json:"fields"`
}

type namespaceJSON struct {
	Prefix string `json:"prefix"`
	URI    string `json:"uri"`
}

type recordJSON struct {
	itemJSON
	Location   string          `json:"location,omitempty"`
	Namespaces []namespaceJSON `json:"namespaces,omitempty"`
	Complex    []string        `json:"complex,omitempty"`
}

func newItemJSON(index int, item catalog.Item, rec comicinfo.Record) itemJSON {
	out := itemJSON{
		Index:   index,
		Path:    item.RelPath,
		Kind:    string(item.Kind),
		Problem: item.Problem,
		Fields:  []fieldJSON{},
	}
	for _, group := range rec.Fields {
		for _, f := range group.Fields {
			out.Fields = append(out.Fields, fieldJSON{Prefix: group.Prefix, Tag: f.Tag, Value: f.Value})
		}
	}
	return out
}

func newRecordJSON(index int, item catalog.Item, rec comicinfo.Record) recordJSON {
	out := recordJSON{
		itemJSON: newItemJSON(index, item, rec),
		Location: rec.OriginalLocation,
	}
	for _, ns := range rec.Namespaces {
		out.Namespaces = append(out.Namespaces, namespaceJSON{Prefix: ns.Prefix, URI: ns.URI})
	}
	out.Complex = complexSummary(rec)
	return out
}

// complexSummary lists complex elements as "prefix:Tag xN" entries.
func complexSummary(rec comicinfo.Record) []string {
	var out []string
	for _, group := range rec.Complex {
		for _, el := range group.Elements {
			out = append(out, fmt.Sprintf("%s x%d", qualifiedTag(group.Prefix, el.Tag), len(el.Entries)))
		}
	}
	return out
}
