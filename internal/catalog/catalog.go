package catalog

import (
	"fmt"
	"math"
	"path"
	"slices"
	"strconv"
	"strings"

	"comictag/internal/comicinfo"
	"comictag/internal/config"
	"comictag/internal/store"
	"comictag/internal/textutil"
)

// Kind distinguishes archive items from loose page folders.
type Kind string

const (
	KindArchive Kind = "archive"
	KindFolder  Kind = "folder"
)

// Item is one catalog entry.
type Item struct {
	// RelPath is slash-separated and relative to the catalog root.
	RelPath string
	Kind    Kind
	// Problem describes why the item's metadata could not be read, if it
	// could not. The item keeps an empty record in that case.
	Problem string
}

// Name returns the last path element of the item.
func (i Item) Name() string {
	return path.Base(i.RelPath)
}

// Catalog is the ordered result of a scan.
type Catalog struct {
	Root    string
	Items   []Item
	Records map[string]comicinfo.Record
	Order   string
}

// Paths returns the item paths in list order.
func (c *Catalog) Paths() []string {
	out := make([]string, len(c.Items))
	for i, item := range c.Items {
		out[i] = item.RelPath
	}
	return out
}

// Lookup returns the item stored under relPath.
func (c *Catalog) Lookup(relPath string) (Item, bool) {
	for _, item := range c.Items {
		if item.RelPath == relPath {
			return item, true
		}
	}
	return Item{}, false
}

// Record returns the cached record of relPath, or an empty record.
func (c *Catalog) Record(relPath string) comicinfo.Record {
	if c.Records == nil {
		return comicinfo.Record{}
	}
	return c.Records[relPath]
}

// Sort reorders the items. Manual leaves the current order untouched.
func (c *Catalog) Sort(order string) error {
	order = strings.ToLower(strings.TrimSpace(order))
	collator := textutil.NewNaturalOrder()
	byName := func(a, b Item) int { return collator.Compare(a.RelPath, b.RelPath) }

	switch order {
	case "", config.SortManual:
		order = config.SortManual
	case config.SortName:
		slices.SortStableFunc(c.Items, byName)
	case config.SortNumber:
		keys := make(map[string]numberKey, len(c.Items))
		for _, item := range c.Items {
			keys[item.RelPath] = newNumberKey(c.Record(item.RelPath))
		}
		slices.SortStableFunc(c.Items, func(a, b Item) int {
			if r := compareNumberKeys(keys[a.RelPath], keys[b.RelPath], collator); r != 0 {
				return r
			}
			return byName(a, b)
		})
	default:
		return fmt.Errorf("catalog: unknown sort order %q", order)
	}
	c.Order = order
	return nil
}

type numberKey struct {
	raw     string
	value   float64
	numeric bool
}

func newNumberKey(rec comicinfo.Record) numberKey {
	raw, _ := rec.Field(comicinfo.BasePrefix, "Number")
	raw = strings.TrimSpace(raw)
	value, err := strconv.ParseFloat(raw, 64)
	// NaN and the infinities parse but are free text as far as ordering goes.
	numeric := err == nil && raw != "" && !math.IsNaN(value) && !math.IsInf(value, 0)
	return numberKey{raw: raw, value: value, numeric: numeric}
}

// compareNumberKeys puts numeric values first in ascending order, then the
// remaining values by collated text.
func compareNumberKeys(a, b numberKey, collator *textutil.NaturalOrder) int {
	switch {
	case a.numeric && b.numeric:
		switch {
		case a.value < b.value:
			return -1
		case a.value > b.value:
			return 1
		}
		return 0
	case a.numeric:
		return -1
	case b.numeric:
		return 1
	default:
		return collator.Compare(a.raw, b.raw)
	}
}

// Move relocates the item at from so that it sits before the item currently
// at to. A to equal to the list length moves the item to the end. The order
// becomes manual.
func (c *Catalog) Move(from, to int) error {
	n := len(c.Items)
	if from < 0 || from >= n {
		return fmt.Errorf("catalog: move source %d out of range [0,%d)", from, n)
	}
	if to < 0 || to > n {
		return fmt.Errorf("catalog: move target %d out of range [0,%d]", to, n)
	}
	item := c.Items[from]
	c.Items = slices.Delete(c.Items, from, from+1)
	if to > from {
		to--
	}
	c.Items = slices.Insert(c.Items, to, item)
	c.Order = config.SortManual
	return nil
}

// Publish writes the catalog's list, records and order into st as one batch.
func Publish(st *store.Store, c *Catalog) {
	if st == nil || c == nil {
		return
	}
	records := make(map[string]comicinfo.Record, len(c.Records))
	for k, v := range c.Records {
		records[k] = v
	}
	st.Update(map[string]any{
		store.KeySourceRoot:        c.Root,
		store.KeyFileList:          c.Paths(),
		store.KeyFileMetadataCache: records,
		store.KeySortOrder:         c.Order,
	})
}
