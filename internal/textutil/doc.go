// Package textutil provides the text helpers shared by the catalog, the
// placeholder resolver and the CLI: file-name title casing and a
// numeric-aware collation order for item names.
package textutil
