// Package catalog discovers comic items under a source root and keeps the
// ordered list the rest of comictag works on.
//
// An item is either an archive file (by extension) or a loose page folder: a
// directory without subdirectories that holds at least one page image, at
// most one standalone ComicInfo.xml and nothing else beyond allow-listed
// clutter such as Thumbs.db. Each item's existing metadata is decoded during
// the scan; unreadable archives and malformed documents degrade to empty
// records and are reported on the item rather than failing the scan.
//
// Scan results are published into the shared store under the file list and
// metadata cache keys so other components observe them without holding a
// reference to the Catalog.
package catalog
