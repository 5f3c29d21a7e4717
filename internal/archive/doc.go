// Package archive rewrites comic archives with a new ComicInfo.xml document.
//
// Three modes are supported. ModeInPlace copies every entry raw and swaps the
// metadata document at its original location. ModeFlatten moves every page
// to the archive root, dropping later entries whose base name repeats.
// ModeFolderToArchive packages a loose page folder. Every mode writes to a
// temporary file beside the destination and renames it into place only after
// the archive is complete, so a failed or cancelled rewrite leaves both the
// source and the destination untouched.
//
// ReadDocument extracts the existing metadata document for the catalog
// scanner.
package archive
