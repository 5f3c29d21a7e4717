// Package comicinfo parses and regenerates ComicInfo.xml metadata documents.
//
// Decode turns document bytes into a Record that keeps simple text fields,
// complex elements (anything carrying attributes or children) and every
// namespace prefix the document uses, including prefixes bound only on
// nested elements. Generate writes a Record back out with the same literal
// prefixes, re-declaring each binding on the element that uses it so a
// consumer sees the prefix strings that were originally present.
//
// The package also carries the editable field Schema: an ordered list of
// field specs whose Kind decides how raw user input is converted before it
// is merged into a record.
package comicinfo
