// Package main hosts the comictag CLI entrypoint and command graph.
//
// The Cobra-based command tree scans a comic library, shows the ComicInfo
// metadata of single items, applies edit sets in batch runs, lists the
// editable field schema, prints run history and checks the environment. It
// centralizes configuration resolution, logger setup and the shared store so
// subcommands can focus on presentation.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
