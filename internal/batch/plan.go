package batch

import (
	"path/filepath"
	"strings"

	"comictag/internal/archive"
	"comictag/internal/catalog"
	"comictag/internal/comicinfo"
	"comictag/internal/merge"
	"comictag/internal/placeholder"
)

// Planned is the write a run would perform for one item.
type Planned struct {
	Position    int
	Item        catalog.Item
	Mode        archive.Mode
	Destination string
	// Record is the merged record that would be written.
	Record comicinfo.Record
	// ConflictsWith names the earlier item that writes the same destination.
	// The item fails instead of overwriting that output.
	ConflictsWith string
}

// Plan validates req and returns the per-item writes without touching the
// filesystem or taking the lock.
func (p *Processor) Plan(req Request) ([]Planned, error) {
	req.OutputExt = normalizeExt(req.OutputExt)
	mode, err := p.validate(req)
	if err != nil {
		return nil, err
	}
	total := len(req.Items)
	out := make([]Planned, 0, total)
	claims := destinationClaims{}
	for i, item := range req.Items {
		out = append(out, prepare(req, mode, claims, item, i+1, total))
	}
	return out, nil
}

func prepare(req Request, mode archive.Mode, claims destinationClaims, item catalog.Item, position, total int) Planned {
	var itemCtx placeholder.Context
	itemMode := mode
	if item.Kind == catalog.KindFolder {
		itemCtx = placeholder.FolderContext(item.RelPath, position, total)
		itemMode = archive.ModeFolderToArchive
	} else {
		itemCtx = placeholder.ItemContext(item.RelPath, position, total)
	}
	if len(req.Extra) > 0 {
		itemCtx = itemCtx.With(req.Extra)
	}

	merged := merge.Merge(itemCtx, req.Records[item.RelPath], req.Edits)
	for _, ns := range req.Namespaces {
		merged.AddNamespace(ns.Prefix, ns.URI)
	}
	dest := Destination(req.OutputRoot, item, req.OutputExt)
	return Planned{
		Position:      position,
		Item:          item,
		Mode:          itemMode,
		Destination:   dest,
		Record:        merged,
		ConflictsWith: claims.claim(dest, item.RelPath),
	}
}

// destinationClaims maps each output path to the first item that writes it.
// Paths compare case-insensitively so that a.CBZ and a.cbz collide on
// filesystems that fold case.
type destinationClaims map[string]string

// claim records relPath as the writer of dest and returns the earlier
// claimant, if any.
func (c destinationClaims) claim(dest, relPath string) string {
	key := strings.ToLower(filepath.Clean(dest))
	if owner, ok := c[key]; ok {
		return owner
	}
	c[key] = relPath
	return ""
}
