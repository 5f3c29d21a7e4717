package archive

import (
	"fmt"
	"strings"
)

// Mode selects the structure of the rewritten archive.
type Mode int

const (
	ModeInPlace Mode = iota
	ModeFlatten
	ModeFolderToArchive
)

func (m Mode) String() string {
	switch m {
	case ModeInPlace:
		return "in_place"
	case ModeFlatten:
		return "flatten"
	case ModeFolderToArchive:
		return "folder"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the names produced by String plus common spellings.
func ParseMode(value string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_") {
	case "in_place", "inplace":
		return ModeInPlace, nil
	case "flatten", "flat":
		return ModeFlatten, nil
	case "folder", "folder_to_archive":
		return ModeFolderToArchive, nil
	default:
		return 0, fmt.Errorf("unknown write mode %q", value)
	}
}
