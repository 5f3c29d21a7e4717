package config

const (
	defaultConfigPath  = "~/.config/comictag/config.toml"
	defaultStateDir    = "~/.local/share/comictag"
	defaultWriteMode   = WriteModeInPlace
	defaultOutputExt   = "cbz"
	defaultCompression = CompressionStore
	defaultSortOrder   = SortManual
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
)

// Write modes accepted in [write] mode. Folder items are always packaged, so
// the mode only applies to archive items.
const (
	WriteModeInPlace = "in_place"
	WriteModeFlatten = "flatten"
)

// Compression methods for newly written archive entries.
const (
	CompressionStore   = "store"
	CompressionDeflate = "deflate"
)

// Catalog orderings accepted in [catalog] sort.
const (
	SortManual = "manual"
	SortName   = "name"
	SortNumber = "number"
)

var (
	defaultArchiveExts = []string{".cbz", ".zip"}
	defaultPageExts    = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".avif", ".jxl"}
	defaultAllowFiles  = []string{"thumbs.db", ".ds_store", "desktop.ini"}
	outputExts         = []string{"cbz", "zip"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Scan: Scan{
			ArchiveExts: append([]string(nil), defaultArchiveExts...),
			PageExts:    append([]string(nil), defaultPageExts...),
			AllowFiles:  append([]string(nil), defaultAllowFiles...),
		},
		Write: Write{
			Mode:        defaultWriteMode,
			OutputExt:   defaultOutputExt,
			Compression: defaultCompression,
		},
		Catalog: Catalog{
			Sort: defaultSortOrder,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// OutputExtensions lists the archive extensions batch output may use.
func OutputExtensions() []string {
	return append([]string(nil), outputExts...)
}
