package store

// Well-known keys published by comictag components.
const (
	// KeySourceRoot holds the scanned source directory (string).
	KeySourceRoot = "source_root"
	// KeyFileList holds the ordered catalog item paths ([]string).
	KeyFileList = "file_list"
	// KeyFileMetadataCache holds parsed records keyed by item path
	// (map[string]comicinfo.Record).
	KeyFileMetadataCache = "file_metadata_cache"
	// KeySortOrder holds the active catalog ordering (string).
	KeySortOrder = "sort_order"
	// KeyProgress holds the latest batch progress (batch.Progress).
	KeyProgress = "progress"
	// KeyLastRun holds the identifier of the most recent batch run (string).
	KeyLastRun = "last_run"
)
