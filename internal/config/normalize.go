package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeWrite()
	c.normalizeCatalog()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		c.Paths.SourceDir = strings.TrimSpace(os.Getenv("COMICTAG_SOURCE_DIR"))
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = strings.TrimSpace(os.Getenv("COMICTAG_OUTPUT_DIR"))
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.SourceDir, err = expandPath(strings.TrimSpace(c.Paths.SourceDir)); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	c.Scan.ArchiveExts = normalizeExtensions(c.Scan.ArchiveExts)
	if len(c.Scan.ArchiveExts) == 0 {
		c.Scan.ArchiveExts = append([]string(nil), defaultArchiveExts...)
	}
	c.Scan.PageExts = normalizeExtensions(c.Scan.PageExts)
	if len(c.Scan.PageExts) == 0 {
		c.Scan.PageExts = append([]string(nil), defaultPageExts...)
	}
	allow := make([]string, 0, len(c.Scan.AllowFiles))
	seen := make(map[string]struct{}, len(c.Scan.AllowFiles))
	for _, name := range c.Scan.AllowFiles {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		allow = append(allow, name)
	}
	c.Scan.AllowFiles = allow
}

func (c *Config) normalizeWrite() {
	mode := strings.ToLower(strings.TrimSpace(c.Write.Mode))
	mode = strings.ReplaceAll(mode, "-", "_")
	if mode == "" {
		mode = defaultWriteMode
	}
	c.Write.Mode = mode

	ext := strings.ToLower(strings.TrimSpace(c.Write.OutputExt))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = defaultOutputExt
	}
	c.Write.OutputExt = ext

	compression := strings.ToLower(strings.TrimSpace(c.Write.Compression))
	if compression == "" {
		compression = defaultCompression
	}
	c.Write.Compression = compression
}

func (c *Config) normalizeCatalog() {
	order := strings.ToLower(strings.TrimSpace(c.Catalog.Sort))
	if order == "" {
		order = defaultSortOrder
	}
	c.Catalog.Sort = order
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

// normalizeExtensions lowercases, dots and de-duplicates extension lists.
func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || value == "." {
			continue
		}
		if !strings.HasPrefix(value, ".") {
			value = "." + value
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
