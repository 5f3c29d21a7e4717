package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateWrite(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.SourceDir != "" && c.Paths.SourceDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.source_dir")
	}
	return nil
}

func (c *Config) validateScan() error {
	if len(c.Scan.ArchiveExts) == 0 {
		return errors.New("scan.archive_exts must include at least one extension")
	}
	if len(c.Scan.PageExts) == 0 {
		return errors.New("scan.page_exts must include at least one extension")
	}
	for _, ext := range c.Scan.ArchiveExts {
		if slices.Contains(c.Scan.PageExts, ext) {
			return fmt.Errorf("scan: extension %q cannot be both an archive and a page extension", ext)
		}
	}
	return nil
}

func (c *Config) validateWrite() error {
	switch c.Write.Mode {
	case WriteModeInPlace, WriteModeFlatten:
	default:
		return fmt.Errorf("write.mode: unsupported value %q (want %q or %q)", c.Write.Mode, WriteModeInPlace, WriteModeFlatten)
	}
	if !slices.Contains(outputExts, c.Write.OutputExt) {
		return fmt.Errorf("write.output_ext: unsupported value %q (want one of %s)", c.Write.OutputExt, strings.Join(outputExts, ", "))
	}
	switch c.Write.Compression {
	case CompressionStore, CompressionDeflate:
	default:
		return fmt.Errorf("write.compression: unsupported value %q (want %q or %q)", c.Write.Compression, CompressionStore, CompressionDeflate)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Sort {
	case SortManual, SortName, SortNumber:
		return nil
	default:
		return fmt.Errorf("catalog.sort: unsupported value %q", c.Catalog.Sort)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
