package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"comictag/internal/catalog"
	"comictag/internal/config"
	"comictag/internal/logging"
	"comictag/internal/store"
)

type globalFlags struct {
	config string
	source string
	output string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	store *store.Store
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := c.applyOverrides(cfg); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cfg *config.Config) error {
	overrides := []struct {
		value  string
		target *string
	}{
		{c.flags.source, &cfg.Paths.SourceDir},
		{c.flags.output, &cfg.Paths.OutputDir},
	}
	for _, o := range overrides {
		if strings.TrimSpace(o.value) == "" {
			continue
		}
		expanded, err := config.ExpandPath(strings.TrimSpace(o.value))
		if err != nil {
			return err
		}
		*o.target = expanded
	}
	return nil
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) storeValue() *store.Store {
	if c.store == nil {
		c.store = store.New(c.loggerValue())
	}
	return c.store
}

// loadCatalog scans the source root and applies the requested order, falling
// back to the configured one.
func (c *commandContext) loadCatalog(ctx context.Context, order string) (*catalog.Catalog, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Paths.SourceDir) == "" {
		return nil, errors.New("no source directory configured (set paths.source_dir or pass --source)")
	}
	scanner := catalog.NewScanner(cfg.Scan, c.storeValue(), c.loggerValue())
	cat, err := scanner.Scan(ctx, cfg.Paths.SourceDir)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(order) == "" {
		order = cfg.Catalog.Sort
	}
	if err := cat.Sort(order); err != nil {
		return nil, err
	}
	catalog.Publish(c.storeValue(), cat)
	return cat, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// resolveItems maps arguments to catalog items. An argument is either a
// 1-based position in the listing or an item path.
func resolveItems(cat *catalog.Catalog, args []string) ([]catalog.Item, error) {
	items := make([]catalog.Item, 0, len(args))
	seen := make(map[string]struct{}, len(args))
	for _, arg := range args {
		item, err := resolveItem(cat, arg)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[item.RelPath]; dup {
			continue
		}
		seen[item.RelPath] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}

func resolveItem(cat *catalog.Catalog, arg string) (catalog.Item, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return catalog.Item{}, errors.New("item path or number is required")
	}
	if item, ok := cat.Lookup(strings.TrimSuffix(strings.ReplaceAll(arg, "\\", "/"), "/")); ok {
		return item, nil
	}
	var n int
	if _, err := fmt.Sscanf(arg, "%d", &n); err == nil && fmt.Sprint(n) == arg {
		if n < 1 || n > len(cat.Items) {
			return catalog.Item{}, fmt.Errorf("item %d out of range (catalog has %d items)", n, len(cat.Items))
		}
		return cat.Items[n-1], nil
	}
	return catalog.Item{}, fmt.Errorf("no catalog item %q", arg)
}
