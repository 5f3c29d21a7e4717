package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"comictag/internal/config"
	"comictag/internal/testsupport"
)

type cliEnv struct {
	cfg        *config.Config
	configPath string
}

// setupCLITestEnv writes a config whose source holds two archives, one with
// metadata in a subdirectory, and one loose page folder.
func setupCLITestEnv(t *testing.T) cliEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"
	src := cfg.Paths.SourceDir
	testsupport.WriteZip(t, filepath.Join(src, "a.cbz"),
		testsupport.ZipEntry{Name: "001.png", Data: []byte("page-a")},
		testsupport.ZipEntry{Name: "meta/ComicInfo.xml", Data: []byte("<ComicInfo><Title>Alpha</Title><Number>2</Number></ComicInfo>")},
	)
	testsupport.WriteZip(t, filepath.Join(src, "b.cbz"),
		testsupport.ZipEntry{Name: "001.png", Data: []byte("page-b")},
	)
	testsupport.WritePages(t, filepath.Join(src, "loose"), 2, "jpg")

	return cliEnv{cfg: cfg, configPath: testsupport.WriteConfigFile(t, cfg)}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}
