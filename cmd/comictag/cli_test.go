package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"comictag/internal/archive"
	"comictag/internal/catalog"
	"comictag/internal/comicinfo"
	"comictag/internal/journal"
	"comictag/internal/testsupport"
)

func TestScanJSONListsCatalog(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"scan", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var items []itemJSON
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode scan output: %v\n%s", err, out)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %+v", items)
	}
	byPath := map[string]itemJSON{}
	for _, item := range items {
		byPath[item.Path] = item
	}
	if byPath["loose"].Kind != string(catalog.KindFolder) {
		t.Fatalf("expected loose to be a folder item, got %+v", byPath["loose"])
	}
	a := byPath["a.cbz"]
	if len(a.Fields) != 2 || a.Fields[0].Tag != "Title" || a.Fields[0].Value != "Alpha" {
		t.Fatalf("unexpected fields for a.cbz: %+v", a.Fields)
	}
}

func TestScanTableShowsTitles(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"scan", "--sort", "name"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "Alpha")
	requireContains(t, out, "3 item(s), sorted by name")
}

func TestApplyWritesOutputAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"apply", "--all", "--set", "Series=Saga", "--set", "Title={keep}"}, env.configPath)
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, out)
	}
	requireContains(t, out, "3 succeeded, 0 failed, 0 cancelled")

	rec, err := archive.ReadRecord(filepath.Join(env.cfg.Paths.OutputDir, "a.cbz"))
	if err != nil {
		t.Fatalf("read output record: %v", err)
	}
	if series, _ := rec.Field(comicinfo.BasePrefix, "Series"); series != "Saga" {
		t.Fatalf("series = %q", series)
	}
	if title, _ := rec.Field(comicinfo.BasePrefix, "Title"); title != "Alpha" {
		t.Fatalf("title = %q, want original kept", title)
	}
	names := testsupport.ZipNames(t, filepath.Join(env.cfg.Paths.OutputDir, "loose.cbz"))
	if strings.Join(names, ",") != "ComicInfo.xml,001.jpg,002.jpg" {
		t.Fatalf("unexpected packaged folder entries %v", names)
	}
	srcRec, err := archive.ReadRecord(filepath.Join(env.cfg.Paths.SourceDir, "a.cbz"))
	if err != nil {
		t.Fatalf("read source record: %v", err)
	}
	if _, ok := srcRec.Field(comicinfo.BasePrefix, "Series"); ok {
		t.Fatal("source archive must not be modified")
	}

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []journal.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Succeeded != 3 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	out, _, err = runCLI(t, []string{"history", "last"}, env.configPath)
	if err != nil {
		t.Fatalf("history last: %v", err)
	}
	requireContains(t, out, "Run "+runs[0].ID)
	requireContains(t, out, "loose")

	out, _, err = runCLI(t, []string{"history", "--prune", "0"}, env.configPath)
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "Removed 1 run(s)")
}

func TestApplyDryRunWritesNothing(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"apply", "a.cbz", "--set", "Number={index}", "--set", "Series=Saga", "--dry-run", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("apply dry-run: %v", err)
	}
	var planned []struct {
		Path    string   `json:"path"`
		Changes []string `json:"changes"`
	}
	if err := json.Unmarshal([]byte(out), &planned); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out)
	}
	if len(planned) != 1 || planned[0].Path != "a.cbz" {
		t.Fatalf("unexpected plan %+v", planned)
	}
	want := []string{`Number="1"`, `Series="Saga"`}
	if strings.Join(planned[0].Changes, ",") != strings.Join(want, ",") {
		t.Fatalf("changes = %v, want %v", planned[0].Changes, want)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, "a.cbz")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not write output, stat err = %v", err)
	}
}

func TestApplyReportsItemFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteText(t, filepath.Join(env.cfg.Paths.SourceDir, "broken.cbz"), "not a zip")

	out, _, err := runCLI(t, []string{"apply", "a.cbz", "broken.cbz", "--set", "Series=Saga"}, env.configPath)
	if err == nil {
		t.Fatal("expected failure when an item cannot be rewritten")
	}
	requireContains(t, err.Error(), "1 of 2 item(s) failed")
	requireContains(t, out, "failed")
	if _, statErr := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, "a.cbz")); statErr != nil {
		t.Fatalf("healthy item should still be written: %v", statErr)
	}
}

func TestApplyRequiresSelectionAndEdits(t *testing.T) {
	env := setupCLITestEnv(t)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no selection", []string{"apply", "--set", "Series=S"}, "pass --all"},
		{"both selections", []string{"apply", "a.cbz", "--all", "--set", "Series=S"}, "pass --all"},
		{"no edits", []string{"apply", "--all"}, "no edits given"},
		{"unknown item", []string{"apply", "missing.cbz", "--set", "Series=S"}, `no catalog item "missing.cbz"`},
		{"out of range", []string{"apply", "9", "--set", "Series=S"}, "out of range"},
		{"bad mode", []string{"apply", "--all", "--set", "Series=S", "--mode", "sideways", "--dry-run"}, "mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, tc.args, env.configPath)
			if err == nil {
				t.Fatalf("expected error for %v", tc.args)
			}
			requireContains(t, err.Error(), tc.want)
		})
	}
}

func TestApplyUsesEditFile(t *testing.T) {
	env := setupCLITestEnv(t)
	editsPath := filepath.Join(testsupport.BaseDir(env.cfg), "edits.yaml")
	testsupport.WriteText(t, editsPath, "Series: Saga\nnamespaces:\n  ext: https://example.org/ext\next:\n  Source: scan\n")

	if _, _, err := runCLI(t, []string{"apply", "b.cbz", "--edits", editsPath, "--mode", "flatten"}, env.configPath); err != nil {
		t.Fatalf("apply: %v", err)
	}
	rec, err := archive.ReadRecord(filepath.Join(env.cfg.Paths.OutputDir, "b.cbz"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if uri, ok := rec.NamespaceURI("ext"); !ok || uri != "https://example.org/ext" {
		t.Fatalf("namespace not bound: %q %v", uri, ok)
	}
	if source, _ := rec.Field("ext", "Source"); source != "scan" {
		t.Fatalf("ext:Source = %q", source)
	}
}

func TestShowPrintsFieldsAndXML(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"show", "a.cbz"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "meta/ComicInfo.xml")
	requireContains(t, out, "Alpha")

	out, _, err = runCLI(t, []string{"show", "a.cbz", "--xml"}, env.configPath)
	if err != nil {
		t.Fatalf("show --xml: %v", err)
	}
	requireContains(t, out, "<Title>Alpha</Title>")

	out, _, err = runCLI(t, []string{"show", "b.cbz"}, env.configPath)
	if err != nil {
		t.Fatalf("show b.cbz: %v", err)
	}
	requireContains(t, out, "No metadata")
}

func TestFieldsRunsWithoutConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, _, err := runCLI(t, []string{"fields", "--json"}, "")
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	var specs []struct {
		Tag  string `json:"tag"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(out), &specs); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(specs) != len(comicinfo.DefaultSchema) || specs[0].Tag != comicinfo.DefaultSchema[0].Tag {
		t.Fatalf("unexpected fields %+v", specs)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	target := filepath.Join(home, "conf", "comictag.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	requireContains(t, out, "source_dir")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, filepath.Join(home, "comics", "inbox"))
}

func TestDoctorReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Source directory:")
	requireContains(t, out, "[OK]")
}

func TestSourceFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(testsupport.BaseDir(env.cfg), "other")
	testsupport.WriteZip(t, filepath.Join(other, "z.cbz"), testsupport.ZipEntry{Name: "001.png", Data: []byte("p")})

	out, _, err := runCLI(t, []string{"--source", other, "scan", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var items []itemJSON
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].Path != "z.cbz" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestResolveItem(t *testing.T) {
	cat := &catalog.Catalog{Items: []catalog.Item{
		{RelPath: "a.cbz", Kind: catalog.KindArchive},
		{RelPath: "2", Kind: catalog.KindFolder},
	}}
	cases := []struct {
		arg  string
		want string
		ok   bool
	}{
		{"a.cbz", "a.cbz", true},
		{"1", "a.cbz", true},
		{"2", "2", true},
		{"2/", "2", true},
		{"0", "", false},
		{"01", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		item, err := resolveItem(cat, tc.arg)
		if tc.ok != (err == nil) {
			t.Fatalf("resolveItem(%q) err = %v", tc.arg, err)
		}
		if tc.ok && item.RelPath != tc.want {
			t.Fatalf("resolveItem(%q) = %q, want %q", tc.arg, item.RelPath, tc.want)
		}
	}
}

func TestShowSeveralItemsListsSharedValues(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"apply", "--all", "--set", "Series=Saga"}, env.configPath); err != nil {
		t.Fatalf("apply: %v", err)
	}

	out, _, err := runCLI(t, []string{"--source", env.cfg.Paths.OutputDir, "--output", filepath.Join(testsupport.BaseDir(env.cfg), "second"), "show", "a.cbz", "b.cbz", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var common map[string]string
	if err := json.Unmarshal([]byte(out), &common); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if common["Series"] != "Saga" {
		t.Fatalf("Series = %q, want shared value", common["Series"])
	}
	if common["Title"] != comicinfo.Keep {
		t.Fatalf("Title = %q, want %q", common["Title"], comicinfo.Keep)
	}
	if common["Summary"] != "" {
		t.Fatalf("Summary = %q, want empty", common["Summary"])
	}
}

func TestConfigShowAppliesFlagOverrides(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(testsupport.BaseDir(env.cfg), "elsewhere")

	out, _, err := runCLI(t, []string{"--output", other, "config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, other)
	requireContains(t, out, env.cfg.Paths.SourceDir)
}
