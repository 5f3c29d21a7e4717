package editset_test

import (
	"errors"
	"path/filepath"
	"testing"

	"comictag/internal/comicinfo"
	"comictag/internal/editset"
	"comictag/internal/merge"
	"comictag/internal/testsupport"
)

func TestLoadTOMLOrdersBySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.toml")
	testsupport.WriteText(t, path, `
Zeta = "z"

[namespaces]
ext = "https://example.org/ext"

[base]
Year = 2021
Title = "{titleFromName}"
Manga = "yesandrighttoleft"
Custom = "c"

[ext]
Source = "scan"
Alpha = "a"
`)

	set, err := editset.Load(path, comicinfo.DefaultSchema)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := merge.Edits{
		merge.Base("Title", "{titleFromName}"),
		merge.Base("Year", "2021"),
		merge.Base("Manga", "YesAndRightToLeft"),
		merge.Base("Custom", "c"),
		merge.Base("Zeta", "z"),
		{Prefix: "ext", Tag: "Alpha", Value: "a"},
		{Prefix: "ext", Tag: "Source", Value: "scan"},
	}
	if len(set.Edits) != len(want) {
		t.Fatalf("got %d edits, want %d: %+v", len(set.Edits), len(want), set.Edits)
	}
	for i := range want {
		if set.Edits[i] != want[i] {
			t.Fatalf("edit %d = %+v, want %+v", i, set.Edits[i], want[i])
		}
	}
	if len(set.Namespaces) != 1 || set.Namespaces[0].Prefix != "ext" {
		t.Fatalf("unexpected namespaces %+v", set.Namespaces)
	}

	var rec comicinfo.Record
	set.Apply(&rec)
	if uri, ok := rec.NamespaceURI("ext"); !ok || uri != "https://example.org/ext" {
		t.Fatalf("namespace not applied: %q %v", uri, ok)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.yaml")
	testsupport.WriteText(t, path, "base:\n  Count: -1\n  Summary: \"line1\\r\\nline2\"\n  Series: \"{parent}\"\n")

	set, err := editset.Load(path, comicinfo.DefaultSchema)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := merge.Edits{
		merge.Base("Series", "{parent}"),
		merge.Base("Count", merge.Keep),
		merge.Base("Summary", "line1\nline2"),
	}
	if len(set.Edits) != len(want) {
		t.Fatalf("unexpected edits %+v", set.Edits)
	}
	for i := range want {
		if set.Edits[i] != want[i] {
			t.Fatalf("edit %d = %+v, want %+v", i, set.Edits[i], want[i])
		}
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"choice.toml":  "[base]\nManga = \"maybe\"\n",
		"integer.toml": "[base]\nYear = \"soon\"\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		testsupport.WriteText(t, path, content)
		if _, err := editset.Load(path, comicinfo.DefaultSchema); !errors.Is(err, comicinfo.ErrInvalidValue) {
			t.Fatalf("%s: expected ErrInvalidValue, got %v", name, err)
		}
	}

	bad := filepath.Join(dir, "tag.toml")
	testsupport.WriteText(t, bad, "[base]\n\"1bad\" = \"x\"\n")
	if _, err := editset.Load(bad, comicinfo.DefaultSchema); !errors.Is(err, comicinfo.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	other := filepath.Join(dir, "edits.json")
	testsupport.WriteText(t, other, "{}")
	if _, err := editset.Load(other, comicinfo.DefaultSchema); !errors.Is(err, editset.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseAssignments(t *testing.T) {
	edits, err := editset.ParseAssignments([]string{
		"Number={index}",
		"ext:Source=scan",
		"Title=first",
		"Title=second=part",
		"Volume=",
	}, comicinfo.DefaultSchema)
	if err != nil {
		t.Fatalf("ParseAssignments: %v", err)
	}
	want := merge.Edits{
		merge.Base("Title", "second=part"),
		merge.Base("Number", "{index}"),
		merge.Base("Volume", ""),
		{Prefix: "ext", Tag: "Source", Value: "scan"},
	}
	if len(edits) != len(want) {
		t.Fatalf("unexpected edits %+v", edits)
	}
	for i := range want {
		if edits[i] != want[i] {
			t.Fatalf("edit %d = %+v, want %+v", i, edits[i], want[i])
		}
	}

	if _, err := editset.ParseAssignments([]string{"NoEquals"}, comicinfo.DefaultSchema); err == nil {
		t.Fatal("expected error for missing '='")
	}
}
