package comicinfo_test

import (
	"errors"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"comictag/internal/comicinfo"
)

const sampleDoc = `<?xml version="1.0" encoding="utf-8"?>
<ComicInfo xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
  <Title>  Chapter One  </Title>
  <Series>Example</Series>
  <Notes></Notes>
  <Pages>
    <Page Image="0" Type="FrontCover" />
    <Page Image="1" />
  </Pages>
  <ex:Rating xmlns:ex="urn:example:rating">5</ex:Rating>
  <Web lang="en">https://example.com</Web>
</ComicInfo>`

func TestDecodeClassifiesFieldsAndComplexElements(t *testing.T) {
	rec, err := comicinfo.Decode([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	if got, _ := rec.Field(comicinfo.BasePrefix, "Title"); got != "Chapter One" {
		t.Fatalf("expected trimmed title, got %q", got)
	}
	if got, ok := rec.Field(comicinfo.BasePrefix, "Notes"); !ok || got != "" {
		t.Fatalf("expected empty Notes field to be kept, got %q (ok=%v)", got, ok)
	}
	if got, ok := rec.Field("ex", "Rating"); !ok || got != "5" {
		t.Fatalf("expected ex:Rating field, got %q (ok=%v)", got, ok)
	}

	pages := rec.Complexes(comicinfo.BasePrefix, "Pages")
	if len(pages) != 1 || len(pages[0].Children) != 2 {
		t.Fatalf("expected one Pages entry with two children, got %+v", pages)
	}
	if pages[0].Children[0].Name != "Page" || pages[0].Children[0].Attrs[1].Value != "FrontCover" {
		t.Fatalf("unexpected first page %+v", pages[0].Children[0])
	}

	web := rec.Complexes(comicinfo.BasePrefix, "Web")
	if len(web) != 1 || web[0].Text != "https://example.com" || web[0].Attrs[0].Name != "lang" {
		t.Fatalf("element with attribute must be complex, got %+v", web)
	}
	if _, ok := rec.Field(comicinfo.BasePrefix, "Web"); ok {
		t.Fatal("Web must not also be recorded as a field")
	}

	wantNS := []comicinfo.Namespace{
		{Prefix: "xsi", URI: "http://www.w3.org/2001/XMLSchema-instance"},
		{Prefix: "xsd", URI: "http://www.w3.org/2001/XMLSchema"},
		{Prefix: "ex", URI: "urn:example:rating"},
	}
	if len(rec.Namespaces) != len(wantNS) {
		t.Fatalf("unexpected namespaces %+v", rec.Namespaces)
	}
	for i, ns := range wantNS {
		if rec.Namespaces[i] != ns {
			t.Fatalf("namespace %d: got %+v want %+v", i, rec.Namespaces[i], ns)
		}
	}
}

func TestDecodeRecoversPrefixesBoundOnDeepDescendants(t *testing.T) {
	doc := `<ComicInfo>
  <Pages>
    <Page Image="0">
      <deep:Note xmlns:deep="urn:deep" deep:kind="x">hello</deep:Note>
    </Page>
  </Pages>
  <Extra xmlns:attr="urn:attr" attr:flag="1" />
</ComicInfo>`
	rec, err := comicinfo.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if uri, ok := rec.NamespaceURI("deep"); !ok || uri != "urn:deep" {
		t.Fatalf("expected deep prefix, got %q (ok=%v)", uri, ok)
	}
	if uri, ok := rec.NamespaceURI("attr"); !ok || uri != "urn:attr" {
		t.Fatalf("expected attribute prefix, got %q (ok=%v)", uri, ok)
	}
	note := rec.Complexes(comicinfo.BasePrefix, "Pages")[0].Children[0].Children[0]
	if note.Name != "deep:Note" || note.Text != "hello" {
		t.Fatalf("expected literal qualified child name, got %+v", note)
	}
}

func TestDecodeFirstBindingWins(t *testing.T) {
	doc := `<ComicInfo xmlns:p="urn:root">
  <p:A>1</p:A>
  <Wrapper><p:B xmlns:p="urn:other">2</p:B></Wrapper>
</ComicInfo>`
	rec := comicinfo.Parse([]byte(doc))
	if uri, _ := rec.NamespaceURI("p"); uri != "urn:root" {
		t.Fatalf("expected root binding to win, got %q", uri)
	}
	if len(rec.Namespaces) != 1 {
		t.Fatalf("expected a single namespace, got %+v", rec.Namespaces)
	}
}

func TestDecodeRepeatedFieldKeepsPositionTakesLastValue(t *testing.T) {
	doc := `<ComicInfo><Title>first</Title><Series>S</Series><Title>second</Title></ComicInfo>`
	rec := comicinfo.Parse([]byte(doc))
	fields := rec.Fields[0].Fields
	if len(fields) != 2 || fields[0].Tag != "Title" || fields[0].Value != "second" || fields[1].Tag != "Series" {
		t.Fatalf("unexpected fields %+v", fields)
	}
}

func TestDecodeDefaultNamespaceAndRootAttrs(t *testing.T) {
	doc := `<ComicInfo xmlns="urn:default" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="ComicInfo.xsd"><Title>T</Title></ComicInfo>`
	rec := comicinfo.Parse([]byte(doc))
	if rec.DefaultNamespace != "urn:default" {
		t.Fatalf("unexpected default namespace %q", rec.DefaultNamespace)
	}
	if len(rec.RootAttrs) != 1 || rec.RootAttrs[0].Name != "xsi:noNamespaceSchemaLocation" {
		t.Fatalf("unexpected root attrs %+v", rec.RootAttrs)
	}
	if got, _ := rec.Field(comicinfo.BasePrefix, "Title"); got != "T" {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestDecodeMalformedYieldsEmptyRecord(t *testing.T) {
	cases := map[string]string{
		"not xml":          "this is not xml",
		"empty":            "",
		"mismatched":       "<ComicInfo><Title>x</Series></ComicInfo>",
		"unclosed":         "<ComicInfo><Title>x</Title>",
		"unbound prefix":   "<ComicInfo><p:Title>x</p:Title></ComicInfo>",
		"unbound attr":     `<ComicInfo><Title q:x="1">x</Title></ComicInfo>`,
		"two roots":        "<ComicInfo/><ComicInfo/>",
		"trailing text":    "<ComicInfo/>garbage",
		"stray end":        "</ComicInfo>",
		"empty ns binding": `<ComicInfo xmlns:p=""><Title>x</Title></ComicInfo>`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := comicinfo.Decode([]byte(doc))
			if !errors.Is(err, comicinfo.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			if rec := comicinfo.Parse([]byte(doc)); !rec.IsEmpty() {
				t.Fatalf("expected empty record, got %+v", rec)
			}
		})
	}
}

func TestDecodeUnboundPrefixIsClassified(t *testing.T) {
	_, err := comicinfo.Decode([]byte("<ComicInfo><p:Title>x</p:Title></ComicInfo>"))
	if !errors.Is(err, comicinfo.ErrUnboundPrefix) {
		t.Fatalf("expected ErrUnboundPrefix in chain, got %v", err)
	}
}

func TestDecodeHandlesByteOrderMarksAndLegacyEncodings(t *testing.T) {
	t.Run("utf8 bom", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("<ComicInfo><Title>Bom</Title></ComicInfo>")...)
		if got, _ := comicinfo.Parse(data).Field(comicinfo.BasePrefix, "Title"); got != "Bom" {
			t.Fatalf("unexpected title %q", got)
		}
	})

	t.Run("utf16", func(t *testing.T) {
		src := `<?xml version="1.0" encoding="UTF-16"?><ComicInfo><Title>Zwölf</Title></ComicInfo>`
		data, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(src))
		if err != nil {
			t.Fatalf("encode utf-16: %v", err)
		}
		if got, _ := comicinfo.Parse(data).Field(comicinfo.BasePrefix, "Title"); got != "Zwölf" {
			t.Fatalf("unexpected title %q", got)
		}
	})

	t.Run("latin1", func(t *testing.T) {
		src := `<?xml version="1.0" encoding="ISO-8859-1"?><ComicInfo><Title>Café</Title></ComicInfo>`
		data, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(src))
		if err != nil {
			t.Fatalf("encode latin1: %v", err)
		}
		rec, err := comicinfo.Decode(data)
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if got, _ := rec.Field(comicinfo.BasePrefix, "Title"); got != "Café" {
			t.Fatalf("unexpected title %q", got)
		}
	})
}
