package comicinfo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind selects how raw input for a field is converted.
type Kind int

const (
	KindText Kind = iota
	KindMultilineText
	KindChoice
	KindOptionalInteger
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMultilineText:
		return "multiline"
	case KindChoice:
		return "choice"
	case KindOptionalInteger:
		return "integer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrInvalidValue reports raw input a field kind cannot accept.
var ErrInvalidValue = errors.New("comicinfo: invalid field value")

var placeholderToken = regexp.MustCompile(`\{[A-Za-z][A-Za-z0-9_]*\}`)

// FieldSpec describes one editable base field.
type FieldSpec struct {
	Tag     string
	Label   string
	Section string
	Kind    Kind
	Options []string
}

// Convert turns raw user input into the value stored in an edit. Keep passes
// through every kind unchanged and an empty string always clears the field.
func (f FieldSpec) Convert(raw string) (string, error) {
	if raw == Keep {
		return Keep, nil
	}
	switch f.Kind {
	case KindMultilineText:
		return strings.ReplaceAll(strings.ReplaceAll(raw, "\r\n", "\n"), "\r", "\n"), nil
	case KindChoice:
		value := strings.TrimSpace(raw)
		if value == "" {
			return "", nil
		}
		for _, opt := range f.Options {
			if strings.EqualFold(opt, value) {
				return opt, nil
			}
		}
		return "", fmt.Errorf("%s: %q is not one of %s: %w", f.Tag, raw, strings.Join(f.Options, ", "), ErrInvalidValue)
	case KindOptionalInteger:
		value := strings.TrimSpace(raw)
		switch {
		case value == "":
			return "", nil
		case value == "-1":
			return Keep, nil
		case placeholderToken.MatchString(value):
			return value, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%s: %q is not a non-negative integer: %w", f.Tag, raw, ErrInvalidValue)
		}
		return strconv.Itoa(n), nil
	default:
		return raw, nil
	}
}

// Schema is the ordered list of editable base fields.
type Schema []FieldSpec

// Lookup returns the spec for tag, matched case-sensitively.
func (s Schema) Lookup(tag string) (FieldSpec, bool) {
	for _, spec := range s {
		if spec.Tag == tag {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// Index returns the position of tag in the schema, or -1.
func (s Schema) Index(tag string) int {
	for i, spec := range s {
		if spec.Tag == tag {
			return i
		}
	}
	return -1
}

// Tags returns the field tags in schema order.
func (s Schema) Tags() []string {
	tags := make([]string, len(s))
	for i, spec := range s {
		tags[i] = spec.Tag
	}
	return tags
}

var yesNo = []string{"Unknown", "No", "Yes"}

// DefaultSchema covers the ComicInfo v2 field set.
var DefaultSchema = Schema{
	{Tag: "Title", Label: "Title", Section: "Basic", Kind: KindText},
	{Tag: "Series", Label: "Series", Section: "Basic", Kind: KindText},
	{Tag: "Number", Label: "Number", Section: "Basic", Kind: KindText},
	{Tag: "Count", Label: "Issue count", Section: "Basic", Kind: KindOptionalInteger},
	{Tag: "Volume", Label: "Volume", Section: "Basic", Kind: KindOptionalInteger},
	{Tag: "AlternateSeries", Label: "Alternate series", Section: "Basic", Kind: KindText},
	{Tag: "AlternateNumber", Label: "Alternate number", Section: "Basic", Kind: KindText},
	{Tag: "AlternateCount", Label: "Alternate count", Section: "Basic", Kind: KindOptionalInteger},
	{Tag: "Summary", Label: "Summary", Section: "Basic", Kind: KindMultilineText},
	{Tag: "Notes", Label: "Notes", Section: "Basic", Kind: KindMultilineText},
	{Tag: "Year", Label: "Year", Section: "Publishing", Kind: KindOptionalInteger},
	{Tag: "Month", Label: "Month", Section: "Publishing", Kind: KindOptionalInteger},
	{Tag: "Day", Label: "Day", Section: "Publishing", Kind: KindOptionalInteger},
	{Tag: "Writer", Label: "Writer", Section: "Credits", Kind: KindText},
	{Tag: "Penciller", Label: "Penciller", Section: "Credits", Kind: KindText},
	{Tag: "Inker", Label: "Inker", Section: "Credits", Kind: KindText},
	{Tag: "Colorist", Label: "Colorist", Section: "Credits", Kind: KindText},
	{Tag: "Letterer", Label: "Letterer", Section: "Credits", Kind: KindText},
	{Tag: "CoverArtist", Label: "Cover artist", Section: "Credits", Kind: KindText},
	{Tag: "Editor", Label: "Editor", Section: "Credits", Kind: KindText},
	{Tag: "Translator", Label: "Translator", Section: "Credits", Kind: KindText},
	{Tag: "Publisher", Label: "Publisher", Section: "Publishing", Kind: KindText},
	{Tag: "Imprint", Label: "Imprint", Section: "Publishing", Kind: KindText},
	{Tag: "Genre", Label: "Genre", Section: "Story", Kind: KindText},
	{Tag: "Tags", Label: "Tags", Section: "Story", Kind: KindText},
	{Tag: "Web", Label: "Web", Section: "Publishing", Kind: KindText},
	{Tag: "PageCount", Label: "Page count", Section: "Details", Kind: KindOptionalInteger},
	{Tag: "LanguageISO", Label: "Language", Section: "Details", Kind: KindText},
	{Tag: "Format", Label: "Format", Section: "Details", Kind: KindText},
	{Tag: "BlackAndWhite", Label: "Black and white", Section: "Details", Kind: KindChoice, Options: yesNo},
	{Tag: "Manga", Label: "Manga", Section: "Details", Kind: KindChoice, Options: []string{"Unknown", "No", "Yes", "YesAndRightToLeft"}},
	{Tag: "Characters", Label: "Characters", Section: "Story", Kind: KindText},
	{Tag: "Teams", Label: "Teams", Section: "Story", Kind: KindText},
	{Tag: "Locations", Label: "Locations", Section: "Story", Kind: KindText},
	{Tag: "StoryArc", Label: "Story arc", Section: "Story", Kind: KindText},
	{Tag: "SeriesGroup", Label: "Series group", Section: "Story", Kind: KindText},
	{Tag: "AgeRating", Label: "Age rating", Section: "Details", Kind: KindChoice, Options: []string{
		"Unknown", "Adults Only 18+", "Early Childhood", "Everyone", "Everyone 10+", "G",
		"Kids to Adults", "M", "MA15+", "Mature 17+", "PG", "R18+", "Rating Pending", "Teen", "X18+",
	}},
	{Tag: "CommunityRating", Label: "Community rating", Section: "Details", Kind: KindText},
	{Tag: "ScanInformation", Label: "Scan information", Section: "Details", Kind: KindText},
}
