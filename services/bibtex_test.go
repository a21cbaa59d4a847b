package services

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseBibTeXStandardFields(t *testing.T) {
	content := `@article{smith2020,
  title = {A Study of Things},
  author = {Smith, Jane and Doe, John},
  year = {2020},
  journal = {Journal of Things},
  volume = {42},
  number = {3},
  pages = {100--110},
  doi = {10.1000/xyz},
  url = {https://example.org/paper},
  abstract = {We study things.}
}`

	entries, errors := ParseBibTeX(content)
	if len(errors) != 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.BibtexKey != "smith2020" {
		t.Errorf("key = %q", e.BibtexKey)
	}
	if e.EntryType != "article" {
		t.Errorf("entry type = %q", e.EntryType)
	}
	if e.Title != "A Study of Things" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Author != "Smith, Jane and Doe, John" {
		t.Errorf("author = %q", e.Author)
	}
	if e.Year != "2020" {
		t.Errorf("year = %q", e.Year)
	}
	if e.Pages != "100--110" {
		t.Errorf("pages = %q", e.Pages)
	}
	if e.ExtraFields != "" {
		t.Errorf("extra fields = %q, want empty", e.ExtraFields)
	}
}

func TestParseBibTeXNestedBraces(t *testing.T) {
	content := `@article{key1,
  title = {The {DNA} of {Complex} Systems}
}`

	entries, errors := ParseBibTeX(content)
	if len(errors) != 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}
	if got := entries[0].Title; got != "The DNA of Complex Systems" {
		t.Errorf("title = %q", got)
	}
}

func TestParseBibTeXQuotedValues(t *testing.T) {
	content := `@book{key1,
  title = "Quoted Title",
  publisher = "Some Press"
}`

	entries, errors := ParseBibTeX(content)
	if len(errors) != 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}
	if entries[0].Title != "Quoted Title" {
		t.Errorf("title = %q", entries[0].Title)
	}
	if entries[0].Publisher != "Some Press" {
		t.Errorf("publisher = %q", entries[0].Publisher)
	}
}

func TestParseBibTeXStringConcatenation(t *testing.T) {
	content := `@string{jrnl = {Journal of Examples}}
@article{key1,
  journal = jrnl,
  month = jun,
  note = "Part " # "One"
}`

	entries, errors := ParseBibTeX(content)
	if len(errors) != 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Journal != "Journal of Examples" {
		t.Errorf("journal = %q", e.Journal)
	}

	var extra map[string]string
	if err := json.Unmarshal([]byte(e.ExtraFields), &extra); err != nil {
		t.Fatalf("extra fields not valid JSON: %v", err)
	}
	if extra["month"] != "June" {
		t.Errorf("month = %q, want built-in abbreviation expanded", extra["month"])
	}
	if extra["note"] != "Part One" {
		t.Errorf("note = %q", extra["note"])
	}
}

func TestParseBibTeXExtraFields(t *testing.T) {
	content := `@article{key1,
  title = {T},
  keywords = {alpha, beta},
  custom = {value}
}`

	entries, errors := ParseBibTeX(content)
	if len(errors) != 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}

	var extra map[string]string
	if err := json.Unmarshal([]byte(entries[0].ExtraFields), &extra); err != nil {
		t.Fatalf("extra fields not valid JSON: %v", err)
	}
	if extra["keywords"] != "alpha, beta" || extra["custom"] != "value" {
		t.Errorf("extra = %v", extra)
	}
}

func TestParseBibTeXSkipsCommentAndPreamble(t *testing.T) {
	content := `@comment{this is ignored}
@preamble{ "\newcommand{\x}{y}" }
@misc{real,
  title = {Kept}
}`

	entries, errors := ParseBibTeX(content)
	if len(errors) != 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}
	if len(entries) != 1 || entries[0].BibtexKey != "real" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestParseBibTeXMalformedEntryRecovery(t *testing.T) {
	content := `@article{bad,
  title = {Unbalanced
@article{good,
  title = {Fine}
}`

	entries, errors := ParseBibTeX(content)
	if len(errors) == 0 {
		t.Fatal("expected a parse error for the malformed entry")
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", len(entries))
	}
	if entries[0].BibtexKey != "good" {
		t.Errorf("surviving key = %q", entries[0].BibtexKey)
	}
	if !strings.HasPrefix(errors[0], "BibTeX parsing error:") {
		t.Errorf("error = %q", errors[0])
	}
}

func TestParseBibTeXParenthesizedEntry(t *testing.T) {
	content := `@article(key1,
  title = {Parens Work}
)`

	entries, errors := ParseBibTeX(content)
	if len(errors) != 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}
	if entries[0].Title != "Parens Work" {
		t.Errorf("title = %q", entries[0].Title)
	}
}

func TestParseBibTeXRawBibtexRegeneration(t *testing.T) {
	content := `@article{key1,
  author = {A. Author},
  title = {T}
}`

	entries, _ := ParseBibTeX(content)
	raw := entries[0].RawBibtex
	if !strings.HasPrefix(raw, "@article{key1,") {
		t.Errorf("raw = %q", raw)
	}
	// Field order from the source is preserved
	if strings.Index(raw, "author") > strings.Index(raw, "title") {
		t.Errorf("field order not preserved: %q", raw)
	}
}

func TestParseBibTeXWhitespaceNormalization(t *testing.T) {
	content := `@article{key1,
  title = {Multi
    line   title}
}`

	entries, errors := ParseBibTeX(content)
	if len(errors) != 0 {
		t.Fatalf("unexpected errors: %v", errors)
	}
	if entries[0].Title != "Multi line title" {
		t.Errorf("title = %q", entries[0].Title)
	}
}

func TestParseBibTeXEmptyInput(t *testing.T) {
	entries, errors := ParseBibTeX("no entries here at all")
	if len(entries) != 0 || len(errors) != 0 {
		t.Errorf("entries=%v errors=%v", entries, errors)
	}
}
