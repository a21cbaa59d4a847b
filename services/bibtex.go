// Package services contains the BibTeX parser feeding reference import.
package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParsedEntry is one BibTeX entry flattened into the reference schema.
type ParsedEntry struct {
	BibtexKey   string
	EntryType   string
	Title       string
	Author      string
	Year        string
	Journal     string
	Booktitle   string
	Publisher   string
	Volume      string
	Number      string
	Pages       string
	DOI         string
	URL         string
	Abstract    string
	ExtraFields string // JSON object of non-standard fields, "" if none
	RawBibtex   string
}

// Month abbreviations predefined by BibTeX.
var commonStrings = map[string]string{
	"jan": "January", "feb": "February", "mar": "March",
	"apr": "April", "may": "May", "jun": "June",
	"jul": "July", "aug": "August", "sep": "September",
	"oct": "October", "nov": "November", "dec": "December",
}

type parser struct {
	src     []rune
	pos     int
	strings map[string]string
}

// ParseBibTeX parses BibTeX source into entries. A malformed entry yields a
// per-entry error string and parsing resumes at the next "@"; one bad entry
// never aborts the rest.
func ParseBibTeX(content string) ([]ParsedEntry, []string) {
	p := &parser{src: []rune(content), strings: map[string]string{}}
	for k, v := range commonStrings {
		p.strings[k] = v
	}

	var entries []ParsedEntry
	var errors []string

	for {
		if !p.skipToEntry() {
			break
		}
		start := p.pos
		entry, err := p.parseEntry()
		if err != nil {
			errors = append(errors, fmt.Sprintf("BibTeX parsing error: %v", err))
			// Resume at the next entry marker
			p.pos = start + 1
			continue
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	return entries, errors
}

// skipToEntry advances to the next '@', returning false at end of input.
func (p *parser) skipToEntry() bool {
	for p.pos < len(p.src) {
		if p.src[p.pos] == '@' {
			return true
		}
		p.pos++
	}
	return false
}

// parseEntry parses one @type{...} block. @comment and @preamble blocks are
// skipped, @string definitions are recorded for later substitution; both
// return a nil entry.
func (p *parser) parseEntry() (*ParsedEntry, error) {
	p.pos++ // consume '@'
	entryType := strings.ToLower(p.readIdent())
	if entryType == "" {
		return nil, fmt.Errorf("missing entry type after @")
	}
	p.skipSpace()

	switch entryType {
	case "comment", "preamble":
		if err := p.skipGroup(); err != nil {
			return nil, err
		}
		return nil, nil
	case "string":
		return nil, p.parseStringDef()
	}

	_, closer, err := p.openGroup()
	if err != nil {
		return nil, fmt.Errorf("entry @%s: %v", entryType, err)
	}

	key := strings.TrimSpace(p.readUntil(','))
	if key == "" {
		return nil, fmt.Errorf("entry @%s has no citation key", entryType)
	}
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("entry %s is unterminated", key)
	}
	p.pos++ // consume ','

	fields, err := p.parseFields(closer)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %v", key, err)
	}

	return buildEntry(entryType, key, fields)
}

type field struct {
	name  string
	value string
}

func (p *parser) parseFields(closer rune) ([]field, error) {
	var fields []field
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated entry")
		}
		if p.src[p.pos] == closer {
			p.pos++
			return fields, nil
		}

		name := strings.ToLower(p.readIdent())
		if name == "" {
			return nil, fmt.Errorf("expected field name, found %q", string(p.src[p.pos]))
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '=' {
			return nil, fmt.Errorf("field %s: expected '='", name)
		}
		p.pos++

		value, err := p.parseValue()
		if err != nil {
			return nil, fmt.Errorf("field %s: %v", name, err)
		}
		fields = append(fields, field{name: name, value: value})

		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
		}
	}
}

// parseValue reads one field value: braced, quoted, or bare parts joined by
// '#' concatenation. Bare identifiers are resolved via @string definitions
// and the built-in month abbreviations.
func (p *parser) parseValue() (string, error) {
	var parts []string
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return "", fmt.Errorf("unterminated value")
		}

		switch c := p.src[p.pos]; {
		case c == '{':
			part, err := p.readBraced()
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		case c == '"':
			part, err := p.readQuoted()
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		default:
			word := p.readBareWord()
			if word == "" {
				return "", fmt.Errorf("unexpected character %q", string(c))
			}
			if resolved, ok := p.strings[strings.ToLower(word)]; ok {
				parts = append(parts, resolved)
			} else {
				parts = append(parts, word)
			}
		}

		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == '#' {
			p.pos++
			continue
		}
		return normalizeSpace(strings.Join(parts, "")), nil
	}
}

// readBraced consumes a balanced {...} group and returns its content with
// all brace characters stripped.
func (p *parser) readBraced() (string, error) {
	depth := 0
	var b strings.Builder
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos++
				return b.String(), nil
			}
		default:
			b.WriteRune(p.src[p.pos])
		}
		p.pos++
	}
	return "", fmt.Errorf("unbalanced braces")
}

func (p *parser) readQuoted() (string, error) {
	p.pos++ // consume opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			return b.String(), nil
		}
		if c != '{' && c != '}' {
			b.WriteRune(c)
		}
		p.pos++
	}
	return "", fmt.Errorf("unterminated quoted value")
}

func (p *parser) readBareWord() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ',' || c == '#' || c == '}' || c == ')' || isSpace(c) {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) parseStringDef() error {
	_, closer, err := p.openGroup()
	if err != nil {
		return fmt.Errorf("@string: %v", err)
	}
	name := strings.ToLower(p.readIdent())
	p.skipSpace()
	if name == "" || p.pos >= len(p.src) || p.src[p.pos] != '=' {
		return fmt.Errorf("@string: expected name = value")
	}
	p.pos++
	value, err := p.parseValue()
	if err != nil {
		return fmt.Errorf("@string %s: %v", name, err)
	}
	p.strings[name] = value
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == closer {
		p.pos++
	}
	return nil
}

// skipGroup consumes a balanced {...} or (...) block without keeping it.
func (p *parser) skipGroup() error {
	opener, closer, err := p.openGroup()
	if err != nil {
		return err
	}
	depth := 1
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
		p.pos++
	}
	return fmt.Errorf("unterminated block")
}

// openGroup consumes the opening '{' or '(' of an entry body.
func (p *parser) openGroup() (rune, rune, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0, 0, fmt.Errorf("unexpected end of input")
	}
	switch p.src[p.pos] {
	case '{':
		p.pos++
		return '{', '}', nil
	case '(':
		p.pos++
		return '(', ')', nil
	}
	return 0, 0, fmt.Errorf("expected '{' or '(', found %q", string(p.src[p.pos]))
}

func (p *parser) readIdent() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '_' || c == '-' || c == ':' || c == '.' || c == '+' {
			p.pos++
			continue
		}
		break
	}
	return string(p.src[start:p.pos])
}

func (p *parser) readUntil(stop rune) string {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != stop {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func buildEntry(entryType, key string, fields []field) (*ParsedEntry, error) {
	entry := &ParsedEntry{
		BibtexKey: key,
		EntryType: entryType,
	}

	extra := map[string]string{}
	for _, f := range fields {
		switch f.name {
		case "title":
			entry.Title = f.value
		case "author":
			entry.Author = f.value
		case "year":
			entry.Year = f.value
		case "journal":
			entry.Journal = f.value
		case "booktitle":
			entry.Booktitle = f.value
		case "publisher":
			entry.Publisher = f.value
		case "volume":
			entry.Volume = f.value
		case "number":
			entry.Number = f.value
		case "pages":
			entry.Pages = f.value
		case "doi":
			entry.DOI = f.value
		case "url":
			entry.URL = f.value
		case "abstract":
			entry.Abstract = f.value
		default:
			if f.value != "" {
				extra[f.name] = f.value
			}
		}
	}

	if len(extra) > 0 {
		encoded, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("encoding extra fields: %w", err)
		}
		entry.ExtraFields = string(encoded)
	}

	entry.RawBibtex = generateBibtex(entryType, key, fields)
	return entry, nil
}

// generateBibtex renders a normalized BibTeX block for an entry, preserving
// field order from the source.
func generateBibtex(entryType, key string, fields []field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", entryType, key)
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(&b, "  %s = {%s},\n", f.name, f.value)
	}
	b.WriteString("}")
	return b.String()
}
