// Package deb822 parses RFC822-style paragraph documents (control files) while
// keeping the exact source position of every paragraph and field value, so that
// a single field can be rewritten without disturbing any other byte of the file.
//
// Documents are immutable. Every write operation returns a new Document parsed
// from the edited text; spans taken from an older Document are never valid
// against a newer one.
package deb822

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedDocument is the root of every parse failure.
	ErrMalformedDocument = errors.New("malformed document")
	ErrFieldNotFound     = errors.New("field not found")
	ErrFieldExists       = errors.New("field already exists")
	ErrStaleParagraph    = errors.New("paragraph does not belong to this document")
	ErrInvalidSpan       = errors.New("span is outside the document")
)

// ParseError reports a grammar violation at a 1-based line number.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed document: line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedDocument
}

// Span is a 1-based, inclusive region of the source text. Columns count bytes.
// An empty span has EndLine == StartLine and EndCol == StartCol-1.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool {
	return s.EndLine == s.StartLine && s.EndCol < s.StartCol
}

// Field is a single "Name: value" entry of a paragraph, possibly continued on
// indented lines.
type Field struct {
	Name string
	// Value is the raw source text of the value span, continuation lines included.
	Value string
	// Span covers the value only, starting at its first non-blank byte.
	Span Span

	start, end         int
	lineStart, lineEnd int
}

// Paragraph is an ordered set of fields delimited by blank lines.
type Paragraph struct {
	Index int
	// Span covers every line of the paragraph, interior comments included.
	Span Span

	fields []*Field
	byName map[string]*Field
	doc    *Document

	start, end int
}

// Fields returns the paragraph's fields in source order.
func (p *Paragraph) Fields() []*Field {
	return append([]*Field(nil), p.fields...)
}

// Field looks up a field by name, ignoring case.
func (p *Paragraph) Field(name string) (*Field, bool) {
	f, ok := p.byName[strings.ToLower(name)]
	return f, ok
}

// Get returns the trimmed value of a field, or "" if absent.
func (p *Paragraph) Get(name string) string {
	if f, ok := p.Field(name); ok {
		return strings.TrimSpace(f.Value)
	}
	return ""
}

// Document is a parsed, immutable control document.
type Document struct {
	text       string
	lineStarts []int
	paragraphs []*Paragraph
}

// Parse parses text into a Document. Lines consisting only of whitespace
// separate paragraphs just like empty lines; lines beginning with '#' are
// comments and are carried through untouched.
func Parse(text string) (*Document, error) {
	d := &Document{text: text}

	var (
		cur      *Paragraph
		last     *Field
		lastLine int
	)

	finish := func() {
		if cur != nil && len(cur.fields) > 0 {
			cur.Index = len(d.paragraphs)
			d.paragraphs = append(d.paragraphs, cur)
		}
		cur, last = nil, nil
	}

	lineNo := 0
	for pos := 0; pos < len(text); {
		lineNo++
		d.lineStarts = append(d.lineStarts, pos)

		end := strings.IndexByte(text[pos:], '\n')
		next := len(text)
		if end < 0 {
			end = len(text)
		} else {
			end += pos
			next = end + 1
		}
		content := text[pos:end]

		switch {
		case strings.TrimSpace(content) == "":
			if cur != nil {
				cur.Span.EndLine = lastLine
				cur.Span.EndCol = len(strings.TrimSuffix(text[d.lineStarts[lastLine-1]:cur.end], "\n"))
			}
			finish()

		case content[0] == '#':
			if cur == nil {
				cur = d.newParagraph(pos, lineNo)
			}
			cur.end = next
			lastLine = lineNo

		case content[0] == ' ' || content[0] == '\t':
			if last == nil {
				return nil, &ParseError{Line: lineNo, Msg: "continuation line with no preceding field"}
			}
			last.end = end
			last.lineEnd = next
			cur.end = next
			lastLine = lineNo

		default:
			colon := strings.IndexByte(content, ':')
			if colon < 0 {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("expected a field, got %q", content)}
			}
			name := content[:colon]
			if name == "" {
				return nil, &ParseError{Line: lineNo, Msg: "field line without a name"}
			}
			if strings.ContainsAny(name, " \t") {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("invalid field name %q", name)}
			}

			if cur == nil {
				cur = d.newParagraph(pos, lineNo)
			}
			key := strings.ToLower(name)
			if _, dup := cur.byName[key]; dup {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("duplicate field %q", name)}
			}

			valueStart := pos + colon + 1
			for valueStart < end && (text[valueStart] == ' ' || text[valueStart] == '\t') {
				valueStart++
			}

			f := &Field{
				Name:      name,
				start:     valueStart,
				end:       end,
				lineStart: pos,
				lineEnd:   next,
			}
			cur.fields = append(cur.fields, f)
			cur.byName[key] = f
			cur.end = next
			last = f
			lastLine = lineNo
		}

		pos = next
	}

	if cur != nil {
		cur.Span.EndLine = lastLine
		cur.Span.EndCol = len(strings.TrimSuffix(text[d.lineStarts[lastLine-1]:cur.end], "\n"))
	}
	finish()

	for _, p := range d.paragraphs {
		for _, f := range p.fields {
			f.Value = text[f.start:f.end]
			f.Span = d.spanOf(f.start, f.end)
		}
	}

	return d, nil
}

func (d *Document) newParagraph(start, line int) *Paragraph {
	return &Paragraph{
		Span:   Span{StartLine: line, StartCol: 1},
		byName: map[string]*Field{},
		doc:    d,
		start:  start,
		end:    start,
	}
}

// String returns the document text. An unedited document reproduces its
// source byte for byte.
func (d *Document) String() string {
	return d.text
}

// Paragraphs returns the document's paragraphs in source order.
func (d *Document) Paragraphs() []*Paragraph {
	return append([]*Paragraph(nil), d.paragraphs...)
}

// ParagraphFor selects the paragraph describing the named package. An empty
// name selects the first paragraph (the source paragraph of a control file).
func (d *Document) ParagraphFor(name string) (*Paragraph, bool) {
	if len(d.paragraphs) == 0 {
		return nil, false
	}
	if name == "" {
		return d.paragraphs[0], true
	}

	for _, p := range d.paragraphs {
		if p.Get("Package") == name {
			return p, true
		}
	}
	for _, p := range d.paragraphs {
		if p.Get("Source") == name {
			return p, true
		}
	}

	return nil, false
}

// PackageNames lists the Package field of every paragraph that has one.
func (d *Document) PackageNames() []string {
	var names []string
	for _, p := range d.paragraphs {
		if name := p.Get("Package"); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Patch replaces the value of field in p with value. Only the value span
// changes; the field name, colon and all other text are preserved verbatim.
func (d *Document) Patch(p *Paragraph, field, value string) (*Document, error) {
	if err := d.owns(p); err != nil {
		return nil, err
	}

	f, ok := p.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, field)
	}

	return d.replace(f.start, f.end, value)
}

// RemoveField deletes every line of field from p.
func (d *Document) RemoveField(p *Paragraph, field string) (*Document, error) {
	if err := d.owns(p); err != nil {
		return nil, err
	}

	f, ok := p.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, field)
	}

	return d.replace(f.lineStart, f.lineEnd, "")
}

// RemoveParagraph deletes p together with the blank separator line before it.
// The first paragraph has no such line, so the separator after it goes instead.
func (d *Document) RemoveParagraph(p *Paragraph) (*Document, error) {
	if err := d.owns(p); err != nil {
		return nil, err
	}

	start, end := p.start, p.end

	if start > 0 {
		prev := strings.LastIndexByte(d.text[:start-1], '\n') + 1
		if strings.TrimSpace(d.text[prev:start]) == "" {
			start = prev
		}
	} else if end < len(d.text) {
		next := strings.IndexByte(d.text[end:], '\n')
		if next < 0 {
			next = len(d.text)
		} else {
			next += end + 1
		}
		if strings.TrimSpace(d.text[end:next]) == "" {
			end = next
		}
	}

	return d.replace(start, end, "")
}

// AddField appends a "name: value" line immediately after the last line of p.
func (d *Document) AddField(p *Paragraph, name, value string) (*Document, error) {
	if err := d.owns(p); err != nil {
		return nil, err
	}
	if _, ok := p.Field(name); ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldExists, name)
	}

	line := name + ": " + value + "\n"
	if p.end > 0 && d.text[p.end-1] != '\n' {
		line = "\n" + name + ": " + value
	}

	return d.replace(p.end, p.end, line)
}

// ReplaceSpan replaces the bytes covered by s with text and re-parses the result.
func (d *Document) ReplaceSpan(s Span, text string) (*Document, error) {
	start, ok := d.offset(s.StartLine, s.StartCol)
	if !ok {
		return nil, fmt.Errorf("%w: start %d:%d", ErrInvalidSpan, s.StartLine, s.StartCol)
	}
	end, ok := d.offset(s.EndLine, s.EndCol+1)
	if !ok || end < start {
		return nil, fmt.Errorf("%w: end %d:%d", ErrInvalidSpan, s.EndLine, s.EndCol)
	}

	return d.replace(start, end, text)
}

// SpanText returns the source text covered by s.
func (d *Document) SpanText(s Span) (string, error) {
	start, ok := d.offset(s.StartLine, s.StartCol)
	if !ok {
		return "", fmt.Errorf("%w: start %d:%d", ErrInvalidSpan, s.StartLine, s.StartCol)
	}
	end, ok := d.offset(s.EndLine, s.EndCol+1)
	if !ok || end < start {
		return "", fmt.Errorf("%w: end %d:%d", ErrInvalidSpan, s.EndLine, s.EndCol)
	}
	return d.text[start:end], nil
}

func (d *Document) owns(p *Paragraph) error {
	if p == nil || p.doc != d {
		return ErrStaleParagraph
	}
	return nil
}

func (d *Document) replace(start, end int, text string) (*Document, error) {
	return Parse(d.text[:start] + text + d.text[end:])
}

// offset converts a 1-based line and column into a byte offset. The column one
// past the end of a line (its newline) is valid.
func (d *Document) offset(line, col int) (int, bool) {
	if line < 1 || line > len(d.lineStarts) || col < 1 {
		return 0, false
	}

	start := d.lineStarts[line-1]
	limit := len(d.text)
	if line < len(d.lineStarts) {
		limit = d.lineStarts[line]
	}

	off := start + col - 1
	if off > limit {
		return 0, false
	}
	return off, true
}

// spanOf converts the half-open byte range [start, end) into a Span.
func (d *Document) spanOf(start, end int) Span {
	sl, sc := d.position(start)
	if end <= start {
		return Span{StartLine: sl, StartCol: sc, EndLine: sl, EndCol: sc - 1}
	}
	el, ec := d.position(end - 1)
	return Span{StartLine: sl, StartCol: sc, EndLine: el, EndCol: ec}
}

func (d *Document) position(off int) (line, col int) {
	lo, hi := 0, len(d.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if d.lineStarts[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, off - d.lineStarts[lo] + 1
}
