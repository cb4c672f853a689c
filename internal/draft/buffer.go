package draft

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Command is a formatting command applied to the description buffer.
type Command string

const (
	CmdBold      Command = "bold"
	CmdItalic    Command = "italic"
	CmdCode      Command = "code"
	CmdCodeBlock Command = "codeblock"
	CmdHeading   Command = "heading"
	CmdQuote     Command = "quote"
	CmdBullet    Command = "bullet"
	CmdNumbered  Command = "numbered"
	CmdLink      Command = "link"
	CmdMath      Command = "math"
)

// Buffer errors.
var (
	ErrUnknownFormat  = errors.New("unknown format command")
	ErrFormatValue    = errors.New("invalid format value")
	ErrSelectionRange = errors.New("selection out of range")
)

// Buffer is the editable description: markdown source plus a selection.
// Offsets count runes, not bytes.
type Buffer struct {
	text  []rune
	start int
	end   int
}

// NewBuffer returns a buffer holding text with the cursor at the end.
func NewBuffer(text string) *Buffer {
	b := &Buffer{}
	b.SetText(text)
	return b
}

// Text returns the markdown source.
func (b *Buffer) Text() string {
	return string(b.text)
}

// Len returns the length in runes.
func (b *Buffer) Len() int {
	return len(b.text)
}

// SetText replaces the whole buffer and moves the cursor to the end.
func (b *Buffer) SetText(text string) {
	b.text = []rune(text)
	b.start, b.end = len(b.text), len(b.text)
}

// Selection returns the selected range. start == end is a bare cursor.
func (b *Buffer) Selection() (start, end int) {
	return b.start, b.end
}

// Select sets the selection. Reversed bounds are swapped.
func (b *Buffer) Select(start, end int) error {
	if start > end {
		start, end = end, start
	}
	if start < 0 || end > len(b.text) {
		return fmt.Errorf("%w: [%d,%d] in %d", ErrSelectionRange, start, end, len(b.text))
	}
	b.start, b.end = start, end
	return nil
}

// InsertText replaces the selection with text and leaves the cursor after it.
func (b *Buffer) InsertText(text string) {
	r := []rune(text)
	b.replace(b.start, b.end, r)
	b.start += len(r)
	b.end = b.start
}

// ApplyFormat applies cmd to the selection. value carries the heading level
// or the link URL. The selection keeps covering the formatted text.
func (b *Buffer) ApplyFormat(cmd Command, value string) error {
	switch cmd {
	case CmdBold:
		b.wrap("**", "**")
	case CmdItalic:
		b.wrap("*", "*")
	case CmdCode:
		b.wrap("`", "`")
	case CmdMath:
		b.wrap("$", "$")
	case CmdLink:
		return b.link(value)
	case CmdCodeBlock:
		b.codeBlock()
	case CmdHeading:
		level := 1
		if v := strings.TrimSpace(value); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 3 {
				return fmt.Errorf("%w: heading level %q", ErrFormatValue, value)
			}
			level = n
		}
		marker := strings.Repeat("#", level) + " "
		b.prefixLines(func(_ int, line string) string {
			return marker + strings.TrimLeft(strings.TrimLeft(line, "#"), " ")
		})
	case CmdQuote:
		b.prefixLines(func(_ int, line string) string { return "> " + line })
	case CmdBullet:
		b.prefixLines(func(_ int, line string) string { return "- " + line })
	case CmdNumbered:
		b.prefixLines(func(i int, line string) string { return strconv.Itoa(i+1) + ". " + line })
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, cmd)
	}
	return nil
}

var (
	plainFence  = regexp.MustCompile("(?m)^```.*\n?")
	plainPrefix = regexp.MustCompile(`(?m)^(?:#{1,6} |> |- |\d+\. )`)
	plainLink   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	plainBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	plainItalic = regexp.MustCompile(`\*(.+?)\*`)
	plainCode   = regexp.MustCompile("`([^`]+)`")
	plainMath   = regexp.MustCompile(`\$(.+?)\$`)
)

// PlainText projects the buffer without formatting markers.
func (b *Buffer) PlainText() string {
	s := b.Text()
	s = plainFence.ReplaceAllString(s, "")
	s = plainPrefix.ReplaceAllString(s, "")
	s = plainLink.ReplaceAllString(s, "$1")
	s = plainBold.ReplaceAllString(s, "$1")
	s = plainItalic.ReplaceAllString(s, "$1")
	s = plainCode.ReplaceAllString(s, "$1")
	s = plainMath.ReplaceAllString(s, "$1")
	return s
}

func (b *Buffer) replace(from, to int, r []rune) {
	out := make([]rune, 0, len(b.text)-(to-from)+len(r))
	out = append(out, b.text[:from]...)
	out = append(out, r...)
	out = append(out, b.text[to:]...)
	b.text = out
}

func (b *Buffer) wrap(prefix, suffix string) {
	sel := string(b.text[b.start:b.end])
	n := b.end - b.start
	b.replace(b.start, b.end, []rune(prefix+sel+suffix))
	b.start += utf8.RuneCountInString(prefix)
	b.end = b.start + n
}

func (b *Buffer) link(value string) error {
	url := strings.TrimSpace(value)
	if url == "" {
		return fmt.Errorf("%w: link needs a URL", ErrFormatValue)
	}
	label := string(b.text[b.start:b.end])
	if strings.TrimSpace(label) == "" {
		label = "link"
	}
	b.replace(b.start, b.end, []rune("["+label+"]("+url+")"))
	b.start++
	b.end = b.start + utf8.RuneCountInString(label)
	return nil
}

func (b *Buffer) codeBlock() {
	prefix := "```\n"
	if b.start > 0 && b.text[b.start-1] != '\n' {
		prefix = "\n" + prefix
	}
	suffix := "\n```"
	if b.end < len(b.text) && b.text[b.end] != '\n' {
		suffix += "\n"
	}
	b.wrap(prefix, suffix)
}

// prefixLines rewrites every line touched by the selection.
func (b *Buffer) prefixLines(rewrite func(i int, line string) string) {
	ls := b.start
	for ls > 0 && b.text[ls-1] != '\n' {
		ls--
	}
	le := b.end
	for le < len(b.text) && b.text[le] != '\n' {
		le++
	}

	lines := strings.Split(string(b.text[ls:le]), "\n")
	firstDelta := 0
	total := 0
	for i, line := range lines {
		next := rewrite(i, line)
		d := utf8.RuneCountInString(next) - utf8.RuneCountInString(line)
		if i == 0 {
			firstDelta = d
		}
		total += d
		lines[i] = next
	}
	b.replace(ls, le, []rune(strings.Join(lines, "\n")))

	b.start = max(b.start+firstDelta, ls)
	b.end = max(b.end+total, b.start)
}
