package testcase

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxUCSkip bounds \ucN. Real writers use 0 to 2.
const maxUCSkip = 4

// rtfCodePages maps \ansicpgN to the charmap used for \'hh escapes.
var rtfCodePages = map[int]*charmap.Charmap{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	866:   charmap.CodePage866,
	874:   charmap.Windows874,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
}

// Decode turns raw uploaded bytes into testcase text. Files saved by rich
// text editors (RTF) are reduced to their plain text; everything else is
// returned as-is minus a leading byte order mark.
func Decode(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if looksLikeRTF(data) {
		return stripRTF(string(data))
	}
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(data)
}

func looksLikeRTF(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte(`{\rtf`))
}

// Destinations whose content is metadata, not document text.
var rtfSkipDestinations = map[string]bool{
	"fonttbl":           true,
	"colortbl":          true,
	"expandedcolortbl":  true,
	"stylesheet":        true,
	"info":              true,
	"pict":              true,
	"header":            true,
	"footer":            true,
	"listtable":         true,
	"listoverridetable": true,
	"generator":         true,
	"themedata":         true,
	"latentstyles":      true,
	"datastore":         true,
	"object":            true,
}

type rtfGroup struct {
	skip   bool
	ucSkip int
}

// stripRTF walks the RTF token stream and keeps only visible text.
func stripRTF(src string) string {
	var out strings.Builder
	stack := []rtfGroup{{ucSkip: 1}}
	pendingSkip := 0
	charset := charmap.Windows1252

	cur := func() *rtfGroup { return &stack[len(stack)-1] }
	emit := func(s string) {
		if pendingSkip > 0 {
			pendingSkip--
			return
		}
		if !cur().skip {
			out.WriteString(s)
		}
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch c {
		case '{':
			stack = append(stack, *cur())
			pendingSkip = 0
			i++
		case '}':
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			pendingSkip = 0
			i++
		case '\r', '\n':
			i++
		case '\\':
			i++
			if i >= len(src) {
				break
			}
			next := src[i]
			switch {
			case next == '\\' || next == '{' || next == '}':
				emit(string(next))
				i++
			case next == '\'':
				if i+2 < len(src) {
					if v, err := strconv.ParseUint(src[i+1:i+3], 16, 8); err == nil {
						emit(string(charset.DecodeByte(byte(v))))
					}
					i += 3
				} else {
					i = len(src)
				}
			case next == '*':
				cur().skip = true
				i++
			case next == '~':
				emit(" ")
				i++
			case next == '-' || next == '_':
				i++
			case next == '\n' || next == '\r':
				emit("\n")
				i++
			case isASCIILetter(next):
				start := i
				for i < len(src) && isASCIILetter(src[i]) {
					i++
				}
				word := src[start:i]
				numStart := i
				if i < len(src) && src[i] == '-' {
					i++
				}
				for i < len(src) && src[i] >= '0' && src[i] <= '9' {
					i++
				}
				param, hasParam := 0, i > numStart
				if hasParam {
					param, _ = strconv.Atoi(src[numStart:i])
				}
				if i < len(src) && src[i] == ' ' {
					i++
				}
				if cm := rtfCharset(word, param); cm != nil {
					charset = cm
				}
				if n := applyRTFWord(word, param, hasParam, cur(), emit); n >= 0 {
					pendingSkip = n
				}
			default:
				i++
			}
		default:
			r, size := utf8.DecodeRuneInString(src[i:])
			emit(string(r))
			i += size
		}
	}
	return out.String()
}

// applyRTFWord handles one control word. It returns the number of following
// characters to drop (after a \u escape) or -1 to leave that count alone.
func applyRTFWord(word string, param int, hasParam bool, g *rtfGroup, emit func(string)) int {
	if rtfSkipDestinations[word] {
		g.skip = true
		return -1
	}
	switch word {
	case "par", "line", "sect", "page":
		emit("\n")
	case "tab":
		emit("\t")
	case "emdash":
		emit("—")
	case "endash":
		emit("–")
	case "bullet":
		emit("•")
	case "lquote", "rquote":
		emit("'")
	case "ldblquote", "rdblquote":
		emit("\"")
	case "uc":
		if hasParam {
			g.ucSkip = min(max(param, 0), maxUCSkip)
		}
	case "u":
		if hasParam {
			if param < 0 {
				param += 65536
			}
			emit(string(rune(param)))
			return g.ucSkip
		}
	}
	return -1
}

// rtfCharset returns the charmap a character-set control word selects, or
// nil for any other word. Unknown code pages keep the current charset.
func rtfCharset(word string, param int) *charmap.Charmap {
	switch word {
	case "ansi":
		return charmap.Windows1252
	case "mac":
		return charmap.Macintosh
	case "pc":
		return charmap.CodePage437
	case "pca":
		return charmap.CodePage850
	case "ansicpg":
		return rtfCodePages[param]
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
