package archive

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-authoring/internal/model"
)

// RawProblem is the parser's response body. Fields are loosely typed
// because the parser has shipped several encodings over time.
type RawProblem struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	TimeLimit   json.RawMessage `json:"timeLimit,omitempty"`
	MemoryLimit json.RawMessage `json:"memoryLimit,omitempty"`
	Tags        json.RawMessage `json:"tags,omitempty"`
	Difficulty  *int            `json:"difficulty,omitempty"`
	TestCases   []RawTestcase   `json:"testCases,omitempty"`
}

// RawTestcase is one parsed pair as sent by the parser.
type RawTestcase struct {
	Name     string `json:"name"`
	Input    string `json:"input"`
	Output   string `json:"output"`
	Type     string `json:"type,omitempty"`
	IsSample bool   `json:"isSample,omitempty"`
}

// Hints tell the parser where to look for an embedded statement.
type Hints struct {
	StatementDir  string
	StatementExts []string
}

// DefaultHints prefers statement/ and tries .tex, .md, then .txt.
var DefaultHints = Hints{
	StatementDir:  "statement",
	StatementExts: model.DescriptionExtensions,
}

// NormalizeTags accepts a JSON array, a JSON string holding a JSON array, or
// a JSON string holding a delimited list. The result is trimmed, free of
// empties and duplicates, and keeps first-seen order.
func NormalizeTags(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		return dedupe(stringify(list))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return NormalizeTagString(s)
	}
	return nil
}

// NormalizeTagString handles the string forms: an encoded JSON array or a
// list split on commas, semicolons, pipes or newlines.
func NormalizeTagString(s string) []string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") {
		var list []any
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			return dedupe(stringify(list))
		}
	}
	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n' || r == '\r'
	})
	return dedupe(parts)
}

// NormalizeTagList cleans a list that is already split.
func NormalizeTagList(tags []string) []string {
	return dedupe(tags)
}

func stringify(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		}
	}
	return out
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeLimit renders a JSON number or string limit as a decimal string.
// Values valid rejects come back blank so the caller's fallback applies.
func normalizeLimit(raw json.RawMessage, valid func(string) bool) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return validLimit(strconv.FormatFloat(n, 'f', -1, 64), valid)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return validLimit(s, valid)
	}
	return ""
}

func validLimit(s string, valid func(string) bool) string {
	s = strings.TrimSpace(s)
	if !valid(s) {
		return ""
	}
	return s
}
