package model

import (
	"regexp"
	"strings"
)

// Difficulty is the numeric level of a problem. Level 1 is the lowest.
type Difficulty int

const (
	DifficultyMin     Difficulty = 1
	DifficultyMax     Difficulty = 5
	DifficultyDefault            = DifficultyMin
)

// Valid reports whether d is within the supported range.
func (d Difficulty) Valid() bool {
	return d >= DifficultyMin && d <= DifficultyMax
}

// TestcaseType marks whether a testcase is shown to students.
type TestcaseType string

const (
	TestcaseSample TestcaseType = "sample"
	TestcaseSecret TestcaseType = "secret"
)

// Testcase file extensions.
const (
	ExtInput     = ".in"
	ExtAnswer    = ".ans"
	ExtOutput    = ".out"
	ExtArchive   = ".zip"
	ExtMarkdown  = ".md"
	ExtPlainText = ".txt"
	ExtTeX       = ".tex"
)

// DescriptionExtensions are accepted for standalone statement files, in the
// order the parser tries them inside an archive.
var DescriptionExtensions = []string{ExtTeX, ExtMarkdown, ExtPlainText}

// TestcaseItem is one named input/output pair.
type TestcaseItem struct {
	Name   string       `json:"name"`
	Input  string       `json:"input"`
	Output string       `json:"output"`
	Type   TestcaseType `json:"type"`
	IsNew  bool         `json:"is_new"`
	// SourceFiles lists the uploaded filenames a new pair was built from.
	SourceFiles []string `json:"source_files,omitempty"`
}

// Complete reports whether both sides carry content.
func (t TestcaseItem) Complete() bool {
	return strings.TrimSpace(t.Input) != "" && strings.TrimSpace(t.Output) != ""
}

// SamplePair is a user-visible example shown in the statement.
type SamplePair struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Empty reports whether neither side has content.
func (s SamplePair) Empty() bool {
	return strings.TrimSpace(s.Input) == "" && strings.TrimSpace(s.Output) == ""
}

var (
	timeLimitPattern   = regexp.MustCompile(`^(?:\d+(?:\.\d+)?|\.\d+)$`)
	memoryLimitPattern = regexp.MustCompile(`^\d+$`)
)

// ValidTimeLimit reports whether s is a positive number of seconds.
func ValidTimeLimit(s string) bool {
	return timeLimitPattern.MatchString(s) && strings.Trim(s, "0.") != ""
}

// ValidMemoryLimit reports whether s is a positive whole number of MB.
func ValidMemoryLimit(s string) bool {
	return memoryLimitPattern.MatchString(s) && strings.Trim(s, "0") != ""
}

// ProblemMeta is the bare metadata known for a problem before its archive
// is parsed, typically from a basic fetch in the listing view.
type ProblemMeta struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TimeLimit   string     `json:"time_limit"`
	MemoryLimit string     `json:"memory_limit"`
	Tags        []string   `json:"tags"`
	Difficulty  Difficulty `json:"difficulty"`
}

// ParsedProblem is parser output after normalization and baseline fallback.
type ParsedProblem struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	TimeLimit   string         `json:"time_limit"`
	MemoryLimit string         `json:"memory_limit"`
	Tags        []string       `json:"tags"`
	Difficulty  Difficulty     `json:"difficulty"`
	Testcases   []TestcaseItem `json:"testcases"`
}

// Samples returns the sample-marked testcases as example pairs.
func (p ParsedProblem) Samples() []SamplePair {
	var samples []SamplePair
	for _, tc := range p.Testcases {
		if tc.Type == TestcaseSample {
			samples = append(samples, SamplePair{Input: tc.Input, Output: tc.Output})
		}
	}
	return samples
}
