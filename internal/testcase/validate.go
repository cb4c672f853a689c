package testcase

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-authoring/internal/model"
)

// Missing names the empty side(s) of an incomplete pair.
type Missing string

const (
	MissingInput  Missing = "input"
	MissingOutput Missing = "output"
	MissingBoth   Missing = "input+output"
)

// Incomplete is a pair that cannot be judged as-is.
type Incomplete struct {
	Name    string  `json:"name"`
	Missing Missing `json:"missing"`
}

// Validate reports every pair whose input or output is empty or whitespace.
// Lists are scanned in the order given.
func Validate(lists ...[]model.TestcaseItem) []Incomplete {
	var out []Incomplete
	for _, list := range lists {
		for _, tc := range list {
			noInput := strings.TrimSpace(tc.Input) == ""
			noOutput := strings.TrimSpace(tc.Output) == ""
			switch {
			case noInput && noOutput:
				out = append(out, Incomplete{Name: tc.Name, Missing: MissingBoth})
			case noInput:
				out = append(out, Incomplete{Name: tc.Name, Missing: MissingInput})
			case noOutput:
				out = append(out, Incomplete{Name: tc.Name, Missing: MissingOutput})
			}
		}
	}
	return out
}

// Describe renders the list as the confirmation prompt shown before an
// incomplete submission goes out.
func Describe(incomplete []Incomplete) string {
	if len(incomplete) == 0 {
		return ""
	}
	parts := make([]string, 0, len(incomplete))
	for _, inc := range incomplete {
		parts = append(parts, fmt.Sprintf("%s (missing %s)", inc.Name, inc.Missing))
	}
	return fmt.Sprintf("%d testcase(s) are incomplete: %s. Submit anyway?", len(incomplete), strings.Join(parts, ", "))
}
