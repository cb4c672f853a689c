package draft

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-authoring/internal/model"
)

// Section headings of a rendered description.
const (
	HeadingInputFormat  = "## Input Format"
	HeadingOutputFormat = "## Output Format"
	HeadingExamples     = "## Examples"
)

// RenderDescription builds the final statement from the editable source,
// the input/output format sections and every non-empty sample pair.
func RenderDescription(source, inputFormat, outputFormat string, samples []model.SamplePair) string {
	var parts []string
	if s := strings.TrimRight(source, " \t\r\n"); strings.TrimSpace(s) != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(inputFormat); s != "" {
		parts = append(parts, HeadingInputFormat+"\n\n"+s)
	}
	if s := strings.TrimSpace(outputFormat); s != "" {
		parts = append(parts, HeadingOutputFormat+"\n\n"+s)
	}

	var examples []string
	for _, sp := range samples {
		if sp.Empty() {
			continue
		}
		n := len(examples) + 1
		examples = append(examples, fmt.Sprintf("### Example %d\n\nInput\n\n%s\n\nOutput\n\n%s",
			n, fence(sp.Input), fence(sp.Output)))
	}
	if len(examples) > 0 {
		parts = append(parts, HeadingExamples+"\n\n"+strings.Join(examples, "\n\n"))
	}
	return strings.Join(parts, "\n\n")
}

func fence(s string) string {
	return "```\n" + strings.TrimRight(s, "\r\n") + "\n```"
}
