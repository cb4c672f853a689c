// Package submission turns a draft into the request its edit mode calls for
// and sends it to the problem API.
package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// ErrTitleRequired blocks a submit without a title.
var ErrTitleRequired = errors.New("title is required")

// Limit fallbacks used when neither the draft nor the loaded problem has one.
const (
	FallbackTimeLimit   = "1"
	FallbackMemoryLimit = "256"
)

// Defaults are the configured limit fallbacks.
type Defaults struct {
	TimeLimit   string
	MemoryLimit string
}

// Request is either a metadata update or a create-problem payload.
type Request struct {
	Mode     draft.Mode
	Metadata *MetadataPayload
	Create   *CreatePayload
}

// Build serializes d for its current mode.
func Build(d *draft.Draft, def Defaults) (Request, error) {
	title := strings.TrimSpace(d.Title())
	if title == "" {
		return Request{}, ErrTitleRequired
	}

	tags := d.Tags()
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return Request{}, fmt.Errorf("encode tags: %w", err)
	}

	if d.Mode() == draft.ModeMetadataOnly {
		return Request{
			Mode: draft.ModeMetadataOnly,
			Metadata: &MetadataPayload{
				Title:           title,
				Tags:            string(tagsJSON),
				Difficulty:      d.Difficulty(),
				MetadataUpdated: true,
			},
		}, nil
	}

	create, err := buildCreate(d, def, title, string(tagsJSON))
	if err != nil {
		return Request{}, err
	}
	return Request{Mode: draft.ModeFullTransform, Create: create}, nil
}

func buildCreate(d *draft.Draft, def Defaults, title, tags string) (*CreatePayload, error) {
	var samples []model.SamplePair
	for _, sp := range d.Samples() {
		if !sp.Empty() {
			samples = append(samples, sp)
		}
	}
	if samples == nil {
		samples = []model.SamplePair{}
	}
	samplesJSON, err := json.Marshal(samples)
	if err != nil {
		return nil, fmt.Errorf("encode samples: %w", err)
	}

	p := &CreatePayload{}
	p.Fields = append(p.Fields,
		FormField{FieldTitle, title},
		FormField{FieldTags, tags},
		FormField{FieldDifficulty, strconv.Itoa(int(d.Difficulty()))},
	)

	// A description file beats the archive statement, which beats the
	// edited description. The archive statement only applies when nothing
	// was written in the draft.
	descFile := d.DescriptionFile()
	archive := d.Archive()
	if descFile == nil && (archive == nil || strings.TrimSpace(d.DescriptionText()) != "") {
		p.Fields = append(p.Fields, FormField{FieldDescription, d.RenderedDescription()})
	}

	p.Fields = append(p.Fields,
		FormField{FieldInputFormat, d.InputFormat()},
		FormField{FieldOutputFormat, d.OutputFormat()},
		FormField{FieldTimeLimit, firstNonBlank(d.TimeLimit(), d.OriginalTimeLimit(), def.TimeLimit, FallbackTimeLimit)},
		FormField{FieldMemoryLimit, firstNonBlank(d.MemoryLimit(), d.OriginalMemoryLimit(), def.MemoryLimit, FallbackMemoryLimit)},
		FormField{FieldSampleInputs, string(samplesJSON)},
	)

	if archive != nil {
		p.Files = append(p.Files, FilePart{Field: PartArchive, Filename: archive.Name, File: *archive})
	}
	if descFile != nil {
		p.Files = append(p.Files, FilePart{Field: PartDescriptionFile, Filename: descFile.Name, File: *descFile})
	}
	p.Files = append(p.Files, TestcaseParts(d.ParsedTestcases(), d.Testcases())...)
	return p, nil
}

// TestcaseParts emits one file part per non-empty side, parsed testcases
// first. Parts are keyed by a running index, not by testcase name.
func TestcaseParts(lists ...[]model.TestcaseItem) []FilePart {
	var parts []FilePart
	n := 0
	add := func(filename, content string) {
		parts = append(parts, FilePart{
			Field:    PartTestcasePrefix + strconv.Itoa(n),
			Filename: filename,
			File:     upload.FromBytes(filename, []byte(content)),
		})
		n++
	}
	for _, list := range lists {
		for _, tc := range list {
			if strings.TrimSpace(tc.Input) != "" {
				add(tc.Name+model.ExtInput, tc.Input)
			}
			if strings.TrimSpace(tc.Output) != "" {
				add(tc.Name+model.ExtAnswer, tc.Output)
			}
		}
	}
	return parts
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
