package service

import (
	"time"

	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/testcase"
)

// DraftView is the client-facing snapshot of a draft.
type DraftView struct {
	ID                  string                `json:"id"`
	Mode                draft.Mode            `json:"mode"`
	Origin              draft.Origin          `json:"origin"`
	Editable            []draft.Field         `json:"editable"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	DescriptionPlain    string                `json:"description_plain"`
	RenderedDescription string                `json:"rendered_description"`
	Selection           [2]int                `json:"selection"`
	InputFormat         string                `json:"input_format"`
	OutputFormat        string                `json:"output_format"`
	Tags                []string              `json:"tags"`
	Difficulty          model.Difficulty      `json:"difficulty"`
	TimeLimit           string                `json:"time_limit"`
	MemoryLimit         string                `json:"memory_limit"`
	OriginalTimeLimit   string                `json:"original_time_limit"`
	OriginalMemoryLimit string                `json:"original_memory_limit"`
	SampleInputs        []model.SamplePair    `json:"sample_inputs"`
	Testcases           []model.TestcaseItem  `json:"testcases"`
	ParsedTestcases     []model.TestcaseItem  `json:"parsed_testcases"`
	Incomplete          []testcase.Incomplete `json:"incomplete"`
	ParseUnavailable    bool                  `json:"parse_unavailable"`
	ArchiveName         string                `json:"archive_name,omitempty"`
	DescriptionFileName string                `json:"description_file_name,omitempty"`
	ReplacementID       int64                 `json:"replacement_id,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
}

var allFields = []draft.Field{
	draft.FieldTitle, draft.FieldDifficulty, draft.FieldTags, draft.FieldDescription,
	draft.FieldInputFormat, draft.FieldOutputFormat, draft.FieldTimeLimit, draft.FieldMemoryLimit,
	draft.FieldSamples, draft.FieldTestcases, draft.FieldArchive, draft.FieldDescriptionFile,
}

func viewOf(d *draft.Draft) DraftView {
	editable := make([]draft.Field, 0, len(allFields))
	for _, f := range allFields {
		if d.CanEdit(f) {
			editable = append(editable, f)
		}
	}

	start, end := d.Description().Selection()
	tags := d.Tags()
	if tags == nil {
		tags = []string{}
	}
	parsed := d.ParsedTestcases()
	user := d.Testcases()

	v := DraftView{
		ID:                  d.ID,
		Mode:                d.Mode(),
		Origin:              d.Origin,
		Editable:            editable,
		Title:               d.Title(),
		Description:         d.DescriptionText(),
		DescriptionPlain:    d.Description().PlainText(),
		RenderedDescription: d.RenderedDescription(),
		Selection:           [2]int{start, end},
		InputFormat:         d.InputFormat(),
		OutputFormat:        d.OutputFormat(),
		Tags:                tags,
		Difficulty:          d.Difficulty(),
		TimeLimit:           d.TimeLimit(),
		MemoryLimit:         d.MemoryLimit(),
		OriginalTimeLimit:   d.OriginalTimeLimit(),
		OriginalMemoryLimit: d.OriginalMemoryLimit(),
		SampleInputs:        d.Samples(),
		Testcases:           user,
		ParsedTestcases:     parsed,
		Incomplete:          testcase.Validate(parsed, user),
		ParseUnavailable:    d.ParseUnavailable(),
		ReplacementID:       d.ReplacementID(),
		CreatedAt:           d.CreatedAt,
	}
	if a := d.Archive(); a != nil {
		v.ArchiveName = a.Name
	}
	if f := d.DescriptionFile(); f != nil {
		v.DescriptionFileName = f.Name
	}
	return v
}
