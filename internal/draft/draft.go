// Package draft holds the in-memory state of a problem being authored or
// edited, and the edit-mode rules that decide which parts of it may change.
//
// A Draft is not safe for concurrent use; the owning session serializes
// access to it.
package draft

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// Draft errors.
var (
	ErrFieldReadOnly     = errors.New("field is read-only in metadata-only mode")
	ErrInvalidDifficulty = errors.New("difficulty out of range")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrDuplicateTestcase = errors.New("testcase name already exists")
	ErrTestcaseNotFound  = errors.New("testcase not found")
	ErrParsedReadOnly    = errors.New("parsed testcases cannot be edited")
	ErrRelinkPending     = errors.New("problem already created, finish the submit before editing")
)

// Origin records where a draft was opened from. Zero ids mean "none".
type Origin struct {
	ProblemID    int64 `json:"problem_id,omitempty"`
	AssignmentID int64 `json:"assignment_id,omitempty"`
}

// Creating reports whether the draft authors a brand new problem.
func (o Origin) Creating() bool {
	return o.ProblemID == 0
}

// Draft is the canonical authoring state of one problem.
type Draft struct {
	ID        string
	Origin    Origin
	CreatedAt time.Time

	machine *Machine

	title        string
	description  *Buffer
	inputFormat  string
	outputFormat string
	tags         TagSet
	difficulty   model.Difficulty

	timeLimit           string
	memoryLimit         string
	originalTimeLimit   string
	originalMemoryLimit string

	samples   []model.SamplePair
	testcases []model.TestcaseItem
	parsed    []model.TestcaseItem

	archive         *upload.File
	descriptionFile *upload.File

	parseUnavailable bool
	replacementID    int64
}

// New builds a draft from a parsed (or baseline-only) problem. Drafts for
// existing problems start in MetadataOnly; creation drafts have no identity
// to preserve and start in FullTransform.
func New(id string, origin Origin, p model.ParsedProblem) *Draft {
	mode := ModeMetadataOnly
	if origin.Creating() {
		mode = ModeFullTransform
	}

	difficulty := p.Difficulty
	if !difficulty.Valid() {
		difficulty = model.DifficultyDefault
	}
	timeLimit := validLimit(p.TimeLimit, model.ValidTimeLimit)
	memoryLimit := validLimit(p.MemoryLimit, model.ValidMemoryLimit)

	d := &Draft{
		ID:                  id,
		Origin:              origin,
		CreatedAt:           time.Now(),
		machine:             NewMachine(mode),
		title:               p.Title,
		description:         NewBuffer(p.Description),
		difficulty:          difficulty,
		timeLimit:           timeLimit,
		memoryLimit:         memoryLimit,
		originalTimeLimit:   timeLimit,
		originalMemoryLimit: memoryLimit,
		samples:             p.Samples(),
		parsed:              cloneItems(p.Testcases),
	}
	d.tags.Replace(p.Tags)
	return d
}

// validLimit drops a loaded limit that fails valid, so submit falls back.
func validLimit(s string, valid func(string) bool) string {
	s = strings.TrimSpace(s)
	if !valid(s) {
		return ""
	}
	return s
}

// MarkParseUnavailable records that the archive could not be parsed.
func (d *Draft) MarkParseUnavailable() { d.parseUnavailable = true }

// ParseUnavailable reports whether the draft fell back to bare metadata.
func (d *Draft) ParseUnavailable() bool { return d.parseUnavailable }

// Mode returns the current edit mode.
func (d *Draft) Mode() Mode { return d.machine.Mode() }

// Transform switches to FullTransform. Field values are untouched.
func (d *Draft) Transform(confirm Confirmer) error {
	return d.machine.Transform(confirm)
}

// CanEdit reports whether f is mutable right now. Nothing is while a
// created replacement waits to be relinked.
func (d *Draft) CanEdit(f Field) bool { return d.CheckEdit(f) == nil }

// CheckEdit explains why f cannot change, or returns nil.
func (d *Draft) CheckEdit(f Field) error {
	if d.replacementID != 0 {
		return fmt.Errorf("%w: problem %d", ErrRelinkPending, d.replacementID)
	}
	if !d.machine.CanEdit(f) {
		return fmt.Errorf("%w: %s", ErrFieldReadOnly, f)
	}
	return nil
}

func (d *Draft) Title() string { return d.title }
func (d *Draft) Difficulty() model.Difficulty { return d.difficulty }
func (d *Draft) Tags() []string { return d.tags.List() }
func (d *Draft) InputFormat() string { return d.inputFormat }
func (d *Draft) OutputFormat() string { return d.outputFormat }
func (d *Draft) TimeLimit() string { return d.timeLimit }
func (d *Draft) MemoryLimit() string { return d.memoryLimit }
func (d *Draft) OriginalTimeLimit() string { return d.originalTimeLimit }
func (d *Draft) OriginalMemoryLimit() string { return d.originalMemoryLimit }
func (d *Draft) Archive() *upload.File { return d.archive }
func (d *Draft) DescriptionFile() *upload.File { return d.descriptionFile }

// Description returns the editable description buffer. Mutate it only
// through the draft's description methods.
func (d *Draft) Description() *Buffer { return d.description }

// DescriptionText returns the editable description source.
func (d *Draft) DescriptionText() string { return d.description.Text() }

// RenderedDescription derives the final statement on demand.
func (d *Draft) RenderedDescription() string {
	return RenderDescription(d.description.Text(), d.inputFormat, d.outputFormat, d.samples)
}

// Samples returns a copy of the example pairs.
func (d *Draft) Samples() []model.SamplePair {
	out := make([]model.SamplePair, len(d.samples))
	copy(out, d.samples)
	return out
}

// Testcases returns a copy of the user-added testcases.
func (d *Draft) Testcases() []model.TestcaseItem { return cloneItems(d.testcases) }

// ParsedTestcases returns a copy of the parser's testcases.
func (d *Draft) ParsedTestcases() []model.TestcaseItem { return cloneItems(d.parsed) }

// ExistingNames returns every testcase name in use, parsed or user-added.
func (d *Draft) ExistingNames() map[string]struct{} {
	names := make(map[string]struct{}, len(d.parsed)+len(d.testcases))
	for _, tc := range d.parsed {
		names[tc.Name] = struct{}{}
	}
	for _, tc := range d.testcases {
		names[tc.Name] = struct{}{}
	}
	return names
}

// ReplacementID is the id of the problem created by an earlier submit whose
// relinking did not finish. Zero when none.
func (d *Draft) ReplacementID() int64 { return d.replacementID }

// SetReplacementID records the created problem id so a retry can resume.
// The draft refuses edits from then on, since a resumed submit does not
// send content again.
func (d *Draft) SetReplacementID(id int64) { d.replacementID = id }

// SetTitle is allowed in every mode.
func (d *Draft) SetTitle(title string) error {
	if err := d.CheckEdit(FieldTitle); err != nil {
		return err
	}
	d.title = strings.TrimSpace(title)
	return nil
}

// SetDifficulty is allowed in every mode.
func (d *Draft) SetDifficulty(level model.Difficulty) error {
	if err := d.CheckEdit(FieldDifficulty); err != nil {
		return err
	}
	if !level.Valid() {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidDifficulty, level, model.DifficultyMin, model.DifficultyMax)
	}
	d.difficulty = level
	return nil
}

// SetTags replaces the tag set.
func (d *Draft) SetTags(tags []string) error {
	if err := d.CheckEdit(FieldTags); err != nil {
		return err
	}
	d.tags.Replace(tags)
	return nil
}

// AddTag adds one tag.
func (d *Draft) AddTag(tag string) error {
	if err := d.CheckEdit(FieldTags); err != nil {
		return err
	}
	d.tags.Add(tag)
	return nil
}

// RemoveTag removes one tag.
func (d *Draft) RemoveTag(tag string) error {
	if err := d.CheckEdit(FieldTags); err != nil {
		return err
	}
	d.tags.Remove(tag)
	return nil
}

// SetDescription replaces the description source.
func (d *Draft) SetDescription(text string) error {
	if err := d.CheckEdit(FieldDescription); err != nil {
		return err
	}
	d.description.SetText(text)
	return nil
}

// SelectDescription moves the description selection.
func (d *Draft) SelectDescription(start, end int) error {
	if err := d.CheckEdit(FieldDescription); err != nil {
		return err
	}
	return d.description.Select(start, end)
}

// InsertDescription types text at the description selection.
func (d *Draft) InsertDescription(text string) error {
	if err := d.CheckEdit(FieldDescription); err != nil {
		return err
	}
	d.description.InsertText(text)
	return nil
}

// FormatDescription applies a formatting command at the selection.
func (d *Draft) FormatDescription(cmd Command, value string) error {
	if err := d.CheckEdit(FieldDescription); err != nil {
		return err
	}
	return d.description.ApplyFormat(cmd, value)
}

// SetInputFormat sets the input format section.
func (d *Draft) SetInputFormat(s string) error {
	if err := d.CheckEdit(FieldInputFormat); err != nil {
		return err
	}
	d.inputFormat = s
	return nil
}

// SetOutputFormat sets the output format section.
func (d *Draft) SetOutputFormat(s string) error {
	if err := d.CheckEdit(FieldOutputFormat); err != nil {
		return err
	}
	d.outputFormat = s
	return nil
}

// SetTimeLimit sets the time limit in seconds. Blank falls back to the
// original value at submit.
func (d *Draft) SetTimeLimit(s string) error {
	if err := d.CheckEdit(FieldTimeLimit); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s != "" && !model.ValidTimeLimit(s) {
		return fmt.Errorf("%w: time limit %q must be a positive number of seconds", ErrInvalidLimit, s)
	}
	d.timeLimit = s
	return nil
}

// SetMemoryLimit sets the memory limit in MB. Blank falls back to the
// original value at submit.
func (d *Draft) SetMemoryLimit(s string) error {
	if err := d.CheckEdit(FieldMemoryLimit); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s != "" && !model.ValidMemoryLimit(s) {
		return fmt.Errorf("%w: memory limit %q must be a positive whole number of MB", ErrInvalidLimit, s)
	}
	d.memoryLimit = s
	return nil
}

// SetSamples replaces the example pairs.
func (d *Draft) SetSamples(samples []model.SamplePair) error {
	if err := d.CheckEdit(FieldSamples); err != nil {
		return err
	}
	d.samples = append([]model.SamplePair(nil), samples...)
	return nil
}

// ReseedSamples rebuilds the example pairs from every sample testcase,
// parsed ones first.
func (d *Draft) ReseedSamples() error {
	if err := d.CheckEdit(FieldSamples); err != nil {
		return err
	}
	var samples []model.SamplePair
	for _, list := range [][]model.TestcaseItem{d.parsed, d.testcases} {
		for _, tc := range list {
			if tc.Type == model.TestcaseSample {
				samples = append(samples, model.SamplePair{Input: tc.Input, Output: tc.Output})
			}
		}
	}
	d.samples = samples
	return nil
}

// AttachArchive sets the archive sent with a full submission.
func (d *Draft) AttachArchive(f upload.File) error {
	if err := d.CheckEdit(FieldArchive); err != nil {
		return err
	}
	d.archive = &f
	return nil
}

// AttachDescriptionFile sets a standalone statement file. It wins over both
// the archive statement and the edited description.
func (d *Draft) AttachDescriptionFile(f upload.File) error {
	if err := d.CheckEdit(FieldDescriptionFile); err != nil {
		return err
	}
	d.descriptionFile = &f
	return nil
}

// AddTestcases appends extracted testcases. The whole batch is refused if
// any name is already taken.
func (d *Draft) AddTestcases(items []model.TestcaseItem) error {
	if err := d.CheckEdit(FieldTestcases); err != nil {
		return err
	}
	names := d.ExistingNames()
	for _, it := range items {
		if _, ok := names[it.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateTestcase, it.Name)
		}
		names[it.Name] = struct{}{}
	}
	d.testcases = append(d.testcases, cloneItems(items)...)
	return nil
}

// TestcasePatch changes parts of a user-added testcase. Nil fields are kept.
type TestcasePatch struct {
	Input  *string
	Output *string
	Type   *model.TestcaseType
}

// UpdateTestcase edits a user-added testcase.
func (d *Draft) UpdateTestcase(name string, patch TestcasePatch) error {
	i, err := d.userTestcase(name)
	if err != nil {
		return err
	}
	tc := &d.testcases[i]
	if patch.Input != nil {
		tc.Input = *patch.Input
	}
	if patch.Output != nil {
		tc.Output = *patch.Output
	}
	if patch.Type != nil {
		tc.Type = *patch.Type
	}
	return nil
}

// RemoveTestcase drops a user-added testcase.
func (d *Draft) RemoveTestcase(name string) error {
	i, err := d.userTestcase(name)
	if err != nil {
		return err
	}
	d.testcases = append(d.testcases[:i], d.testcases[i+1:]...)
	return nil
}

func (d *Draft) userTestcase(name string) (int, error) {
	if err := d.CheckEdit(FieldTestcases); err != nil {
		return -1, err
	}
	for i, tc := range d.testcases {
		if tc.Name == name {
			return i, nil
		}
	}
	for _, tc := range d.parsed {
		if tc.Name == name {
			return -1, fmt.Errorf("%w: %q", ErrParsedReadOnly, name)
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrTestcaseNotFound, name)
}

func cloneItems(items []model.TestcaseItem) []model.TestcaseItem {
	if items == nil {
		return nil
	}
	out := make([]model.TestcaseItem, len(items))
	for i, it := range items {
		it.SourceFiles = append([]string(nil), it.SourceFiles...)
		out[i] = it
	}
	return out
}
