package draft

import "errors"

// Mode is the edit mode of a draft.
type Mode string

const (
	// ModeMetadataOnly allows title, difficulty and tags to change and
	// updates the existing problem in place.
	ModeMetadataOnly Mode = "metadata_only"
	// ModeFullTransform unlocks every field and submits a replacement problem.
	ModeFullTransform Mode = "full_transform"
)

// TransformConsequence is shown to the user before leaving MetadataOnly.
const TransformConsequence = "Editing the statement, limits or testcases creates a new problem " +
	"that is seeded into the judge again. The current problem will be replaced in its assignment, " +
	"not edited in place. This cannot be undone for this draft."

// ErrTransformDeclined is returned when the user did not confirm the switch.
var ErrTransformDeclined = errors.New("switch to full transform was not confirmed")

// Confirmer asks the user to accept consequence. It returns true on accept.
type Confirmer func(consequence string) bool

// Confirmed is a Confirmer for callers that already hold the user's answer.
func Confirmed(ok bool) Confirmer {
	return func(string) bool { return ok }
}

// Machine is the two-state edit-mode machine. FullTransform is terminal.
type Machine struct {
	mode Mode
}

// NewMachine starts a machine in initial. Anything other than
// ModeFullTransform starts in ModeMetadataOnly.
func NewMachine(initial Mode) *Machine {
	if initial != ModeFullTransform {
		initial = ModeMetadataOnly
	}
	return &Machine{mode: initial}
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Transform moves MetadataOnly to FullTransform once confirm accepts
// TransformConsequence. It is a no-op when already in FullTransform.
func (m *Machine) Transform(confirm Confirmer) error {
	if m.mode == ModeFullTransform {
		return nil
	}
	if confirm == nil || !confirm(TransformConsequence) {
		return ErrTransformDeclined
	}
	m.mode = ModeFullTransform
	return nil
}

// Field names a mutable part of a draft.
type Field string

const (
	FieldTitle           Field = "title"
	FieldDifficulty      Field = "difficulty"
	FieldTags            Field = "tags"
	FieldDescription     Field = "description"
	FieldInputFormat     Field = "input_format"
	FieldOutputFormat    Field = "output_format"
	FieldTimeLimit       Field = "time_limit"
	FieldMemoryLimit     Field = "memory_limit"
	FieldSamples         Field = "sample_inputs"
	FieldTestcases       Field = "testcases"
	FieldArchive         Field = "archive"
	FieldDescriptionFile Field = "description_file"
)

var metadataFields = map[Field]struct{}{
	FieldTitle:      {},
	FieldDifficulty: {},
	FieldTags:       {},
}

// CanEdit reports whether f is mutable in the current mode.
func (m *Machine) CanEdit(f Field) bool {
	if m.mode == ModeFullTransform {
		return true
	}
	_, ok := metadataFields[f]
	return ok
}
