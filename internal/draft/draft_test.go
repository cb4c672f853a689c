package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

func parsedFixture() model.ParsedProblem {
	return model.ParsedProblem{
		Title:       "A+B",
		Description: "Add two numbers.",
		TimeLimit:   "2",
		MemoryLimit: "128",
		Tags:        []string{"math", "implementation"},
		Difficulty:  2,
		Testcases: []model.TestcaseItem{
			{Name: "1", Input: "1 2", Output: "3", Type: model.TestcaseSample},
			{Name: "2", Input: "2 2", Output: "4", Type: model.TestcaseSecret},
		},
	}
}

func TestNewExistingProblemStartsMetadataOnly(t *testing.T) {
	d := New("d1", Origin{ProblemID: 10, AssignmentID: 3}, parsedFixture())

	assert.Equal(t, ModeMetadataOnly, d.Mode())
	assert.Equal(t, "2", d.OriginalTimeLimit())
	assert.Equal(t, "128", d.OriginalMemoryLimit())
	assert.Equal(t, []model.SamplePair{{Input: "1 2", Output: "3"}}, d.Samples())
	assert.Len(t, d.ParsedTestcases(), 2)
	assert.Empty(t, d.Testcases())
}

func TestNewCreationDraftStartsFullTransform(t *testing.T) {
	d := New("d2", Origin{AssignmentID: 3}, model.ParsedProblem{})
	assert.Equal(t, ModeFullTransform, d.Mode())
	assert.Equal(t, model.DifficultyDefault, d.Difficulty())
}

func TestMetadataOnlyGuardsJudgedFields(t *testing.T) {
	d := New("d1", Origin{ProblemID: 10}, parsedFixture())

	require.NoError(t, d.SetTitle("  Sum  "))
	require.NoError(t, d.SetDifficulty(4))
	require.NoError(t, d.AddTag("easy"))
	assert.Equal(t, "Sum", d.Title())

	assert.ErrorIs(t, d.SetDescription("x"), ErrFieldReadOnly)
	assert.ErrorIs(t, d.SetTimeLimit("3"), ErrFieldReadOnly)
	assert.ErrorIs(t, d.SetMemoryLimit("64"), ErrFieldReadOnly)
	assert.ErrorIs(t, d.SetInputFormat("x"), ErrFieldReadOnly)
	assert.ErrorIs(t, d.AddTestcases([]model.TestcaseItem{{Name: "n"}}), ErrFieldReadOnly)
	assert.ErrorIs(t, d.FormatDescription(CmdBold, ""), ErrFieldReadOnly)
	assert.ErrorIs(t, d.AttachArchive(upload.FromBytes("p.zip", nil)), ErrFieldReadOnly)
	assert.Equal(t, "Add two numbers.", d.DescriptionText())
}

func TestTransformKeepsLoadedValues(t *testing.T) {
	d := New("d1", Origin{ProblemID: 10}, parsedFixture())
	require.NoError(t, d.SetTitle("Renamed"))
	beforeTags := d.Tags()
	beforeDiff := d.Difficulty()

	require.NoError(t, d.Transform(Confirmed(true)))

	assert.Equal(t, ModeFullTransform, d.Mode())
	assert.Equal(t, "Renamed", d.Title())
	assert.Equal(t, beforeTags, d.Tags())
	assert.Equal(t, beforeDiff, d.Difficulty())
	assert.Equal(t, "Add two numbers.", d.DescriptionText())
	assert.Len(t, d.ParsedTestcases(), 2)
}

func TestTransformDeclinedLeavesModeUntouched(t *testing.T) {
	d := New("d1", Origin{ProblemID: 10}, parsedFixture())

	var shown string
	err := d.Transform(func(consequence string) bool {
		shown = consequence
		return false
	})

	assert.ErrorIs(t, err, ErrTransformDeclined)
	assert.Equal(t, TransformConsequence, shown)
	assert.Equal(t, ModeMetadataOnly, d.Mode())
	assert.ErrorIs(t, d.Transform(nil), ErrTransformDeclined)
}

func TestTransformIsTerminal(t *testing.T) {
	m := NewMachine(ModeMetadataOnly)
	require.NoError(t, m.Transform(Confirmed(true)))

	called := false
	require.NoError(t, m.Transform(func(string) bool {
		called = true
		return false
	}))
	assert.False(t, called)
	assert.Equal(t, ModeFullTransform, m.Mode())
}

func TestSetLimitsValidatesShape(t *testing.T) {
	d := New("d", Origin{}, model.ParsedProblem{})

	require.NoError(t, d.SetTimeLimit("1.5"))
	require.NoError(t, d.SetTimeLimit(""))
	require.NoError(t, d.SetMemoryLimit("512"))
	assert.ErrorIs(t, d.SetTimeLimit("0"), ErrInvalidLimit)
	assert.ErrorIs(t, d.SetTimeLimit("-1"), ErrInvalidLimit)
	assert.ErrorIs(t, d.SetTimeLimit("fast"), ErrInvalidLimit)
	assert.ErrorIs(t, d.SetMemoryLimit("1.5"), ErrInvalidLimit)
	assert.ErrorIs(t, d.SetMemoryLimit("000"), ErrInvalidLimit)
	assert.ErrorIs(t, d.SetDifficulty(6), ErrInvalidDifficulty)
}

func TestNewDropsMalformedLoadedLimits(t *testing.T) {
	for _, bad := range []string{"-3", "0", "2s", "abc"} {
		d := New("d", Origin{ProblemID: 1}, model.ParsedProblem{TimeLimit: bad, MemoryLimit: bad})
		assert.Empty(t, d.TimeLimit(), bad)
		assert.Empty(t, d.OriginalTimeLimit(), bad)
		assert.Empty(t, d.MemoryLimit(), bad)
		assert.Empty(t, d.OriginalMemoryLimit(), bad)
	}

	d := New("d", Origin{ProblemID: 1}, model.ParsedProblem{TimeLimit: " 0.5 ", MemoryLimit: "64"})
	assert.Equal(t, "0.5", d.OriginalTimeLimit())
	assert.Equal(t, "64", d.OriginalMemoryLimit())
}

func TestReplacementFreezesDraft(t *testing.T) {
	d := New("d", Origin{}, parsedFixture())
	require.NoError(t, d.SetTitle("before"))

	d.SetReplacementID(42)

	assert.ErrorIs(t, d.SetTitle("after"), ErrRelinkPending)
	assert.ErrorIs(t, d.SetTimeLimit("3"), ErrRelinkPending)
	assert.ErrorIs(t, d.AddTestcases([]model.TestcaseItem{{Name: "x", Input: "1"}}), ErrRelinkPending)
	assert.ErrorIs(t, d.InsertDescription("more"), ErrRelinkPending)
	assert.False(t, d.CanEdit(FieldTitle))
	assert.Equal(t, "before", d.Title())
}

func TestAddTestcasesRejectsTakenNames(t *testing.T) {
	d := New("d", Origin{}, parsedFixture())

	err := d.AddTestcases([]model.TestcaseItem{{Name: "1", Input: "x"}})
	assert.ErrorIs(t, err, ErrDuplicateTestcase)

	require.NoError(t, d.AddTestcases([]model.TestcaseItem{{Name: "3", Input: "x", IsNew: true}}))
	_, ok := d.ExistingNames()["3"]
	assert.True(t, ok)
}

func TestUpdateAndRemoveUserTestcase(t *testing.T) {
	d := New("d", Origin{}, parsedFixture())
	require.NoError(t, d.AddTestcases([]model.TestcaseItem{{Name: "x", Input: "1", Type: model.TestcaseSecret}}))

	out := "2"
	sample := model.TestcaseSample
	require.NoError(t, d.UpdateTestcase("x", TestcasePatch{Output: &out, Type: &sample}))
	tcs := d.Testcases()
	require.Len(t, tcs, 1)
	assert.Equal(t, "1", tcs[0].Input)
	assert.Equal(t, "2", tcs[0].Output)

	require.NoError(t, d.ReseedSamples())
	assert.Equal(t, []model.SamplePair{{Input: "1 2", Output: "3"}, {Input: "1", Output: "2"}}, d.Samples())

	assert.ErrorIs(t, d.UpdateTestcase("1", TestcasePatch{Output: &out}), ErrParsedReadOnly)
	assert.ErrorIs(t, d.RemoveTestcase("missing"), ErrTestcaseNotFound)
	require.NoError(t, d.RemoveTestcase("x"))
	assert.Empty(t, d.Testcases())
}

func TestTestcaseAccessorsReturnCopies(t *testing.T) {
	d := New("d", Origin{}, parsedFixture())
	parsed := d.ParsedTestcases()
	parsed[0].Input = "changed"
	assert.Equal(t, "1 2", d.ParsedTestcases()[0].Input)
}

func TestTagSet(t *testing.T) {
	var s TagSet
	assert.True(t, s.Add(" dp "))
	assert.False(t, s.Add("dp"))
	assert.False(t, s.Add("  "))
	s.Add("graphs")
	s.Add("greedy")
	assert.True(t, s.Remove("graphs"))
	assert.False(t, s.Remove("graphs"))
	assert.Equal(t, []string{"dp", "greedy"}, s.List())
	assert.True(t, s.Has("dp"))
	assert.Equal(t, 2, s.Len())
}
