package submission

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

var defaults = Defaults{TimeLimit: "1", MemoryLimit: "256"}

func existingDraft(t *testing.T) *draft.Draft {
	t.Helper()
	return draft.New("d", draft.Origin{ProblemID: 10, AssignmentID: 5}, model.ParsedProblem{
		Title:       "A+B",
		Description: "Add.",
		TimeLimit:   "2",
		Tags:        []string{"math"},
		Difficulty:  3,
		Testcases: []model.TestcaseItem{
			{Name: "1", Input: "1 2", Output: "3", Type: model.TestcaseSample},
		},
	})
}

func TestBuildMetadataOnly(t *testing.T) {
	d := existingDraft(t)
	require.NoError(t, d.AddTag("easy"))

	req, err := Build(d, defaults)
	require.NoError(t, err)
	require.NotNil(t, req.Metadata)
	assert.Nil(t, req.Create)
	assert.Equal(t, MetadataPayload{
		Title:           "A+B",
		Tags:            `["math","easy"]`,
		Difficulty:      3,
		MetadataUpdated: true,
	}, *req.Metadata)
}

func TestBuildRequiresTitle(t *testing.T) {
	d := draft.New("d", draft.Origin{}, model.ParsedProblem{})
	_, err := Build(d, defaults)
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestBuildTimeLimitFallsBackToOriginal(t *testing.T) {
	d := existingDraft(t)
	require.NoError(t, d.Transform(draft.Confirmed(true)))
	require.NoError(t, d.SetTimeLimit(""))

	req, err := Build(d, defaults)
	require.NoError(t, err)
	tl, _ := req.Create.Value(FieldTimeLimit)
	assert.Equal(t, "2", tl)
	ml, _ := req.Create.Value(FieldMemoryLimit)
	assert.Equal(t, "256", ml)
}

func TestBuildTimeLimitFallsBackToDefault(t *testing.T) {
	d := draft.New("d", draft.Origin{}, model.ParsedProblem{Title: "T"})

	req, err := Build(d, Defaults{})
	require.NoError(t, err)
	tl, _ := req.Create.Value(FieldTimeLimit)
	assert.Equal(t, "1", tl)
}

func TestBuildCreateFieldsAndParts(t *testing.T) {
	d := existingDraft(t)
	require.NoError(t, d.Transform(draft.Confirmed(true)))
	require.NoError(t, d.SetInputFormat("Two ints."))
	require.NoError(t, d.AddTestcases([]model.TestcaseItem{
		{Name: "u1", Input: "5 5", Output: "10", Type: model.TestcaseSecret, IsNew: true},
		{Name: "u2", Input: "7", Type: model.TestcaseSecret, IsNew: true},
	}))

	req, err := Build(d, defaults)
	require.NoError(t, err)
	c := req.Create

	names := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		FieldTitle, FieldTags, FieldDifficulty, FieldDescription, FieldInputFormat,
		FieldOutputFormat, FieldTimeLimit, FieldMemoryLimit, FieldSampleInputs,
	}, names)

	desc, _ := c.Value(FieldDescription)
	assert.Contains(t, desc, "Add.")
	assert.Contains(t, desc, draft.HeadingInputFormat)
	assert.Contains(t, desc, draft.HeadingExamples)
	samples, _ := c.Value(FieldSampleInputs)
	assert.JSONEq(t, `[{"input":"1 2","output":"3"}]`, samples)

	var got [][2]string
	for _, p := range c.Files {
		got = append(got, [2]string{p.Field, p.Filename})
	}
	assert.Equal(t, [][2]string{
		{"testcase_0", "1.in"},
		{"testcase_1", "1.ans"},
		{"testcase_2", "u1.in"},
		{"testcase_3", "u1.ans"},
		{"testcase_4", "u2.in"},
	}, got)
}

func TestBuildDescriptionPriority(t *testing.T) {
	archive := upload.FromBytes("p.zip", []byte("PK"))
	statement := upload.FromBytes("statement.md", []byte("# S"))

	t.Run("description file wins", func(t *testing.T) {
		d := draft.New("d", draft.Origin{}, model.ParsedProblem{Title: "T", Description: "typed"})
		require.NoError(t, d.AttachArchive(archive))
		require.NoError(t, d.AttachDescriptionFile(statement))
		req, err := Build(d, defaults)
		require.NoError(t, err)
		_, ok := req.Create.Value(FieldDescription)
		assert.False(t, ok)
		assert.Equal(t, PartArchive, req.Create.Files[0].Field)
		assert.Equal(t, PartDescriptionFile, req.Create.Files[1].Field)
	})

	t.Run("archive statement when nothing typed", func(t *testing.T) {
		d := draft.New("d", draft.Origin{}, model.ParsedProblem{Title: "T"})
		require.NoError(t, d.AttachArchive(archive))
		req, err := Build(d, defaults)
		require.NoError(t, err)
		_, ok := req.Create.Value(FieldDescription)
		assert.False(t, ok)
	})

	t.Run("typed description", func(t *testing.T) {
		d := draft.New("d", draft.Origin{}, model.ParsedProblem{Title: "T", Description: "typed"})
		require.NoError(t, d.AttachArchive(archive))
		req, err := Build(d, defaults)
		require.NoError(t, err)
		desc, ok := req.Create.Value(FieldDescription)
		assert.True(t, ok)
		assert.Equal(t, "typed", desc)
	})
}

func TestCreatePayloadEncode(t *testing.T) {
	p := &CreatePayload{
		Fields: []FormField{{Name: FieldTitle, Value: "T"}},
		Files: []FilePart{{
			Field:    "testcase_0",
			Filename: "a.in",
			File:     upload.FromBytes("a.in", []byte("1 2")),
		}},
	}

	var buf bytes.Buffer
	ct, err := p.Encode(&buf)
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(ct)
	require.NoError(t, err)
	form, err := multipart.NewReader(&buf, params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"T"}, form.Value[FieldTitle])
	require.Len(t, form.File["testcase_0"], 1)
	fh := form.File["testcase_0"][0]
	assert.Equal(t, "a.in", fh.Filename)
	f, err := fh.Open()
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "1 2", string(data))
}

type fakeAPI struct {
	calls      []string
	nextID     int64
	createErr  error
	linkErr    error
	updateMeta *MetadataPayload
}

func (f *fakeAPI) CreateProblem(_ context.Context, _ *CreatePayload) (int64, error) {
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return 0, f.createErr
	}
	return f.nextID, nil
}

func (f *fakeAPI) UpdateProblem(_ context.Context, _ int64, meta MetadataPayload) error {
	f.calls = append(f.calls, "update")
	f.updateMeta = &meta
	return nil
}

func (f *fakeAPI) AddProblemToAssignment(_ context.Context, _, _ int64) error {
	f.calls = append(f.calls, "link")
	return f.linkErr
}

func (f *fakeAPI) RemoveProblemFromAssignment(_ context.Context, _, _ int64) error {
	f.calls = append(f.calls, "unlink")
	return nil
}

func TestSubmitMetadataOnlyUpdatesInPlace(t *testing.T) {
	api := &fakeAPI{}
	s := NewSubmitter(api, defaults, zerolog.Nop())

	res, err := s.Submit(context.Background(), existingDraft(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"update"}, api.calls)
	assert.Equal(t, int64(10), res.ProblemID)
	assert.True(t, api.updateMeta.MetadataUpdated)
}

func TestSubmitFullTransformReplacesProblem(t *testing.T) {
	api := &fakeAPI{nextID: 99}
	s := NewSubmitter(api, defaults, zerolog.Nop())
	d := existingDraft(t)
	require.NoError(t, d.Transform(draft.Confirmed(true)))

	res, err := s.Submit(context.Background(), d, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"create", "link", "unlink"}, api.calls)
	assert.Equal(t, Result{Mode: draft.ModeFullTransform, ProblemID: 99, ReplacedID: 10, AssignmentID: 5}, res)
}

func TestSubmitRequiresConfirmationForIncomplete(t *testing.T) {
	api := &fakeAPI{nextID: 99}
	s := NewSubmitter(api, defaults, zerolog.Nop())
	d := draft.New("d", draft.Origin{}, model.ParsedProblem{Title: "T"})
	require.NoError(t, d.AddTestcases([]model.TestcaseItem{{Name: "half", Input: "1"}}))

	_, err := s.Submit(context.Background(), d, Options{})
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.ErrorIs(t, err, ErrIncompleteTestcases)
	assert.Equal(t, "half", inc.Items[0].Name)
	assert.Empty(t, api.calls)

	_, err = s.Submit(context.Background(), d, Options{ConfirmIncomplete: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"create"}, api.calls)
}

func TestSubmitRetryAfterLinkFailureSkipsCreate(t *testing.T) {
	api := &fakeAPI{nextID: 99, linkErr: errors.New("link down")}
	s := NewSubmitter(api, defaults, zerolog.Nop())
	d := existingDraft(t)
	require.NoError(t, d.Transform(draft.Confirmed(true)))

	_, err := s.Submit(context.Background(), d, Options{})
	require.Error(t, err)
	assert.Equal(t, int64(99), d.ReplacementID())

	api.linkErr = nil
	api.calls = nil
	res, err := s.Submit(context.Background(), d, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"link", "unlink"}, api.calls)
	assert.Equal(t, int64(99), res.ProblemID)
}

func TestSubmitAfterLinkFailureRefusesEdits(t *testing.T) {
	api := &fakeAPI{nextID: 99, linkErr: errors.New("link down")}
	s := NewSubmitter(api, defaults, zerolog.Nop())
	d := existingDraft(t)
	require.NoError(t, d.Transform(draft.Confirmed(true)))

	_, err := s.Submit(context.Background(), d, Options{})
	require.Error(t, err)

	assert.ErrorIs(t, d.SetTitle("Sum"), draft.ErrRelinkPending)
	assert.ErrorIs(t, d.SetTimeLimit("5"), draft.ErrRelinkPending)
	assert.ErrorIs(t, d.AddTestcases([]model.TestcaseItem{
		{Name: "late", Input: "1 1", Output: "2", IsNew: true},
	}), draft.ErrRelinkPending)

	req, err := Build(d, defaults)
	require.NoError(t, err)
	title, _ := req.Create.Value(FieldTitle)
	assert.Equal(t, "A+B", title)
	tl, _ := req.Create.Value(FieldTimeLimit)
	assert.Equal(t, "2", tl)
	assert.Len(t, req.Create.Files, 2)
}

func TestBuildKeepsFormatsAndSamplesWithArchiveStatement(t *testing.T) {
	d := draft.New("d", draft.Origin{}, model.ParsedProblem{Title: "T"})
	require.NoError(t, d.AttachArchive(upload.FromBytes("p.zip", []byte("PK"))))
	require.NoError(t, d.SetInputFormat("Two ints."))
	require.NoError(t, d.SetOutputFormat("Their sum."))
	require.NoError(t, d.SetSamples([]model.SamplePair{{Input: "1 2", Output: "3"}}))

	req, err := Build(d, defaults)
	require.NoError(t, err)
	c := req.Create

	_, hasDesc := c.Value(FieldDescription)
	assert.False(t, hasDesc)
	in, _ := c.Value(FieldInputFormat)
	assert.Equal(t, "Two ints.", in)
	out, _ := c.Value(FieldOutputFormat)
	assert.Equal(t, "Their sum.", out)
	samples, _ := c.Value(FieldSampleInputs)
	assert.JSONEq(t, `[{"input":"1 2","output":"3"}]`, samples)
}

func TestSubmitCreateFailureLeavesDraftIntact(t *testing.T) {
	api := &fakeAPI{createErr: errors.New("quota exceeded")}
	s := NewSubmitter(api, defaults, zerolog.Nop())
	d := draft.New("d", draft.Origin{AssignmentID: 5}, model.ParsedProblem{Title: "T"})

	_, err := s.Submit(context.Background(), d, Options{})
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Zero(t, d.ReplacementID())
	assert.Equal(t, "T", d.Title())
}
