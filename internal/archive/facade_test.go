package archive

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

type fakeParser struct {
	raw          RawProblem
	err          error
	problemCalls int
	archiveCalls int
	lastHints    Hints
}

func (f *fakeParser) ParseProblem(_ context.Context, _ int64, hints Hints) (RawProblem, error) {
	f.problemCalls++
	f.lastHints = hints
	return f.raw, f.err
}

func (f *fakeParser) ParseArchive(_ context.Context, _ upload.File, hints Hints) (RawProblem, error) {
	f.archiveCalls++
	f.lastHints = hints
	return f.raw, f.err
}

type memCache struct {
	data map[int64]RawProblem
}

func (m *memCache) Get(_ context.Context, id int64) (RawProblem, bool, error) {
	raw, ok := m.data[id]
	return raw, ok, nil
}

func (m *memCache) Set(_ context.Context, id int64, raw RawProblem) error {
	m.data[id] = raw
	return nil
}

func (m *memCache) Invalidate(_ context.Context, id int64) error {
	delete(m.data, id)
	return nil
}

func strPtr(s string) *string { return &s }

func TestParseMergesOverBaseline(t *testing.T) {
	diff := 3
	parser := &fakeParser{raw: RawProblem{
		Title:       strPtr("  Sum  "),
		TimeLimit:   json.RawMessage(`2`),
		MemoryLimit: json.RawMessage(`"512"`),
		Tags:        json.RawMessage(`"math, greedy; math"`),
		Difficulty:  &diff,
		TestCases: []RawTestcase{
			{Name: "1", Input: "1 2", Output: "3", IsSample: true},
			{Name: "2", Input: "5 5", Output: "10", Type: "secret"},
			{Name: "1", Input: "dup", Output: "dup"},
		},
	}}
	f := NewFacade(parser, nil, zerolog.Nop())

	out := f.Parse(context.Background(), ExistingProblem(7), model.ProblemMeta{
		Title:       "Old",
		Description: "old statement",
		TimeLimit:   "1",
	})

	require.False(t, out.Unavailable)
	p := out.Problem
	assert.Equal(t, "Sum", p.Title)
	assert.Equal(t, "old statement", p.Description)
	assert.Equal(t, "2", p.TimeLimit)
	assert.Equal(t, "512", p.MemoryLimit)
	assert.Equal(t, []string{"math", "greedy"}, p.Tags)
	assert.Equal(t, model.Difficulty(3), p.Difficulty)
	require.Len(t, p.Testcases, 2)
	assert.Equal(t, model.TestcaseSample, p.Testcases[0].Type)
	assert.Equal(t, model.TestcaseSecret, p.Testcases[1].Type)
	assert.False(t, p.Testcases[0].IsNew)
	assert.Equal(t, DefaultHints, parser.lastHints)
}

func TestParseFailureFallsBackToBaseline(t *testing.T) {
	parser := &fakeParser{err: errors.New("boom")}
	f := NewFacade(parser, nil, zerolog.Nop())

	out := f.Parse(context.Background(), UploadedArchive(upload.FromBytes("p.zip", []byte("PK"))), model.ProblemMeta{
		Title: "Kept",
		Tags:  []string{" a ", "a", "b"},
	})

	assert.True(t, out.Unavailable)
	assert.EqualError(t, out.Reason, "boom")
	assert.Equal(t, "Kept", out.Problem.Title)
	assert.Equal(t, []string{"a", "b"}, out.Problem.Tags)
	assert.Equal(t, model.DifficultyDefault, out.Problem.Difficulty)
	assert.Empty(t, out.Problem.Testcases)
	assert.Equal(t, 1, parser.archiveCalls)
}

func TestParseWithoutTargetIsUnavailable(t *testing.T) {
	f := NewFacade(&fakeParser{}, nil, zerolog.Nop())
	out := f.Parse(context.Background(), Target{}, model.ProblemMeta{})
	assert.True(t, out.Unavailable)
	assert.ErrorIs(t, out.Reason, ErrNoTarget)
}

func TestParseUsesCacheForExistingProblems(t *testing.T) {
	parser := &fakeParser{raw: RawProblem{Title: strPtr("Cached")}}
	cache := &memCache{data: map[int64]RawProblem{}}
	f := NewFacade(parser, cache, zerolog.Nop())

	first := f.Parse(context.Background(), ExistingProblem(9), model.ProblemMeta{})
	second := f.Parse(context.Background(), ExistingProblem(9), model.ProblemMeta{})

	assert.Equal(t, "Cached", first.Problem.Title)
	assert.Equal(t, "Cached", second.Problem.Title)
	assert.Equal(t, 1, parser.problemCalls)
}

func TestInvalidateForcesFreshParse(t *testing.T) {
	parser := &fakeParser{raw: RawProblem{Title: strPtr("A+B")}}
	cache := &memCache{data: map[int64]RawProblem{}}
	f := NewFacade(parser, cache, zerolog.Nop())

	first := f.Parse(context.Background(), ExistingProblem(9), model.ProblemMeta{})
	require.Equal(t, "A+B", first.Problem.Title)

	parser.raw.Title = strPtr("Sum")
	f.Invalidate(context.Background(), 9, 0)

	again := f.Parse(context.Background(), ExistingProblem(9), model.ProblemMeta{Title: "Sum"})
	assert.Equal(t, "Sum", again.Problem.Title)
	assert.Equal(t, 2, parser.problemCalls)
}

func TestInvalidateWithoutCacheIsNoop(t *testing.T) {
	f := NewFacade(&fakeParser{}, nil, zerolog.Nop())
	assert.NotPanics(t, func() { f.Invalidate(context.Background(), 9) })
}

func TestParseDropsInvalidLimits(t *testing.T) {
	parser := &fakeParser{raw: RawProblem{
		TimeLimit:   json.RawMessage(`"2s"`),
		MemoryLimit: json.RawMessage(`-3`),
	}}
	f := NewFacade(parser, nil, zerolog.Nop())

	out := f.Parse(context.Background(), ExistingProblem(1), model.ProblemMeta{TimeLimit: "3", MemoryLimit: "abc"})
	assert.Equal(t, "3", out.Problem.TimeLimit)
	assert.Empty(t, out.Problem.MemoryLimit)

	parser.err = errors.New("parser down")
	out = f.Parse(context.Background(), ExistingProblem(1), model.ProblemMeta{TimeLimit: "0", MemoryLimit: "512"})
	assert.True(t, out.Unavailable)
	assert.Empty(t, out.Problem.TimeLimit)
	assert.Equal(t, "512", out.Problem.MemoryLimit)
}

func TestParseIgnoresOutOfRangeDifficulty(t *testing.T) {
	diff := 9
	f := NewFacade(&fakeParser{raw: RawProblem{Difficulty: &diff}}, nil, zerolog.Nop())
	out := f.Parse(context.Background(), ExistingProblem(1), model.ProblemMeta{Difficulty: 4})
	assert.Equal(t, model.Difficulty(4), out.Problem.Difficulty)
}

func TestNormalizeTags(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["dp"," graphs ","dp"]`, []string{"dp", "graphs"}},
		{"encoded array", `"[\"a\",\"b\"]"`, []string{"a", "b"}},
		{"delimited", `"x|y;z\nw"`, []string{"x", "y", "z", "w"}},
		{"numbers", `[1, 2.5]`, []string{"1", "2.5"}},
		{"null", `null`, nil},
		{"empty", ``, nil},
		{"blank string", `"  ,  "`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeTags(json.RawMessage(tc.raw)))
		})
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		raw    string
		memory bool
		want   string
	}{
		{`1.5`, false, "1.5"},
		{`" 256 "`, true, "256"},
		{`"0.25"`, false, "0.25"},
		{`0`, false, ""},
		{`{}`, false, ""},
		{`"-3"`, false, ""},
		{`-3`, true, ""},
		{`"0"`, true, ""},
		{`"2s"`, false, ""},
		{`"abc"`, true, ""},
		{`1.5`, true, ""},
	}
	for _, tc := range cases {
		valid := model.ValidTimeLimit
		if tc.memory {
			valid = model.ValidMemoryLimit
		}
		assert.Equal(t, tc.want, normalizeLimit(json.RawMessage(tc.raw), valid), tc.raw)
	}
}
