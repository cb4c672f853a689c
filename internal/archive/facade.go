// Package archive wraps the external archive parser. Parse failures never
// escape as errors: callers always get a usable problem built from whatever
// baseline metadata they already had.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// ErrNoTarget is reported when neither a problem id nor an archive is given.
var ErrNoTarget = errors.New("no problem id or archive to parse")

// Parser is the remote archive-parsing service.
type Parser interface {
	ParseProblem(ctx context.Context, problemID int64, hints Hints) (RawProblem, error)
	ParseArchive(ctx context.Context, archive upload.File, hints Hints) (RawProblem, error)
}

// Cache stores parser output for existing problems. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, problemID int64) (RawProblem, bool, error)
	Set(ctx context.Context, problemID int64, raw RawProblem) error
	Invalidate(ctx context.Context, problemID int64) error
}

// Target is either an existing problem or a freshly uploaded archive.
type Target struct {
	ProblemID int64
	Archive   *upload.File
}

// ExistingProblem targets the stored archive of a problem.
func ExistingProblem(id int64) Target {
	return Target{ProblemID: id}
}

// UploadedArchive targets a new archive.
func UploadedArchive(f upload.File) Target {
	return Target{Archive: &f}
}

func (t Target) String() string {
	if t.Archive != nil {
		return "archive:" + t.Archive.Name
	}
	return fmt.Sprintf("problem:%d", t.ProblemID)
}

// Outcome is always usable. When Unavailable is set, Problem holds only the
// baseline metadata and no parsed testcases.
type Outcome struct {
	Problem     model.ParsedProblem
	Unavailable bool
	Reason      error
}

// Facade turns parser calls into Outcomes.
type Facade struct {
	parser Parser
	cache  Cache
	hints  Hints
	log    zerolog.Logger
}

// NewFacade creates a Facade. cache may be nil.
func NewFacade(parser Parser, cache Cache, log zerolog.Logger) *Facade {
	return &Facade{
		parser: parser,
		cache:  cache,
		hints:  DefaultHints,
		log:    log.With().Str("component", "parse_facade").Logger(),
	}
}

// Parse runs the parser for target and merges its result over baseline.
func (f *Facade) Parse(ctx context.Context, target Target, baseline model.ProblemMeta) Outcome {
	raw, err := f.fetch(ctx, target)
	if err != nil {
		f.log.Warn().Err(err).Str("target", target.String()).Msg("Archive parse unavailable, using baseline metadata")
		return Outcome{
			Problem:     fromBaseline(baseline),
			Unavailable: true,
			Reason:      err,
		}
	}

	problem, dropped := merge(raw, baseline)
	if len(dropped) > 0 {
		f.log.Warn().
			Str("target", target.String()).
			Strs("testcases", dropped).
			Msg("Parser returned duplicate testcase names, kept the first of each")
	}
	return Outcome{Problem: problem}
}

// Invalidate forgets cached parser output for problems whose stored content
// changed, so the next Parse asks the parser again.
func (f *Facade) Invalidate(ctx context.Context, problemIDs ...int64) {
	if f.cache == nil {
		return
	}
	for _, id := range problemIDs {
		if id <= 0 {
			continue
		}
		if err := f.cache.Invalidate(ctx, id); err != nil {
			f.log.Warn().Err(err).Int64("problem_id", id).Msg("Parse cache invalidation failed")
		}
	}
}

func (f *Facade) fetch(ctx context.Context, target Target) (RawProblem, error) {
	if target.Archive != nil {
		return f.parser.ParseArchive(ctx, *target.Archive, f.hints)
	}
	if target.ProblemID <= 0 {
		return RawProblem{}, ErrNoTarget
	}

	if f.cache != nil {
		raw, ok, err := f.cache.Get(ctx, target.ProblemID)
		if err != nil {
			f.log.Warn().Err(err).Int64("problem_id", target.ProblemID).Msg("Parse cache read failed")
		} else if ok {
			return raw, nil
		}
	}

	raw, err := f.parser.ParseProblem(ctx, target.ProblemID, f.hints)
	if err != nil {
		return RawProblem{}, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, target.ProblemID, raw); err != nil {
			f.log.Warn().Err(err).Int64("problem_id", target.ProblemID).Msg("Parse cache write failed")
		}
	}
	return raw, nil
}

func fromBaseline(b model.ProblemMeta) model.ParsedProblem {
	diff := b.Difficulty
	if !diff.Valid() {
		diff = model.DifficultyDefault
	}
	return model.ParsedProblem{
		Title:       strings.TrimSpace(b.Title),
		Description: b.Description,
		TimeLimit:   validLimit(b.TimeLimit, model.ValidTimeLimit),
		MemoryLimit: validLimit(b.MemoryLimit, model.ValidMemoryLimit),
		Tags:        NormalizeTagList(b.Tags),
		Difficulty:  diff,
	}
}

// merge prefers parser values, then baseline, then defaults. It returns the
// names of testcases dropped for repeating an earlier name.
func merge(raw RawProblem, b model.ProblemMeta) (model.ParsedProblem, []string) {
	p := fromBaseline(b)

	if raw.Title != nil && strings.TrimSpace(*raw.Title) != "" {
		p.Title = strings.TrimSpace(*raw.Title)
	}
	if raw.Description != nil && strings.TrimSpace(*raw.Description) != "" {
		p.Description = *raw.Description
	}
	if tl := normalizeLimit(raw.TimeLimit, model.ValidTimeLimit); tl != "" {
		p.TimeLimit = tl
	}
	if ml := normalizeLimit(raw.MemoryLimit, model.ValidMemoryLimit); ml != "" {
		p.MemoryLimit = ml
	}
	if tags := NormalizeTags(raw.Tags); len(tags) > 0 {
		p.Tags = tags
	}
	if raw.Difficulty != nil && model.Difficulty(*raw.Difficulty).Valid() {
		p.Difficulty = model.Difficulty(*raw.Difficulty)
	}

	var dropped []string
	seen := make(map[string]struct{}, len(raw.TestCases))
	for _, tc := range raw.TestCases {
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			dropped = append(dropped, name)
			continue
		}
		seen[name] = struct{}{}

		typ := model.TestcaseSecret
		if tc.IsSample || strings.EqualFold(tc.Type, string(model.TestcaseSample)) {
			typ = model.TestcaseSample
		}
		p.Testcases = append(p.Testcases, model.TestcaseItem{
			Name:   name,
			Input:  tc.Input,
			Output: tc.Output,
			Type:   typ,
		})
	}
	return p, dropped
}
