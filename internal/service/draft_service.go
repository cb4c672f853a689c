package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/archive"
	"github.com/stemsi/exstem-authoring/internal/client"
	"github.com/stemsi/exstem-authoring/internal/config"
	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/submission"
	"github.com/stemsi/exstem-authoring/internal/testcase"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// OpenRequest describes the draft to open. A zero ProblemID opens a creation
// draft.
type OpenRequest struct {
	ProblemID    int64             `json:"problem_id" binding:"gte=0"`
	AssignmentID int64             `json:"assignment_id" binding:"gte=0"`
	Baseline     model.ProblemMeta `json:"baseline"`
}

// Selection is a rune range in the description.
type Selection struct {
	Start int `json:"start" binding:"gte=0"`
	End   int `json:"end" binding:"gte=0"`
}

// UpdateRequest changes draft fields. Nil fields are left alone.
type UpdateRequest struct {
	Title        *string             `json:"title"`
	Difficulty   *int                `json:"difficulty"`
	Tags         []string            `json:"tags"`
	TagsText     *string             `json:"tags_text"`
	AddTags      []string            `json:"add_tags"`
	RemoveTags   []string            `json:"remove_tags"`
	Description  *string             `json:"description"`
	Selection    *Selection          `json:"selection"`
	InsertText   *string             `json:"insert_text"`
	InputFormat  *string             `json:"input_format"`
	OutputFormat *string             `json:"output_format"`
	TimeLimit    *string             `json:"time_limit"`
	MemoryLimit  *string             `json:"memory_limit"`
	SampleInputs *[]model.SamplePair `json:"sample_inputs"`
	ReseedSample bool                `json:"reseed_samples"`
}

// fields lists the draft fields the request touches.
func (r UpdateRequest) fields() []draft.Field {
	var out []draft.Field
	add := func(set bool, f draft.Field) {
		if set {
			out = append(out, f)
		}
	}
	add(r.Title != nil, draft.FieldTitle)
	add(r.Difficulty != nil, draft.FieldDifficulty)
	add(r.Tags != nil || r.TagsText != nil || len(r.AddTags) > 0 || len(r.RemoveTags) > 0, draft.FieldTags)
	add(r.Description != nil || r.Selection != nil || r.InsertText != nil, draft.FieldDescription)
	add(r.InputFormat != nil, draft.FieldInputFormat)
	add(r.OutputFormat != nil, draft.FieldOutputFormat)
	add(r.TimeLimit != nil, draft.FieldTimeLimit)
	add(r.MemoryLimit != nil, draft.FieldMemoryLimit)
	add(r.SampleInputs != nil || r.ReseedSample, draft.FieldSamples)
	return out
}

// FormatRequest applies a formatting command, optionally after selecting.
type FormatRequest struct {
	Command   draft.Command `json:"command" binding:"required"`
	Value     string        `json:"value"`
	Selection *Selection    `json:"selection"`
}

// TestcaseUpdate edits a user-added testcase.
type TestcaseUpdate struct {
	Input  *string              `json:"input"`
	Output *string              `json:"output"`
	Type   *model.TestcaseType `json:"type" binding:"omitempty,oneof=sample secret"`
}

// AttachResult reports what a testcase upload did.
type AttachResult struct {
	Draft    DraftView            `json:"draft"`
	Added    []string             `json:"added"`
	Rejected []testcase.Rejection `json:"rejected"`
	Ignored  []string             `json:"ignored"`
}

// DraftService runs authoring sessions.
type DraftService struct {
	cfg       *config.Config
	store     *DraftStore
	uploads   *upload.Store
	facade    *archive.Facade
	extractor *testcase.Extractor
	submitter *submission.Submitter
	log       zerolog.Logger
}

// NewDraftService creates a new DraftService.
func NewDraftService(
	cfg *config.Config,
	store *DraftStore,
	uploads *upload.Store,
	facade *archive.Facade,
	extractor *testcase.Extractor,
	submitter *submission.Submitter,
	log zerolog.Logger,
) *DraftService {
	return &DraftService{
		cfg:       cfg,
		store:     store,
		uploads:   uploads,
		facade:    facade,
		extractor: extractor,
		submitter: submitter,
		log:       log.With().Str("component", "draft_service").Logger(),
	}
}

// Open starts a session for an existing problem or a blank creation draft.
func (s *DraftService) Open(ctx context.Context, author string, req OpenRequest) (DraftView, error) {
	origin := draft.Origin{ProblemID: req.ProblemID, AssignmentID: req.AssignmentID}

	var problem model.ParsedProblem
	unavailable := false
	if origin.Creating() {
		problem = model.ParsedProblem{
			Title:       strings.TrimSpace(req.Baseline.Title),
			Description: req.Baseline.Description,
			TimeLimit:   req.Baseline.TimeLimit,
			MemoryLimit: req.Baseline.MemoryLimit,
			Tags:        archive.NormalizeTagList(req.Baseline.Tags),
			Difficulty:  req.Baseline.Difficulty,
		}
	} else {
		out := s.facade.Parse(ctx, archive.ExistingProblem(req.ProblemID), req.Baseline)
		problem, unavailable = out.Problem, out.Unavailable
	}

	d := draft.New(uuid.NewString(), origin, problem)
	if unavailable {
		d.MarkParseUnavailable()
	}
	s.store.Open(d, author)
	return viewOf(d), nil
}

// OpenArchive starts a creation draft from an uploaded archive. The archive
// is kept for the session and sent with the submission.
func (s *DraftService) OpenArchive(ctx context.Context, author string, req OpenRequest, zip upload.File, descFile *upload.File) (DraftView, error) {
	if err := s.checkArchive(zip, descFile); err != nil {
		return DraftView{}, err
	}

	stored, paths, err := s.keep(zip, descFile)
	if err != nil {
		return DraftView{}, err
	}

	out := s.facade.Parse(ctx, archive.UploadedArchive(stored[0]), req.Baseline)
	d := draft.New(uuid.NewString(), draft.Origin{AssignmentID: req.AssignmentID}, out.Problem)
	if out.Unavailable {
		d.MarkParseUnavailable()
	}
	if err := d.AttachArchive(stored[0]); err != nil {
		s.uploads.Remove(paths...)
		return DraftView{}, err
	}
	if len(stored) > 1 {
		if err := d.AttachDescriptionFile(stored[1]); err != nil {
			s.uploads.Remove(paths...)
			return DraftView{}, err
		}
	}

	s.store.Open(d, author, paths...)
	return viewOf(d), nil
}

// AttachArchive replaces the archive and description file sent with a
// full submission. Parsed testcases are left as loaded.
func (s *DraftService) AttachArchive(author, id string, zip upload.File, descFile *upload.File) (DraftView, error) {
	if err := s.checkArchive(zip, descFile); err != nil {
		return DraftView{}, err
	}
	sess, err := s.store.Get(id, author)
	if err != nil {
		return DraftView{}, err
	}

	var view DraftView
	err = sess.Do(func(d *draft.Draft) error {
		if err := d.CheckEdit(draft.FieldArchive); err != nil {
			return err
		}
		stored, paths, err := s.keep(zip, descFile)
		if err != nil {
			return err
		}
		for _, p := range paths {
			sess.track(p)
		}
		if err := d.AttachArchive(stored[0]); err != nil {
			return err
		}
		if len(stored) > 1 {
			if err := d.AttachDescriptionFile(stored[1]); err != nil {
				return err
			}
		}
		view = viewOf(d)
		return nil
	})
	return view, err
}

// Get returns the current view of a draft.
func (s *DraftService) Get(author, id string) (DraftView, error) {
	return s.with(author, id, func(*draft.Draft) error { return nil })
}

// Update applies field changes. Read-only fields are refused before anything
// changes.
func (s *DraftService) Update(author, id string, req UpdateRequest) (DraftView, error) {
	return s.with(author, id, func(d *draft.Draft) error {
		for _, f := range req.fields() {
			if err := d.CheckEdit(f); err != nil {
				return err
			}
		}

		// Validated fields first so a bad value leaves the rest untouched.
		if req.Difficulty != nil {
			if err := d.SetDifficulty(model.Difficulty(*req.Difficulty)); err != nil {
				return err
			}
		}
		if req.TimeLimit != nil {
			if err := d.SetTimeLimit(*req.TimeLimit); err != nil {
				return err
			}
		}
		if req.MemoryLimit != nil {
			if err := d.SetMemoryLimit(*req.MemoryLimit); err != nil {
				return err
			}
		}
		if req.Selection != nil {
			if err := d.SelectDescription(req.Selection.Start, req.Selection.End); err != nil {
				return err
			}
		}

		steps := []func() error{
			func() error { return optional(req.Title, d.SetTitle) },
			func() error {
				if req.Tags != nil {
					return d.SetTags(req.Tags)
				}
				if req.TagsText != nil {
					return d.SetTags(archive.NormalizeTagString(*req.TagsText))
				}
				return nil
			},
			func() error { return each(req.AddTags, d.AddTag) },
			func() error { return each(req.RemoveTags, d.RemoveTag) },
			func() error { return optional(req.Description, d.SetDescription) },
			func() error { return optional(req.InsertText, d.InsertDescription) },
			func() error { return optional(req.InputFormat, d.SetInputFormat) },
			func() error { return optional(req.OutputFormat, d.SetOutputFormat) },
			func() error {
				if req.SampleInputs != nil {
					return d.SetSamples(*req.SampleInputs)
				}
				return nil
			},
			func() error {
				if req.ReseedSample {
					return d.ReseedSamples()
				}
				return nil
			},
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Format applies a formatting command to the description.
func (s *DraftService) Format(author, id string, req FormatRequest) (DraftView, error) {
	return s.with(author, id, func(d *draft.Draft) error {
		if req.Selection != nil {
			if err := d.SelectDescription(req.Selection.Start, req.Selection.End); err != nil {
				return err
			}
		}
		return d.FormatDescription(req.Command, req.Value)
	})
}

// Transform switches the draft to FullTransform once confirmed.
func (s *DraftService) Transform(author, id string, confirm bool) (DraftView, error) {
	return s.with(author, id, func(d *draft.Draft) error {
		if err := d.Transform(draft.Confirmed(confirm)); err != nil {
			return err
		}
		s.log.Info().Str("draft_id", id).Msg("Draft switched to full transform")
		return nil
	})
}

// AttachTestcases extracts testcase pairs from files and adds them.
// Colliding names are reported, not added.
func (s *DraftService) AttachTestcases(ctx context.Context, author, id string, files []upload.File) (AttachResult, error) {
	sess, err := s.store.Get(id, author)
	if err != nil {
		return AttachResult{}, err
	}

	var res AttachResult
	err = sess.Do(func(d *draft.Draft) error {
		if err := d.CheckEdit(draft.FieldTestcases); err != nil {
			return err
		}
		extracted, err := s.extractor.Extract(ctx, files, d.ExistingNames())
		if err != nil {
			return err
		}
		if err := d.AddTestcases(extracted.Items); err != nil {
			return err
		}

		res.Added = make([]string, 0, len(extracted.Items))
		for _, it := range extracted.Items {
			res.Added = append(res.Added, it.Name)
		}
		res.Rejected = extracted.Rejected
		res.Ignored = extracted.Ignored
		res.Draft = viewOf(d)
		return nil
	})
	return res, err
}

// UpdateTestcase edits a user-added testcase.
func (s *DraftService) UpdateTestcase(author, id, name string, req TestcaseUpdate) (DraftView, error) {
	return s.with(author, id, func(d *draft.Draft) error {
		return d.UpdateTestcase(name, draft.TestcasePatch{Input: req.Input, Output: req.Output, Type: req.Type})
	})
}

// RemoveTestcase drops a user-added testcase.
func (s *DraftService) RemoveTestcase(author, id, name string) (DraftView, error) {
	return s.with(author, id, func(d *draft.Draft) error {
		return d.RemoveTestcase(name)
	})
}

// Validate lists incomplete testcase pairs, parsed first.
func (s *DraftService) Validate(author, id string) ([]testcase.Incomplete, error) {
	var out []testcase.Incomplete
	_, err := s.with(author, id, func(d *draft.Draft) error {
		out = testcase.Validate(d.ParsedTestcases(), d.Testcases())
		return nil
	})
	return out, err
}

// Submit sends the draft and closes the session on success. The upstream
// calls are detached from ctx's cancellation so a dropped client does not
// abort a half-done replacement.
func (s *DraftService) Submit(ctx context.Context, author, id, token string, opts submission.Options) (submission.Result, error) {
	sess, err := s.store.Get(id, author)
	if err != nil {
		return submission.Result{}, err
	}

	upstream, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UpstreamTimeout)
	defer cancel()
	upstream = client.WithToken(upstream, token)

	var res submission.Result
	err = sess.Do(func(d *draft.Draft) error {
		r, err := s.submitter.Submit(upstream, d, opts)
		res = r
		return err
	})
	if err != nil {
		if !errors.Is(err, submission.ErrIncompleteTestcases) && !errors.Is(err, ErrDraftNotFound) {
			s.log.Warn().Err(err).Str("draft_id", id).Msg("Submission failed, draft kept for retry")
		}
		return submission.Result{}, err
	}
	s.facade.Invalidate(upstream, res.ProblemID, res.ReplacedID)

	if sess.Closed() {
		s.log.Info().Str("draft_id", id).Msg("Submission finished after draft was closed")
		return res, nil
	}
	s.store.Close(id)
	return res, nil
}

// Close discards the session.
func (s *DraftService) Close(author, id string) error {
	if _, err := s.store.Get(id, author); err != nil {
		return err
	}
	s.store.Close(id)
	return nil
}

func (s *DraftService) with(author, id string, fn func(d *draft.Draft) error) (DraftView, error) {
	sess, err := s.store.Get(id, author)
	if err != nil {
		return DraftView{}, err
	}
	var view DraftView
	err = sess.Do(func(d *draft.Draft) error {
		if err := fn(d); err != nil {
			return err
		}
		view = viewOf(d)
		return nil
	})
	return view, err
}

func (s *DraftService) checkArchive(zip upload.File, descFile *upload.File) error {
	if !upload.HasExt(zip.Name, model.ExtArchive) {
		return fmt.Errorf("%w: %s (want %s)", upload.ErrUnsupportedFileType, zip.Name, model.ExtArchive)
	}
	if zip.Size > s.cfg.MaxArchiveBytes {
		return fmt.Errorf("%w: %s is %d bytes (max: %d)", upload.ErrFileTooLarge, zip.Name, zip.Size, s.cfg.MaxArchiveBytes)
	}
	if descFile != nil && !upload.HasExt(descFile.Name, model.DescriptionExtensions...) {
		return fmt.Errorf("%w: %s (want one of %s)", upload.ErrUnsupportedFileType, descFile.Name,
			strings.Join(model.DescriptionExtensions, ", "))
	}
	return nil
}

// keep stores the archive and optional description file so they outlive the
// request. The first returned file is the archive.
func (s *DraftService) keep(zip upload.File, descFile *upload.File) ([]upload.File, []string, error) {
	files := []upload.File{zip}
	if descFile != nil {
		files = append(files, *descFile)
	}

	stored := make([]upload.File, 0, len(files))
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path, err := s.uploads.Save(f)
		if err != nil {
			s.uploads.Remove(paths...)
			return nil, nil, fmt.Errorf("store %s: %w", f.Name, err)
		}
		paths = append(paths, path)
		kept, err := s.uploads.Open(path, f.Name)
		if err != nil {
			s.uploads.Remove(paths...)
			return nil, nil, err
		}
		stored = append(stored, kept)
	}
	return stored, paths, nil
}

func optional(v *string, set func(string) error) error {
	if v == nil {
		return nil
	}
	return set(*v)
}

func each(values []string, apply func(string) error) error {
	for _, v := range values {
		if err := apply(v); err != nil {
			return err
		}
	}
	return nil
}

// Owns reports whether author may use draft id.
func (s *DraftService) Owns(author, id string) error {
	_, err := s.store.Get(id, author)
	return err
}
