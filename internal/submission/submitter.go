package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/testcase"
)

// ErrIncompleteTestcases matches *IncompleteError.
var ErrIncompleteTestcases = errors.New("incomplete testcases")

// IncompleteError lists the pairs that need confirmation before submit.
type IncompleteError struct {
	Items []testcase.Incomplete
}

func (e *IncompleteError) Error() string {
	return testcase.Describe(e.Items)
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteTestcases
}

// ProblemAPI is the backend that stores problems and assignment links.
// Linking an already linked problem and unlinking a missing link succeed.
type ProblemAPI interface {
	CreateProblem(ctx context.Context, payload *CreatePayload) (int64, error)
	UpdateProblem(ctx context.Context, problemID int64, meta MetadataPayload) error
	AddProblemToAssignment(ctx context.Context, assignmentID, problemID int64) error
	RemoveProblemFromAssignment(ctx context.Context, assignmentID, problemID int64) error
}

// Options carry the user's answers to submit-time confirmations.
type Options struct {
	ConfirmIncomplete bool
}

// Result describes a finished submission.
type Result struct {
	Mode draft.Mode `json:"mode"`
	// ProblemID is the problem that now holds the content.
	ProblemID int64 `json:"problem_id"`
	// ReplacedID is the problem unlinked from the assignment, if any.
	ReplacedID   int64 `json:"replaced_id,omitempty"`
	AssignmentID int64 `json:"assignment_id,omitempty"`
}

// Submitter validates, builds and dispatches draft submissions.
type Submitter struct {
	api      ProblemAPI
	defaults Defaults
	log      zerolog.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(api ProblemAPI, defaults Defaults, log zerolog.Logger) *Submitter {
	return &Submitter{
		api:      api,
		defaults: defaults,
		log:      log.With().Str("component", "submitter").Logger(),
	}
}

// Submit sends d. On error d is left as it was, except that a created
// replacement id is kept so a retry resumes at relinking.
func (s *Submitter) Submit(ctx context.Context, d *draft.Draft, opts Options) (Result, error) {
	req, err := Build(d, s.defaults)
	if err != nil {
		return Result{}, err
	}

	if req.Mode == draft.ModeMetadataOnly {
		if err := s.api.UpdateProblem(ctx, d.Origin.ProblemID, *req.Metadata); err != nil {
			return Result{}, fmt.Errorf("update problem %d: %w", d.Origin.ProblemID, err)
		}
		s.log.Info().Str("draft_id", d.ID).Int64("problem_id", d.Origin.ProblemID).Msg("Problem metadata updated")
		return Result{Mode: req.Mode, ProblemID: d.Origin.ProblemID}, nil
	}

	if incomplete := testcase.Validate(d.ParsedTestcases(), d.Testcases()); len(incomplete) > 0 && !opts.ConfirmIncomplete {
		return Result{}, &IncompleteError{Items: incomplete}
	}

	newID := d.ReplacementID()
	if newID == 0 {
		newID, err = s.api.CreateProblem(ctx, req.Create)
		if err != nil {
			return Result{}, fmt.Errorf("create problem: %w", err)
		}
		d.SetReplacementID(newID)
		s.log.Info().Str("draft_id", d.ID).Int64("problem_id", newID).Msg("Problem created")
	} else {
		s.log.Info().Str("draft_id", d.ID).Int64("problem_id", newID).Msg("Resuming relink of previously created problem")
	}

	res := Result{Mode: req.Mode, ProblemID: newID, AssignmentID: d.Origin.AssignmentID}
	if d.Origin.AssignmentID == 0 {
		return res, nil
	}

	if err := s.api.AddProblemToAssignment(ctx, d.Origin.AssignmentID, newID); err != nil {
		return Result{}, fmt.Errorf("link problem %d to assignment %d: %w", newID, d.Origin.AssignmentID, err)
	}
	if old := d.Origin.ProblemID; old != 0 && old != newID {
		if err := s.api.RemoveProblemFromAssignment(ctx, d.Origin.AssignmentID, old); err != nil {
			return Result{}, fmt.Errorf("unlink problem %d from assignment %d: %w", old, d.Origin.AssignmentID, err)
		}
		res.ReplacedID = old
	}
	return res, nil
}
