package bulk

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/submission"
)

// API is the part of the problem backend a bulk run needs.
type API interface {
	CreateProblem(ctx context.Context, payload *submission.CreatePayload) (int64, error)
	AddProblemToAssignment(ctx context.Context, assignmentID, problemID int64) error
}

// EventKind is the stage a progress event reports.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventCreated  EventKind = "created"
	EventFailed   EventKind = "failed"
	EventFinished EventKind = "finished"
)

// Event reports progress of a run. Index is -1 for EventFinished.
type Event struct {
	Kind      EventKind `json:"kind"`
	Index     int       `json:"index"`
	Title     string    `json:"title,omitempty"`
	ProblemID int64     `json:"problem_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Created   int       `json:"created"`
	Total     int       `json:"total"`
}

// Created is one problem a run made.
type Created struct {
	Index int    `json:"index"`
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Result is the outcome of a run. Created problems are never rolled back.
type Result struct {
	Created  []Created `json:"created"`
	FailedAt *int      `json:"failed_at,omitempty"`
	Err      error     `json:"-"`
	Total    int       `json:"total"`
}

// Options tune a run.
type Options struct {
	// AssignmentID links every created problem when non-zero. A failed link
	// fails the row.
	AssignmentID int64
	Defaults     submission.Defaults
	Progress     func(Event)
}

// Orchestrator creates rows sequentially and stops at the first failure.
type Orchestrator struct {
	api        API
	maxArchive int64
	log        zerolog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(api API, maxArchiveBytes int64, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		api:        api,
		maxArchive: maxArchiveBytes,
		log:        log.With().Str("component", "bulk_orchestrator").Logger(),
	}
}

// CreateAll validates every row, then creates them one at a time. The
// returned error is a *ValidationError when nothing was attempted; creation
// failures are reported through Result.
func (o *Orchestrator) CreateAll(ctx context.Context, rows []Row, opts Options) (Result, error) {
	if err := ValidateRows(rows, o.maxArchive); err != nil {
		return Result{}, err
	}

	res := Result{Created: []Created{}, Total: len(rows)}
	emit := func(ev Event) {
		if opts.Progress == nil {
			return
		}
		ev.Created = len(res.Created)
		ev.Total = len(rows)
		opts.Progress(ev)
	}

	for i, row := range rows {
		emit(Event{Kind: EventStarted, Index: i, Title: row.Title})

		id, err := o.createRow(ctx, row, opts)
		if err != nil {
			at := i
			res.FailedAt = &at
			res.Err = err
			o.log.Warn().Err(err).
				Int("row", i).
				Int("created", len(res.Created)).
				Int64("unlinked_problem_id", id).
				Msg("Bulk creation stopped at failing row")
			emit(Event{Kind: EventFailed, Index: i, Title: row.Title, Error: err.Error()})
			break
		}

		res.Created = append(res.Created, Created{Index: i, ID: id, Title: row.Title})
		emit(Event{Kind: EventCreated, Index: i, Title: row.Title, ProblemID: id})
	}

	emit(Event{Kind: EventFinished, Index: -1})
	return res, nil
}

func (o *Orchestrator) createRow(ctx context.Context, row Row, opts Options) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d := draft.New(uuid.NewString(), draft.Origin{AssignmentID: opts.AssignmentID}, model.ParsedProblem{Title: row.Title})
	if err := d.AttachArchive(*row.Archive); err != nil {
		return 0, err
	}
	if row.DescriptionFile != nil {
		if err := d.AttachDescriptionFile(*row.DescriptionFile); err != nil {
			return 0, err
		}
	}

	req, err := submission.Build(d, opts.Defaults)
	if err != nil {
		return 0, err
	}

	id, err := o.api.CreateProblem(ctx, req.Create)
	if err != nil {
		return 0, fmt.Errorf("create %q: %w", row.Title, err)
	}
	if opts.AssignmentID != 0 {
		if err := o.api.AddProblemToAssignment(ctx, opts.AssignmentID, id); err != nil {
			return id, fmt.Errorf("link problem %d to assignment %d: %w", id, opts.AssignmentID, err)
		}
	}
	return id, nil
}
