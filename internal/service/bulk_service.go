package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/bulk"
	"github.com/stemsi/exstem-authoring/internal/client"
	"github.com/stemsi/exstem-authoring/internal/config"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/repository"
	"github.com/stemsi/exstem-authoring/internal/submission"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// ErrBulkRunNotFound is returned for unknown runs and runs of other authors.
var ErrBulkRunNotFound = errors.New("bulk run not found")

// BulkJob is the queued unit of work for the bulk worker.
type BulkJob struct {
	RunID        string       `json:"run_id"`
	Author       string       `json:"author"`
	Token        string       `json:"token"`
	AssignmentID int64        `json:"assignment_id"`
	Rows         []BulkJobRow `json:"rows"`
}

// BulkJobRow points at the stored copies of one row's files.
type BulkJobRow struct {
	Title           string `json:"title"`
	ArchivePath     string `json:"archive_path"`
	ArchiveName     string `json:"archive_name"`
	DescriptionPath string `json:"description_path,omitempty"`
	DescriptionName string `json:"description_name,omitempty"`
}

func (j BulkJob) paths() []string {
	out := make([]string, 0, len(j.Rows)*2)
	for _, r := range j.Rows {
		out = append(out, r.ArchivePath)
		if r.DescriptionPath != "" {
			out = append(out, r.DescriptionPath)
		}
	}
	return out
}

// BulkEvent is a progress event published for a run.
type BulkEvent struct {
	RunID string `json:"run_id"`
	bulk.Event
}

// BulkService queues bulk creation runs and executes them.
type BulkService struct {
	cfg     *config.Config
	repo    *repository.BulkRunRepository
	rdb     *redis.Client
	uploads *upload.Store
	orch    *bulk.Orchestrator
	log     zerolog.Logger
}

// NewBulkService creates a new BulkService.
func NewBulkService(
	cfg *config.Config,
	repo *repository.BulkRunRepository,
	rdb *redis.Client,
	uploads *upload.Store,
	orch *bulk.Orchestrator,
	log zerolog.Logger,
) *BulkService {
	return &BulkService{
		cfg:     cfg,
		repo:    repo,
		rdb:     rdb,
		uploads: uploads,
		orch:    orch,
		log:     log.With().Str("component", "bulk_service").Logger(),
	}
}

// Enqueue validates every row, stores the files and queues the run. Nothing
// is queued when any row is invalid.
func (s *BulkService) Enqueue(ctx context.Context, author, token string, assignmentID int64, rows []bulk.Row) (*model.BulkRun, error) {
	if err := bulk.ValidateRows(rows, s.cfg.MaxArchiveBytes); err != nil {
		return nil, err
	}

	job := BulkJob{
		RunID:        uuid.NewString(),
		Author:       author,
		Token:        token,
		AssignmentID: assignmentID,
		Rows:         make([]BulkJobRow, 0, len(rows)),
	}
	for _, r := range rows {
		jr := BulkJobRow{Title: r.Title, ArchiveName: r.Archive.Name}
		path, err := s.uploads.Save(*r.Archive)
		if err != nil {
			s.uploads.Remove(job.paths()...)
			return nil, fmt.Errorf("store %s: %w", r.Archive.Name, err)
		}
		jr.ArchivePath = path
		if r.DescriptionFile != nil {
			path, err := s.uploads.Save(*r.DescriptionFile)
			if err != nil {
				s.uploads.Remove(append(job.paths(), jr.ArchivePath)...)
				return nil, fmt.Errorf("store %s: %w", r.DescriptionFile.Name, err)
			}
			jr.DescriptionPath = path
			jr.DescriptionName = r.DescriptionFile.Name
		}
		job.Rows = append(job.Rows, jr)
	}

	run := &model.BulkRun{
		ID:      uuid.MustParse(job.RunID),
		Author:  author,
		Status:  model.BulkRunQueued,
		Total:   len(rows),
		Created: []model.BulkCreatedProblem{},
	}
	if assignmentID != 0 {
		run.AssignmentID = &assignmentID
	}
	if err := s.repo.Create(ctx, run); err != nil {
		s.uploads.Remove(job.paths()...)
		return nil, fmt.Errorf("create bulk run: %w", err)
	}

	data, err := json.Marshal(job)
	if err != nil {
		s.uploads.Remove(job.paths()...)
		return nil, err
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.BulkCreateQueue, data).Err(); err != nil {
		s.uploads.Remove(job.paths()...)
		msg := "queue unavailable"
		_ = s.repo.Finish(ctx, run.ID, model.BulkRunFailed, nil, nil, &msg)
		return nil, fmt.Errorf("enqueue bulk run: %w", err)
	}

	s.log.Info().Str("run_id", job.RunID).Str("author", author).Int("rows", len(rows)).Msg("Bulk run queued")
	return run, nil
}

// Execute runs a queued job to completion and records the outcome. Stored
// files are removed whatever happens.
func (s *BulkService) Execute(ctx context.Context, job BulkJob) error {
	defer s.uploads.Remove(job.paths()...)

	runID, err := uuid.Parse(job.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", job.RunID, err)
	}
	if err := s.repo.MarkRunning(ctx, runID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	rows, err := s.rowsOf(job)
	if err != nil {
		msg := err.Error()
		failedAt := 0
		s.abort(ctx, job, msg)
		return s.repo.Finish(ctx, runID, model.BulkRunFailed, nil, &failedAt, &msg)
	}

	res, err := s.orch.CreateAll(client.WithToken(ctx, job.Token), rows, bulk.Options{
		AssignmentID: job.AssignmentID,
		Defaults: submission.Defaults{
			TimeLimit:   s.cfg.DefaultTimeLimit,
			MemoryLimit: s.cfg.DefaultMemoryLimit,
		},
		Progress: func(ev bulk.Event) { s.publish(ctx, job.RunID, ev) },
	})
	if err != nil {
		msg := err.Error()
		s.abort(ctx, job, msg)
		return s.repo.Finish(ctx, runID, model.BulkRunFailed, nil, nil, &msg)
	}

	created := make([]model.BulkCreatedProblem, 0, len(res.Created))
	for _, c := range res.Created {
		created = append(created, model.BulkCreatedProblem{Index: c.Index, ID: c.ID, Title: c.Title})
	}

	status := model.BulkRunSucceeded
	var msg *string
	if res.FailedAt != nil {
		status = model.BulkRunFailed
		m := res.Err.Error()
		msg = &m
	}

	// Record the outcome even if the worker is shutting down.
	if err := s.repo.Finish(context.WithoutCancel(ctx), runID, status, created, res.FailedAt, msg); err != nil {
		return fmt.Errorf("finish bulk run: %w", err)
	}

	s.log.Info().
		Str("run_id", job.RunID).
		Str("status", string(status)).
		Int("created", len(created)).
		Int("total", res.Total).
		Msg("Bulk run finished")
	return nil
}

// Get returns a run owned by author.
func (s *BulkService) Get(ctx context.Context, author string, id uuid.UUID) (*model.BulkRun, error) {
	run, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrBulkRunNotFound) {
		return nil, ErrBulkRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if run.Author != author {
		return nil, ErrBulkRunNotFound
	}
	return run, nil
}

// List returns the latest runs of author.
func (s *BulkService) List(ctx context.Context, author string, limit int) ([]model.BulkRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByAuthor(ctx, author, limit)
}

// Subscribe opens the progress channel of a run.
func (s *BulkService) Subscribe(ctx context.Context, runID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.BulkRunChannel(runID))
}

func (s *BulkService) rowsOf(job BulkJob) ([]bulk.Row, error) {
	rows := make([]bulk.Row, 0, len(job.Rows))
	for i, jr := range job.Rows {
		zip, err := s.uploads.Open(jr.ArchivePath, jr.ArchiveName)
		if err != nil {
			return nil, fmt.Errorf("row %d archive: %w", i+1, err)
		}
		row := bulk.Row{Title: jr.Title, Archive: &zip}
		if jr.DescriptionPath != "" {
			desc, err := s.uploads.Open(jr.DescriptionPath, jr.DescriptionName)
			if err != nil {
				return nil, fmt.Errorf("row %d description: %w", i+1, err)
			}
			row.DescriptionFile = &desc
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// abort tells listeners a run ended before any row was attempted.
func (s *BulkService) abort(ctx context.Context, job BulkJob, msg string) {
	total := len(job.Rows)
	s.publish(ctx, job.RunID, bulk.Event{Kind: bulk.EventFailed, Index: 0, Error: msg, Total: total})
	s.publish(ctx, job.RunID, bulk.Event{Kind: bulk.EventFinished, Index: -1, Total: total})
}

func (s *BulkService) publish(ctx context.Context, runID string, ev bulk.Event) {
	data, err := json.Marshal(BulkEvent{RunID: runID, Event: ev})
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.BulkRunChannel(runID), data).Err(); err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to publish bulk progress")
	}
}
