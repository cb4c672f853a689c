package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/submission"
)

// ErrNoProblemID is returned when a create response carries no id.
var ErrNoProblemID = errors.New("problem api returned no problem id")

// ProblemClient calls the LMS problem and assignment API.
type ProblemClient struct {
	base
}

// NewProblemClient creates a ProblemClient for baseURL.
func NewProblemClient(baseURL string, timeout time.Duration, log zerolog.Logger) *ProblemClient {
	return &ProblemClient{base: newBase("problem_api", baseURL, timeout, log)}
}

type idResponse struct {
	ID   int64 `json:"id"`
	Data *struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

func (r idResponse) value() int64 {
	if r.ID != 0 {
		return r.ID
	}
	if r.Data != nil {
		return r.Data.ID
	}
	return 0
}

// CreateProblem posts payload as multipart/form-data and returns the new id.
func (c *ProblemClient) CreateProblem(ctx context.Context, payload *submission.CreatePayload) (int64, error) {
	var resp idResponse
	if err := c.doMultipart(ctx, http.MethodPost, "/problems", payload.WriteParts, &resp); err != nil {
		return 0, err
	}
	id := resp.value()
	if id == 0 {
		return 0, ErrNoProblemID
	}
	return id, nil
}

// UpdateProblem patches problem metadata in place.
func (c *ProblemClient) UpdateProblem(ctx context.Context, problemID int64, meta submission.MetadataPayload) error {
	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/problems/%d", problemID), meta, nil)
}

// AddProblemToAssignment links a problem. An existing link (409) counts as
// success.
func (c *ProblemClient) AddProblemToAssignment(ctx context.Context, assignmentID, problemID int64) error {
	body := map[string]int64{"problemId": problemID}
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/assignments/%d/problems", assignmentID), body, nil)
	if StatusOf(err) == http.StatusConflict {
		c.log.Info().Int64("assignment_id", assignmentID).Int64("problem_id", problemID).Msg("Problem already linked")
		return nil
	}
	return err
}

// RemoveProblemFromAssignment unlinks a problem. A missing link (404)
// counts as success.
func (c *ProblemClient) RemoveProblemFromAssignment(ctx context.Context, assignmentID, problemID int64) error {
	err := c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/assignments/%d/problems/%d", assignmentID, problemID), nil, nil)
	if StatusOf(err) == http.StatusNotFound {
		c.log.Info().Int64("assignment_id", assignmentID).Int64("problem_id", problemID).Msg("Problem already unlinked")
		return nil
	}
	return err
}

var _ submission.ProblemAPI = (*ProblemClient)(nil)
