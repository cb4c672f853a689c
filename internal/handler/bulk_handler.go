package handler

import (
	"mime/multipart"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/bulk"
	"github.com/stemsi/exstem-authoring/internal/middleware"
	"github.com/stemsi/exstem-authoring/internal/response"
	"github.com/stemsi/exstem-authoring/internal/service"
	"github.com/stemsi/exstem-authoring/internal/upload"
	"github.com/stemsi/exstem-authoring/internal/validator"
)

// rowField matches indexed row parts: title_0, archive_0, description_0.
var rowField = regexp.MustCompile(`^(title|archive|description)_(\d+)$`)

// BulkHandler serves bulk creation runs.
type BulkHandler struct {
	bulkService *service.BulkService
	log         zerolog.Logger
}

// NewBulkHandler creates a new BulkHandler.
func NewBulkHandler(bulkService *service.BulkService, log zerolog.Logger) *BulkHandler {
	return &BulkHandler{
		bulkService: bulkService,
		log:         log.With().Str("component", "bulk_handler").Logger(),
	}
}

type bulkForm struct {
	AssignmentID int64 `form:"assignment_id" binding:"gte=0"`
}

type listRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=100"`
}

// CreateBulk godoc
// POST /api/v1/authoring/bulk
// Queues a run that creates one problem per row. Every row is validated
// first; nothing is queued when any row is invalid.
func (h *BulkHandler) CreateBulk(c *gin.Context) {
	var form bulkForm
	if errs := validator.BindForm(c, &form); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	mf, err := c.MultipartForm()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	rows := parseRows(mf)
	if len(rows) == 0 {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"rows": "at least one row is required"})
		return
	}

	run, err := h.bulkService.Enqueue(c.Request.Context(), author(c), middleware.GetToken(c), form.AssignmentID, rows)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusAccepted, run)
}

// GetRun godoc
// GET /api/v1/authoring/bulk/runs/:id
func (h *BulkHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	run, err := h.bulkService.Get(c.Request.Context(), author(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, run)
}

// ListRuns godoc
// GET /api/v1/authoring/bulk/runs?limit=20
func (h *BulkHandler) ListRuns(c *gin.Context) {
	var q listRunsQuery
	if errs := validator.BindQuery(c, &q); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	runs, err := h.bulkService.List(c.Request.Context(), author(c), q.Limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, runs)
}

// parseRows groups indexed parts into rows ordered by index. Gaps in the
// numbering are closed up.
func parseRows(mf *multipart.Form) []bulk.Row {
	byIndex := make(map[int]*bulk.Row)
	row := func(i int) *bulk.Row {
		r, ok := byIndex[i]
		if !ok {
			r = &bulk.Row{}
			byIndex[i] = r
		}
		return r
	}

	for key, values := range mf.Value {
		m := rowField.FindStringSubmatch(key)
		if m == nil || m[1] != "title" || len(values) == 0 {
			continue
		}
		i, _ := strconv.Atoi(m[2])
		row(i).Title = values[0]
	}
	for key, headers := range mf.File {
		m := rowField.FindStringSubmatch(key)
		if m == nil || len(headers) == 0 {
			continue
		}
		i, _ := strconv.Atoi(m[2])
		f := upload.FromMultipart(headers[0])
		switch m[1] {
		case "archive":
			row(i).Archive = &f
		case "description":
			row(i).DescriptionFile = &f
		}
	}

	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	rows := make([]bulk.Row, 0, len(indexes))
	for _, i := range indexes {
		rows = append(rows, *byIndex[i])
	}
	return rows
}
