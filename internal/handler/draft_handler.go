package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/archive"
	"github.com/stemsi/exstem-authoring/internal/middleware"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/response"
	"github.com/stemsi/exstem-authoring/internal/service"
	"github.com/stemsi/exstem-authoring/internal/submission"
	"github.com/stemsi/exstem-authoring/internal/testcase"
	"github.com/stemsi/exstem-authoring/internal/upload"
	"github.com/stemsi/exstem-authoring/internal/validator"
)

// Multipart field names accepted by the upload endpoints.
const (
	formArchive         = "zipFile"
	formDescriptionFile = "descriptionFile"
	formTestcases       = "files"
)

// DraftHandler serves the authoring session endpoints.
type DraftHandler struct {
	draftService *service.DraftService
	log          zerolog.Logger
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(draftService *service.DraftService, log zerolog.Logger) *DraftHandler {
	return &DraftHandler{
		draftService: draftService,
		log:          log.With().Str("component", "draft_handler").Logger(),
	}
}

type openArchiveForm struct {
	AssignmentID int64  `form:"assignment_id" binding:"gte=0"`
	Title        string `form:"title"`
	Description  string `form:"description"`
	TimeLimit    string `form:"time_limit"`
	MemoryLimit  string `form:"memory_limit"`
	Tags         string `form:"tags"`
	Difficulty   int    `form:"difficulty" binding:"gte=0,lte=5"`
}

type transformRequest struct {
	Confirm bool `json:"confirm"`
}

type submitRequest struct {
	ConfirmIncomplete bool `json:"confirm_incomplete"`
}

// OpenDraft godoc
// POST /api/v1/authoring/drafts
// Opens a draft for an existing problem (parsed through the parser) or a
// blank creation draft.
func (h *DraftHandler) OpenDraft(c *gin.Context) {
	var req service.OpenRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	view, err := h.draftService.Open(c.Request.Context(), author(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// OpenArchiveDraft godoc
// POST /api/v1/authoring/drafts/archive
// Opens a creation draft from an uploaded archive.
func (h *DraftHandler) OpenArchiveDraft(c *gin.Context) {
	var form openArchiveForm
	if errs := validator.BindForm(c, &form); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	zip, desc, ok := archiveFiles(c)
	if !ok {
		return
	}

	req := service.OpenRequest{
		AssignmentID: form.AssignmentID,
		Baseline: model.ProblemMeta{
			Title:       form.Title,
			Description: form.Description,
			TimeLimit:   form.TimeLimit,
			MemoryLimit: form.MemoryLimit,
			Tags:        archive.NormalizeTagString(form.Tags),
			Difficulty:  model.Difficulty(form.Difficulty),
		},
	}
	view, err := h.draftService.OpenArchive(c.Request.Context(), author(c), req, zip, desc)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// GetDraft godoc
// GET /api/v1/authoring/drafts/:id
func (h *DraftHandler) GetDraft(c *gin.Context) {
	view, err := h.draftService.Get(author(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// UpdateDraft godoc
// PATCH /api/v1/authoring/drafts/:id
// Changes draft fields. Fields outside the current mode are refused.
func (h *DraftHandler) UpdateDraft(c *gin.Context) {
	var req service.UpdateRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	view, err := h.draftService.Update(author(c), c.Param("id"), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// FormatDescription godoc
// POST /api/v1/authoring/drafts/:id/format
func (h *DraftHandler) FormatDescription(c *gin.Context) {
	var req service.FormatRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	view, err := h.draftService.Format(author(c), c.Param("id"), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// TransformDraft godoc
// POST /api/v1/authoring/drafts/:id/transform
// Switches to full transform. Without {"confirm": true} the response is a
// 409 carrying the consequence to show the author.
func (h *DraftHandler) TransformDraft(c *gin.Context) {
	var req transformRequest
	if c.Request.ContentLength != 0 {
		if errs := validator.Bind(c, &req); errs != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
			return
		}
	}

	view, err := h.draftService.Transform(author(c), c.Param("id"), req.Confirm)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// AttachArchive godoc
// POST /api/v1/authoring/drafts/:id/archive
// Replaces the archive and description file sent with a full submission.
func (h *DraftHandler) AttachArchive(c *gin.Context) {
	zip, desc, ok := archiveFiles(c)
	if !ok {
		return
	}

	view, err := h.draftService.AttachArchive(author(c), c.Param("id"), zip, desc)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// UploadTestcases godoc
// POST /api/v1/authoring/drafts/:id/testcases
// Pairs uploaded .in/.ans/.out (or rich-text) files by basename.
func (h *DraftHandler) UploadTestcases(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File[formTestcases]) == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}

	res, err := h.draftService.AttachTestcases(c.Request.Context(), author(c), c.Param("id"),
		upload.FromMultipartList(form.File[formTestcases]))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// UpdateTestcase godoc
// PATCH /api/v1/authoring/drafts/:id/testcases/:name
func (h *DraftHandler) UpdateTestcase(c *gin.Context) {
	var req service.TestcaseUpdate
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	view, err := h.draftService.UpdateTestcase(author(c), c.Param("id"), c.Param("name"), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// RemoveTestcase godoc
// DELETE /api/v1/authoring/drafts/:id/testcases/:name
func (h *DraftHandler) RemoveTestcase(c *gin.Context) {
	view, err := h.draftService.RemoveTestcase(author(c), c.Param("id"), c.Param("name"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// ValidateTestcases godoc
// GET /api/v1/authoring/drafts/:id/validation
// Lists incomplete testcase pairs, parsed ones first.
func (h *DraftHandler) ValidateTestcases(c *gin.Context) {
	incomplete, err := h.draftService.Validate(author(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if incomplete == nil {
		incomplete = []testcase.Incomplete{}
	}
	response.Success(c, http.StatusOK, gin.H{"incomplete": incomplete})
}

// SubmitDraft godoc
// POST /api/v1/authoring/drafts/:id/submit
// Sends the draft to the problem API and closes it on success.
func (h *DraftHandler) SubmitDraft(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength != 0 {
		if errs := validator.Bind(c, &req); errs != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
			return
		}
	}

	res, err := h.draftService.Submit(c.Request.Context(), author(c), c.Param("id"), middleware.GetToken(c),
		submission.Options{ConfirmIncomplete: req.ConfirmIncomplete})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// CloseDraft godoc
// DELETE /api/v1/authoring/drafts/:id
func (h *DraftHandler) CloseDraft(c *gin.Context) {
	if err := h.draftService.Close(author(c), c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func author(c *gin.Context) string {
	if claims := middleware.GetClaims(c); claims != nil {
		return claims.Author()
	}
	return ""
}

// archiveFiles reads the archive and optional description file parts.
// It writes the error response itself and reports false on failure.
func archiveFiles(c *gin.Context) (upload.File, *upload.File, bool) {
	zipHeader, err := c.FormFile(formArchive)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return upload.File{}, nil, false
	}
	zip := upload.FromMultipart(zipHeader)

	var desc *upload.File
	if h, err := c.FormFile(formDescriptionFile); err == nil && strings.TrimSpace(h.Filename) != "" {
		f := upload.FromMultipart(h)
		desc = &f
	}
	return zip, desc, true
}
