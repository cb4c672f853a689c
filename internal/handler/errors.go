package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/bulk"
	"github.com/stemsi/exstem-authoring/internal/client"
	"github.com/stemsi/exstem-authoring/internal/draft"
	"github.com/stemsi/exstem-authoring/internal/response"
	"github.com/stemsi/exstem-authoring/internal/service"
	"github.com/stemsi/exstem-authoring/internal/submission"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// upstreamDetails identifies which upstream call failed.
type upstreamDetails struct {
	Service string `json:"service"`
	Status  int    `json:"status"`
}

// writeError maps a service error to the response envelope. Anything not
// recognised is logged and reported as an internal error.
func writeError(c *gin.Context, log zerolog.Logger, err error) {
	var (
		apiErr     *client.APIError
		incomplete *submission.IncompleteError
		rowsErr    *bulk.ValidationError
	)

	switch {
	case errors.As(err, &incomplete):
		response.FailWithDetails(c, http.StatusConflict, response.ErrIncompleteTestcases, incomplete.Error(), incomplete.Items)
	case errors.As(err, &rowsErr):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, rowsErr.Fields())
	case errors.As(err, &apiErr):
		response.FailWithDetails(c, http.StatusBadGateway, response.ErrUpstream, apiErr.Message,
			upstreamDetails{Service: apiErr.Service, Status: apiErr.Status})
	case errors.Is(err, client.ErrNoProblemID):
		response.FailWithMessage(c, http.StatusBadGateway, response.ErrUpstream, err.Error())

	case errors.Is(err, service.ErrDraftNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrDraftNotFound)
	case errors.Is(err, service.ErrNotDraftOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotDraftOwner)
	case errors.Is(err, service.ErrBulkRunNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)

	case errors.Is(err, draft.ErrTransformDeclined):
		response.FailWithDetails(c, http.StatusConflict, response.ErrConfirmationRequired, draft.TransformConsequence,
			gin.H{"to": draft.ModeFullTransform})
	case errors.Is(err, draft.ErrRelinkPending):
		response.FailWithMessage(c, http.StatusConflict, response.ErrRelinkPending, err.Error())
	case errors.Is(err, draft.ErrFieldReadOnly):
		response.FailWithMessage(c, http.StatusConflict, response.ErrFieldReadOnly, err.Error())
	case errors.Is(err, draft.ErrDuplicateTestcase):
		response.FailWithMessage(c, http.StatusConflict, response.ErrDuplicateTestcase, err.Error())
	case errors.Is(err, draft.ErrTestcaseNotFound):
		response.FailWithMessage(c, http.StatusNotFound, response.ErrTestcaseNotFound, err.Error())
	case errors.Is(err, draft.ErrParsedReadOnly):
		response.FailWithMessage(c, http.StatusConflict, response.ErrParsedReadOnly, err.Error())
	case errors.Is(err, draft.ErrUnknownFormat), errors.Is(err, draft.ErrFormatValue):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrInvalidFormat, err.Error())
	case errors.Is(err, draft.ErrInvalidDifficulty),
		errors.Is(err, draft.ErrInvalidLimit),
		errors.Is(err, draft.ErrSelectionRange):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrValidation, err.Error())
	case errors.Is(err, submission.ErrTitleRequired), errors.Is(err, bulk.ErrTitleRequired):
		response.Fail(c, http.StatusBadRequest, response.ErrTitleRequired)

	case errors.Is(err, upload.ErrFileRequired):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrFileRequired, err.Error())
	case errors.Is(err, upload.ErrUnsupportedFileType):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrUnsupportedFile, err.Error())
	case errors.Is(err, upload.ErrFileTooLarge):
		response.FailWithMessage(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge, err.Error())

	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
