package echo

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/school-import/internal/application/importer"
)

const (
	actionProcess = "process"
	actionStatus  = "status"
)

type ImportHandler struct {
	controller app.JobController
}

type importActionRequest struct {
	Action string `json:"action"`
	JobID  string `json:"job_id"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func NewImportHandler(controller app.JobController) *ImportHandler {
	return &ImportHandler{controller: controller}
}

// ImportSchools serves the single import endpoint: a multipart upload creates
// a job, a JSON body runs an action on an existing job.
func (h *ImportHandler) ImportSchools(c echo.Context) error {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return h.upload(c)
	}

	var req importActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}

	ctx := c.Request().Context()
	switch req.Action {
	case actionProcess:
		out, err := h.controller.ProcessNextBatch(ctx, req.JobID)
		if err != nil {
			return writeImportError(c, err, out)
		}
		return c.JSON(http.StatusOK, apiResponse{Data: out})
	case actionStatus:
		out, err := h.controller.GetStatus(ctx, req.JobID)
		if err != nil {
			return writeImportError(c, err, nil)
		}
		return c.JSON(http.StatusOK, apiResponse{Data: out})
	default:
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "invalid_action",
			Message: "action must be process or status, or upload a file",
		}})
	}
}

func (h *ImportHandler) upload(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "multipart field file is required",
		}})
	}

	file, err := header.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "cannot read uploaded file",
		}})
	}
	defer file.Close()

	out, err := h.controller.CreateJob(c.Request().Context(), app.CreateJobInput{
		FileName: header.Filename,
		Body:     file,
	})
	if err != nil {
		return writeImportError(c, err, nil)
	}

	return c.JSON(http.StatusCreated, apiResponse{Data: out})
}

var importErrors = []errorMapping{
	{target: app.ErrInvalidImportFile, status: http.StatusBadRequest, code: "invalid_format"},
	{target: app.ErrInvalidJobID, status: http.StatusBadRequest, code: "invalid_job_id", message: "job_id must be a valid UUID"},
	{target: app.ErrJobNotFound, status: http.StatusNotFound, code: "not_found", message: "import job not found"},
	{target: app.ErrJobBusy, status: http.StatusConflict, code: "job_busy", message: "another invocation is processing this job, retry shortly"},
	{target: app.ErrInfrastructure, status: http.StatusInternalServerError, code: "import_failed"},
}

func writeImportError(c echo.Context, err error, snapshot any) error {
	return writeMappedError(c, err, importErrors, "failed to process import request", snapshot)
}
