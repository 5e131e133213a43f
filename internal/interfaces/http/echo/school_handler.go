package echo

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/school-import/internal/application/importer"
)

var schoolErrors = []errorMapping{
	{target: app.ErrInvalidSlug, status: http.StatusBadRequest, code: "invalid_slug", message: "slug must be lowercase letters, digits and single hyphens"},
	{target: app.ErrSchoolNotFound, status: http.StatusNotFound, code: "not_found", message: "school not found"},
}

type SchoolHandler struct {
	useCase app.GetSchoolBySlug
}

func NewSchoolHandler(useCase app.GetSchoolBySlug) *SchoolHandler {
	return &SchoolHandler{useCase: useCase}
}

// GetSchoolBySlug redirects mixed-case slugs to their canonical lowercase
// path so each school has a single URL.
func (h *SchoolHandler) GetSchoolBySlug(c echo.Context) error {
	slug := c.Param("slug")
	if canonical := strings.ToLower(slug); canonical != slug {
		return c.Redirect(http.StatusMovedPermanently, "/api/v1/schools/"+canonical)
	}

	out, err := h.useCase.Execute(c.Request().Context(), app.GetSchoolBySlugInput{Slug: slug})
	if err != nil {
		return writeMappedError(c, err, schoolErrors, "failed to get school", nil)
	}

	if out.ImportJobID != "" {
		c.Response().Header().Set("X-Import-Job-ID", out.ImportJobID)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}
