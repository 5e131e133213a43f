package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, schoolHandler *SchoolHandler) {
	api := server.Group("/api/v1")
	api.POST("/imports/schools", importHandler.ImportSchools)
	api.GET("/schools/:slug", schoolHandler.GetSchoolBySlug)
}
