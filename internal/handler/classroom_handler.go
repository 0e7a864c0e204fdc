package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/service"
	appErrors "github.com/campuskit/school-api/pkg/errors"
	"github.com/campuskit/school-api/pkg/response"
)

// ClassRoomHandler exposes class section endpoints.
type ClassRoomHandler struct {
	classes *service.ClassRoomService
	exports *service.ExportService
}

// NewClassRoomHandler constructs ClassRoomHandler.
func NewClassRoomHandler(classes *service.ClassRoomService, exports *service.ExportService) *ClassRoomHandler {
	return &ClassRoomHandler{classes: classes, exports: exports}
}

// List godoc
// @Summary List class sections
// @Tags Classes
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param semesterId query string false "Filter by semester"
// @Param roomId query string false "Filter by room"
// @Param search query string false "Search by section name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassRoomHandler) List(c *gin.Context) {
	var filter models.ClassRoomFilter
	filter.CourseID = c.Query("courseId")
	filter.SemesterID = c.Query("semesterId")
	filter.RoomID = c.Query("roomId")
	filter.Search = c.Query("search")
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, pagination, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class section by ID
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassRoomHandler) Get(c *gin.Context) {
	class, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class section
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRoomRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes [post]
func (h *ClassRoomHandler) Create(c *gin.Context) {
	var req service.CreateClassRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class section
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRoomRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassRoomHandler) Update(c *gin.Context) {
	var req service.UpdateClassRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class section
// @Description Class sections with active enrollments cannot be removed.
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /classes/{id} [delete]
func (h *ClassRoomHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary Download class roster
// @Description Renders a CSV of the active students in the class section
// @Tags Classes
// @Produce text/csv
// @Param id path string true "Class ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/roster [get]
func (h *ClassRoomHandler) Roster(c *gin.Context) {
	file, err := h.exports.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Payload)
}
