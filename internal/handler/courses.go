package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studenttracker/internal/courses"
	"studenttracker/internal/response"
)

func (h *Handler) listCourses(c *gin.Context) {
	p := page(c, 20)
	items, total, err := h.courses.List(c.Request.Context(), c.Query("teacher_id"), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Courses retrieved", list("courses", items, total, p))
}

func (h *Handler) getCourse(c *gin.Context) {
	d, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Course retrieved", d)
}

func (h *Handler) createCourse(c *gin.Context) {
	var in courses.CreateInput
	if !bind(c, &in) {
		return
	}
	course, err := h.courses.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, "Course created successfully", course)
}

func (h *Handler) updateCourse(c *gin.Context) {
	var in courses.UpdateInput
	if !bind(c, &in) {
		return
	}
	course, err := h.courses.Update(c.Request.Context(), principal(c), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Course updated", course)
}

func (h *Handler) deleteCourse(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Course deactivated", nil)
}

func (h *Handler) enroll(c *gin.Context) {
	e, created, err := h.courses.Enroll(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !created {
		response.JSON(c, http.StatusOK, "Re-enrolled in course", e)
		return
	}
	response.JSON(c, http.StatusCreated, "Enrolled in course", e)
}

func (h *Handler) unenroll(c *gin.Context) {
	if err := h.courses.Unenroll(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Unenrolled from course", nil)
}
