package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studenttracker/internal/response"
	"studenttracker/internal/users"
)

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.users.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Dashboard statistics", d)
}

func (h *Handler) listUsers(c *gin.Context) {
	p := page(c, 20)
	items, total, err := h.users.ListUsers(c.Request.Context(), c.Query("role"), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Users retrieved", list("users", items, total, p))
}

func (h *Handler) getUser(c *gin.Context) {
	u, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "User retrieved", u)
}

func (h *Handler) updateUser(c *gin.Context) {
	var in users.UserUpdate
	if !bind(c, &in) {
		return
	}
	u, err := h.users.UpdateUser(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "User updated", u)
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.users.DeactivateUser(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "User deactivated", nil)
}

func (h *Handler) listStudents(c *gin.Context) {
	p := page(c, 20)
	items, total, err := h.users.ListStudents(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Students retrieved", list("students", items, total, p))
}

func (h *Handler) getStudent(c *gin.Context) {
	s, err := h.users.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Student retrieved", s)
}

func (h *Handler) updateStudent(c *gin.Context) {
	var in users.StudentUpdate
	if !bind(c, &in) {
		return
	}
	s, err := h.users.UpdateStudent(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Student updated", s)
}

func (h *Handler) deleteStudent(c *gin.Context) {
	if err := h.users.DeactivateStudent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Student deactivated", nil)
}

func (h *Handler) listTeachers(c *gin.Context) {
	p := page(c, 20)
	items, total, err := h.users.ListTeachers(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Teachers retrieved", list("teachers", items, total, p))
}

func (h *Handler) getTeacher(c *gin.Context) {
	t, err := h.users.GetTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Teacher retrieved", t)
}

func (h *Handler) updateTeacher(c *gin.Context) {
	var in users.TeacherUpdate
	if !bind(c, &in) {
		return
	}
	t, err := h.users.UpdateTeacher(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Teacher updated", t)
}

func (h *Handler) deleteTeacher(c *gin.Context) {
	if err := h.users.DeactivateTeacher(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Teacher deactivated", nil)
}
