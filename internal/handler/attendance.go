package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studenttracker/internal/attendance"
	"studenttracker/internal/models"
	"studenttracker/internal/response"
)

type markRequest struct {
	CourseID string              `json:"course_id" binding:"required"`
	Records  []attendance.Record `json:"attendance_records" binding:"required"`
}

// markAttendance answers 201 when every record was accepted and 207 when some
// were rejected.
func (h *Handler) markAttendance(c *gin.Context) {
	var in markRequest
	if !bind(c, &in) {
		return
	}
	res, err := h.attendance.Mark(c.Request.Context(), principal(c), in.CourseID, in.Records)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if res.Partial() {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, "Attendance marked", res)
}

func (h *Handler) updateAttendance(c *gin.Context) {
	var in attendance.Change
	if !bind(c, &in) {
		return
	}
	rec, err := h.attendance.Update(c.Request.Context(), principal(c), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Attendance updated", rec)
}

func (h *Handler) deleteAttendance(c *gin.Context) {
	if err := h.attendance.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Attendance deleted", nil)
}

func (h *Handler) courseAttendance(c *gin.Context) {
	from, ok := dateQuery(c, "from_date")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to_date")
	if !ok {
		return
	}
	p := page(c, 50)
	items, total, err := h.attendance.ListCourse(c.Request.Context(), principal(c), c.Param("id"), from, to, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Attendance records retrieved", list("records", items, total, p))
}

func (h *Handler) courseRoster(c *gin.Context) {
	date, ok := dateQuery(c, "date")
	if !ok {
		return
	}
	p := page(c, 20)
	day, entries, total, err := h.attendance.Roster(c.Request.Context(), principal(c), c.Param("id"), date, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	data := list("students", entries, total, p)
	data["date"] = day
	response.JSON(c, http.StatusOK, "Today attendance fetched", data)
}

func (h *Handler) courseSummary(c *gin.Context) {
	rows, err := h.attendance.Summary(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Attendance summary", gin.H{"course_id": c.Param("id"), "students": rows})
}

func (h *Handler) studentAttendance(c *gin.Context) {
	p := page(c, 50)
	hist, err := h.attendance.History(c.Request.Context(), principal(c), c.Param("id"), c.Query("course_id"), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	data := list("records", hist.Records, hist.Total, p)
	data["statistics"] = hist.Statistics
	response.JSON(c, http.StatusOK, "Student attendance retrieved", data)
}

func (h *Handler) studentMonthly(c *gin.Context) {
	today := h.attendance.Today()
	year, ok := intQuery(c, "year", today.Year)
	if !ok {
		return
	}
	month, ok := intQuery(c, "month", int(today.Month))
	if !ok {
		return
	}
	report, err := h.attendance.Monthly(c.Request.Context(), principal(c), c.Param("id"), c.Query("course_id"), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Monthly attendance", report)
}

// dateQuery parses an optional YYYY-MM-DD query parameter, writing a 400 when
// it is malformed.
func dateQuery(c *gin.Context, key string) (*models.Date, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		response.Abort(c, http.StatusBadRequest, "Invalid date format, expected YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		response.Abort(c, http.StatusBadRequest, "Invalid "+key+": must be an integer")
		return 0, false
	}
	return n, true
}
