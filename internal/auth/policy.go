package auth

import (
	"fmt"

	"studenttracker/internal/apperr"
	"studenttracker/internal/models"
)

// Principal is the verified caller of a request.
type Principal struct {
	UserID string
	Role   models.Role
}

// Action is an operation subject to the authorization policy.
type Action int

const (
	// ActionMarkAttendance covers marking, updating and deleting records.
	ActionMarkAttendance Action = iota + 1
	// ActionViewCourseAttendance covers course records, roster and summary.
	ActionViewCourseAttendance
	// ActionViewStudentAttendance covers a student's history and monthly report.
	ActionViewStudentAttendance
	// ActionManageCourse covers course create, update and delete.
	ActionManageCourse
	// ActionEnroll covers enroll and unenroll.
	ActionEnroll
	// ActionManageUsers covers the admin console.
	ActionManageUsers
)

func (a Action) String() string {
	switch a {
	case ActionMarkAttendance:
		return "mark attendance"
	case ActionViewCourseAttendance:
		return "view course attendance"
	case ActionViewStudentAttendance:
		return "view student attendance"
	case ActionManageCourse:
		return "manage course"
	case ActionEnroll:
		return "enroll"
	case ActionManageUsers:
		return "manage users"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Authorize is the single place where role and ownership decide access.
// owns means: for teachers, the course belongs to them; for students, the
// target record is their own.
func Authorize(p Principal, action Action, owns bool) error {
	if allowed(p.Role, action, owns) {
		return nil
	}
	return apperr.Forbidden("Unauthorized to " + action.String())
}

func allowed(role models.Role, action Action, owns bool) bool {
	switch role {
	case models.RoleAdmin:
		switch action {
		case ActionViewStudentAttendance, ActionManageCourse, ActionManageUsers:
			return true
		case ActionMarkAttendance, ActionViewCourseAttendance, ActionEnroll:
			return false
		}
	case models.RoleTeacher:
		switch action {
		case ActionMarkAttendance, ActionViewCourseAttendance, ActionManageCourse:
			return owns
		case ActionViewStudentAttendance:
			return true
		case ActionEnroll, ActionManageUsers:
			return false
		}
	case models.RoleStudent:
		switch action {
		case ActionViewStudentAttendance, ActionEnroll:
			return owns
		case ActionMarkAttendance, ActionViewCourseAttendance, ActionManageCourse, ActionManageUsers:
			return false
		}
	}
	return false
}
