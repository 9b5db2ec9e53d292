package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Role is the closed set of account kinds. The zero value is not a role.
type Role int

const (
	RoleAdmin Role = iota + 1
	RoleTeacher
	RoleStudent
)

// ParseRole maps the stored/claimed text form to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "teacher":
		return RoleTeacher, nil
	case "student":
		return RoleStudent, nil
	}
	return 0, fmt.Errorf("invalid role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleTeacher:
		return "teacher"
	case RoleStudent:
		return "student"
	}
	return "unknown"
}

func (r Role) Valid() bool { return r >= RoleAdmin && r <= RoleStudent }

func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return r.String(), nil
}

func (r *Role) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
	p, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = p
	return nil
}

func (r Role) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

// AttendanceStatus is the recorded outcome for a day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	// StatusExcused is allowed by the schema but never accepted from callers.
	StatusExcused AttendanceStatus = "excused"
	// StatusNotMarked is a reporting value only; it is never stored.
	StatusNotMarked AttendanceStatus = "not_marked"
)

// Markable reports whether s may be written by a teacher.
func (s AttendanceStatus) Markable() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (u User) FullName() string { return u.FirstName + " " + u.LastName }

// Student rows are always read joined with their user, so the name and email
// fields are filled.
type Student struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	RollNumber     string    `json:"roll_number"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`
}

type Teacher struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	EmployeeID     string    `json:"employee_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Specialization string    `json:"specialization"`
	Phone          string    `json:"phone"`
	OfficeNumber   string    `json:"office_number"`
	JoiningDate    time.Time `json:"joining_date"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`
}

type Course struct {
	ID               string    `json:"id"`
	Code             string    `json:"course_code"`
	Name             string    `json:"course_name"`
	Description      string    `json:"description"`
	TeacherID        string    `json:"teacher_id"`
	TeacherName      string    `json:"teacher_name"`
	Credits          int       `json:"credits"`
	Semester         string    `json:"semester"`
	MaxStudents      int       `json:"max_students"`
	EnrolledStudents int       `json:"enrolled_students"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"-"`
}

type Enrollment struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	CourseID       string    `json:"course_id"`
	CourseName     string    `json:"course_name"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"-"`
}

// Attendance is one student's status in one course on one day.
type Attendance struct {
	ID          string           `json:"id"`
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	CourseID    string           `json:"course_id"`
	CourseName  string           `json:"course_name"`
	TeacherID   string           `json:"teacher_id"`
	Date        Date             `json:"attendance_date"`
	Status      AttendanceStatus `json:"status"`
	Remarks     string           `json:"remarks"`
	CreatedAt   time.Time        `json:"-"`
	UpdatedAt   time.Time        `json:"-"`
}
