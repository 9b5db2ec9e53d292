package courses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studenttracker/internal/models"
	"studenttracker/internal/store"
)

// Repository persists courses and enrollments.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo on a pool or a transaction.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

const courseSelect = `
	SELECT c.id, c.course_code, c.course_name, c.description, c.teacher_id,
	       u.first_name || ' ' || u.last_name,
	       c.credits, c.semester, c.max_students,
	       (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.is_active = TRUE),
	       c.is_active, c.created_at, c.updated_at
	FROM courses c
	JOIN teachers t ON t.id = c.teacher_id
	JOIN users u ON u.id = t.user_id`

func scanCourse(row store.Scanner) (models.Course, error) {
	var c models.Course
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.TeacherID, &c.TeacherName,
		&c.Credits, &c.Semester, &c.MaxStudents, &c.EnrolledStudents, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCourse inserts c.
func (r *Repository) CreateCourse(ctx context.Context, c models.Course) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, course_code, course_name, description, teacher_id, credits, semester, max_students, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Code, c.Name, c.Description, c.TeacherID, c.Credits, c.Semester, c.MaxStudents, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCourse returns the course with id, active or not, or nil.
func (r *Repository) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx, courseSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListCourses returns a page of active courses ordered by code, optionally
// only those taught by teacherID.
func (r *Repository) ListCourses(ctx context.Context, teacherID string, page store.PageRequest) ([]models.Course, int, error) {
	where, args := ` WHERE c.is_active = TRUE`, []any{}
	if teacherID != "" {
		where += ` AND c.teacher_id = $1`
		args = append(args, teacherID)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses c`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`%s%s ORDER BY c.course_code LIMIT $%d OFFSET $%d`, courseSelect, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []models.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, c)
	}
	return res, total, rows.Err()
}

// UpdateCourse writes the mutable course fields.
func (r *Repository) UpdateCourse(ctx context.Context, c models.Course) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE courses
		SET course_name = $1, description = $2, credits = $3, semester = $4, max_students = $5, is_active = $6, updated_at = $7
		WHERE id = $8
	`, c.Name, c.Description, c.Credits, c.Semester, c.MaxStudents, c.IsActive, c.UpdatedAt, c.ID)
	return err
}

// DeactivateCourse soft-deletes a course.
func (r *Repository) DeactivateCourse(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE courses SET is_active = FALSE, updated_at = $1 WHERE id = $2`, at, id)
	return err
}

// EnrolledStudents lists the students actively enrolled in a course, in
// enrollment order.
func (r *Repository) EnrolledStudents(ctx context.Context, courseID string) ([]models.Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.roll_number, u.first_name, u.last_name, u.email,
		       s.phone, s.address, s.enrollment_date, s.is_active, s.created_at, s.updated_at
		FROM enrollments e
		JOIN students s ON s.id = e.student_id
		JOIN users u ON u.id = s.user_id
		WHERE e.course_id = $1 AND e.is_active = TRUE
		ORDER BY e.enrollment_date, e.id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Student{}
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(&s.ID, &s.UserID, &s.RollNumber, &s.FirstName, &s.LastName, &s.Email,
			&s.Phone, &s.Address, &s.EnrollmentDate, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// GetEnrollment returns the enrollment row of a student in a course, active
// or dropped, or nil.
func (r *Repository) GetEnrollment(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	var e models.Enrollment
	err := r.db.QueryRowContext(ctx, `
		SELECT e.id, e.student_id, e.course_id, c.course_name, e.enrollment_date, e.is_active, e.created_at
		FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE e.student_id = $1 AND e.course_id = $2
	`, studentID, courseID).Scan(&e.ID, &e.StudentID, &e.CourseID, &e.CourseName, &e.EnrollmentDate, &e.IsActive, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// CreateEnrollment inserts e.
func (r *Repository) CreateEnrollment(ctx context.Context, e models.Enrollment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, course_id, enrollment_date, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.StudentID, e.CourseID, e.EnrollmentDate, e.IsActive, e.CreatedAt)
	return err
}

// SetEnrollmentActive flips an enrollment on (reactivate) or off (drop).
func (r *Repository) SetEnrollmentActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE enrollments SET is_active = $1 WHERE id = $2`, active, id)
	return err
}
