package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studenttracker/internal/models"
	"studenttracker/internal/store"
)

// Repository reads and writes attendance rows through a pool or a
// transaction.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

const recordSelect = `
	SELECT a.id, a.student_id, u.first_name || ' ' || u.last_name, a.course_id, c.course_name,
	       a.teacher_id, a.attendance_date, a.status, a.remarks, a.created_at, a.updated_at
	FROM attendance a
	JOIN students s ON s.id = a.student_id
	JOIN users u ON u.id = s.user_id
	JOIN courses c ON c.id = a.course_id`

func scanRecord(row store.Scanner) (models.Attendance, error) {
	var a models.Attendance
	err := row.Scan(&a.ID, &a.StudentID, &a.StudentName, &a.CourseID, &a.CourseName,
		&a.TeacherID, &a.Date, &a.Status, &a.Remarks, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Repository) one(ctx context.Context, query string, args ...any) (*models.Attendance, error) {
	a, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repository) many(ctx context.Context, query string, args ...any) ([]models.Attendance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Attendance{}
	for rows.Next() {
		a, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// Get returns the record with id, or nil.
func (r *Repository) Get(ctx context.Context, id string) (*models.Attendance, error) {
	return r.one(ctx, recordSelect+` WHERE a.id = $1`, id)
}

// FindSlot returns the record for a (student, course, date) triple, or nil.
func (r *Repository) FindSlot(ctx context.Context, studentID, courseID string, date models.Date) (*models.Attendance, error) {
	return r.one(ctx, recordSelect+` WHERE a.student_id = $1 AND a.course_id = $2 AND a.attendance_date = $3`,
		studentID, courseID, date)
}

// Insert writes a new record, assigning an id when a.ID is empty.
func (r *Repository) Insert(ctx context.Context, a models.Attendance) (models.Attendance, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, student_id, course_id, teacher_id, attendance_date, status, remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.StudentID, a.CourseID, a.TeacherID, a.Date, a.Status, a.Remarks, a.CreatedAt, a.UpdatedAt)
	return a, err
}

// SetStatus overwrites status and remarks of an existing record.
func (r *Repository) SetStatus(ctx context.Context, id string, status models.AttendanceStatus, remarks string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance SET status = $1, remarks = $2, updated_at = $3 WHERE id = $4
	`, status, remarks, at, id)
	return err
}

// Delete removes a record. It reports false when no row matched.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IsEnrolled reports whether a student has an active enrollment in a course.
func (r *Repository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND course_id = $2 AND is_active = TRUE
	`, studentID, courseID).Scan(&n)
	return n > 0, err
}

// Counts tallies a student's records by status, optionally within one course.
func (r *Repository) Counts(ctx context.Context, studentID, courseID string) (Stats, error) {
	query := `SELECT status, COUNT(*) FROM attendance WHERE student_id = $1`
	args := []any{studentID}
	if courseID != "" {
		query += ` AND course_id = $2`
		args = append(args, courseID)
	}
	rows, err := r.db.QueryContext(ctx, query+` GROUP BY status`, args...)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	var s Stats
	for rows.Next() {
		var status models.AttendanceStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		s.add(status, n)
	}
	return s.finish(), rows.Err()
}

// Between returns a student's records in [from, to], by date then creation.
func (r *Repository) Between(ctx context.Context, studentID, courseID string, from, to models.Date) ([]models.Attendance, error) {
	query := recordSelect + ` WHERE a.student_id = $1 AND a.attendance_date >= $2 AND a.attendance_date <= $3`
	args := []any{studentID, from, to}
	if courseID != "" {
		query += ` AND a.course_id = $4`
		args = append(args, courseID)
	}
	return r.many(ctx, query+` ORDER BY a.attendance_date, a.created_at, a.id`, args...)
}

// SummaryRow is one enrolled student's tally within a course.
type SummaryRow struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	RollNumber  string `json:"roll_number"`
	Stats
}

// Summary tallies every active enrollment of a course in enrollment order.
func (r *Repository) Summary(ctx context.Context, courseID string) ([]SummaryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, u.first_name || ' ' || u.last_name, s.roll_number,
		       COALESCE(SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN a.status = 'absent' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN a.status = 'late' THEN 1 ELSE 0 END), 0)
		FROM enrollments e
		JOIN students s ON s.id = e.student_id
		JOIN users u ON u.id = s.user_id
		LEFT JOIN attendance a ON a.student_id = e.student_id AND a.course_id = e.course_id
		WHERE e.course_id = $1 AND e.is_active = TRUE
		GROUP BY e.id, e.enrollment_date, s.id, u.first_name, u.last_name, s.roll_number
		ORDER BY e.enrollment_date, e.id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []SummaryRow{}
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(&row.StudentID, &row.StudentName, &row.RollNumber,
			&row.Present, &row.Absent, &row.Late); err != nil {
			return nil, err
		}
		row.Stats = row.Stats.finish()
		res = append(res, row)
	}
	return res, rows.Err()
}

// ListCourse returns a page of a course's records, newest date first,
// optionally bounded by from and to.
func (r *Repository) ListCourse(ctx context.Context, courseID string, from, to *models.Date, page store.PageRequest) ([]models.Attendance, int, error) {
	clauses := []string{"a.course_id = $1"}
	args := []any{courseID}
	if from != nil {
		args = append(args, *from)
		clauses = append(clauses, fmt.Sprintf("a.attendance_date >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		clauses = append(clauses, fmt.Sprintf("a.attendance_date <= $%d", len(args)))
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`%s%s ORDER BY a.attendance_date DESC, a.created_at, a.id LIMIT $%d OFFSET $%d`,
		recordSelect, where, len(args)+1, len(args)+2)
	res, err := r.many(ctx, query, append(args, page.Limit(), page.Offset())...)
	return res, total, err
}

// History returns a page of a student's records, newest date first,
// optionally within one course.
func (r *Repository) History(ctx context.Context, studentID, courseID string, page store.PageRequest) ([]models.Attendance, int, error) {
	where := " WHERE a.student_id = $1"
	args := []any{studentID}
	if courseID != "" {
		where += " AND a.course_id = $2"
		args = append(args, courseID)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`%s%s ORDER BY a.attendance_date DESC, a.created_at, a.id LIMIT $%d OFFSET $%d`,
		recordSelect, where, len(args)+1, len(args)+2)
	res, err := r.many(ctx, query, append(args, page.Limit(), page.Offset())...)
	return res, total, err
}

// RosterEntry is an enrolled student and their status on one day.
type RosterEntry struct {
	StudentID    string                  `json:"student_id"`
	RollNumber   string                  `json:"roll_number"`
	Name         string                  `json:"name"`
	Status       models.AttendanceStatus `json:"status"`
	AttendanceID *string                 `json:"attendance_id"`
}

// Roster returns a page of a course's active enrollments with each
// student's record on date, if any.
func (r *Repository) Roster(ctx context.Context, courseID string, date models.Date, page store.PageRequest) ([]RosterEntry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND is_active = TRUE
	`, courseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.roll_number, u.first_name || ' ' || u.last_name, a.id, a.status
		FROM enrollments e
		JOIN students s ON s.id = e.student_id
		JOIN users u ON u.id = s.user_id
		LEFT JOIN attendance a
		       ON a.student_id = e.student_id AND a.course_id = e.course_id AND a.attendance_date = $1
		WHERE e.course_id = $2 AND e.is_active = TRUE
		ORDER BY e.enrollment_date, e.id
		LIMIT $3 OFFSET $4
	`, date, courseID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []RosterEntry{}
	for rows.Next() {
		var e RosterEntry
		var status sql.NullString
		if err := rows.Scan(&e.StudentID, &e.RollNumber, &e.Name, &e.AttendanceID, &status); err != nil {
			return nil, 0, err
		}
		e.Status = models.StatusNotMarked
		if status.Valid {
			e.Status = models.AttendanceStatus(status.String)
		}
		res = append(res, e)
	}
	return res, total, rows.Err()
}
