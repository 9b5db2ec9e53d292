package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studenttracker/internal/models"
	"studenttracker/internal/store"
)

// Repository persists users and their student/teacher profiles.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo on a pool or a transaction.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at`

func scanUser(row store.Scanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts u.
func (r *Repository) CreateUser(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetUser returns the user with id, or nil.
func (r *Repository) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.oneUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// UserByEmail returns the user with email, or nil.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.oneUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *Repository) oneUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ListUsers returns a page of users, optionally of one role, and the total.
func (r *Repository) ListUsers(ctx context.Context, role models.Role, page store.PageRequest) ([]models.User, int, error) {
	where, args := "", []any{}
	if role.Valid() {
		where = " WHERE role = $1"
		args = append(args, role)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, u)
	}
	return res, total, rows.Err()
}

// UpdateUser writes the mutable user fields.
func (r *Repository) UpdateUser(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, password_hash = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, u.FirstName, u.LastName, u.PasswordHash, u.IsActive, u.UpdatedAt, u.ID)
	return err
}

// DeactivateUser soft-deletes a user. It reports false when no row matched.
func (r *Repository) DeactivateUser(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.deactivate(ctx, "users", id, at)
}

func (r *Repository) deactivate(ctx context.Context, table, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE `+table+` SET is_active = FALSE, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// -------- Students --------

const studentSelect = `
	SELECT s.id, s.user_id, s.roll_number, u.first_name, u.last_name, u.email,
	       s.phone, s.address, s.enrollment_date, s.is_active, s.created_at, s.updated_at
	FROM students s JOIN users u ON u.id = s.user_id`

func scanStudent(row store.Scanner) (models.Student, error) {
	var s models.Student
	err := row.Scan(&s.ID, &s.UserID, &s.RollNumber, &s.FirstName, &s.LastName, &s.Email,
		&s.Phone, &s.Address, &s.EnrollmentDate, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// CreateStudent inserts a student profile.
func (r *Repository) CreateStudent(ctx context.Context, s models.Student) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, user_id, roll_number, phone, address, enrollment_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID, s.UserID, s.RollNumber, s.Phone, s.Address, s.EnrollmentDate, s.IsActive, s.CreatedAt, s.UpdatedAt)
	return err
}

// GetStudent returns the student with id, or nil.
func (r *Repository) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	return r.oneStudent(ctx, studentSelect+` WHERE s.id = $1`, id)
}

// StudentByUserID returns the student profile owned by a user, or nil.
func (r *Repository) StudentByUserID(ctx context.Context, userID string) (*models.Student, error) {
	return r.oneStudent(ctx, studentSelect+` WHERE s.user_id = $1`, userID)
}

func (r *Repository) oneStudent(ctx context.Context, query string, args ...any) (*models.Student, error) {
	s, err := scanStudent(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListStudents returns a page of students ordered by roll number.
func (r *Repository) ListStudents(ctx context.Context, page store.PageRequest) ([]models.Student, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, studentSelect+` ORDER BY s.roll_number LIMIT $1 OFFSET $2`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []models.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, s)
	}
	return res, total, rows.Err()
}

// UpdateStudent writes the mutable student fields.
func (r *Repository) UpdateStudent(ctx context.Context, s models.Student) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE students SET phone = $1, address = $2, is_active = $3, updated_at = $4 WHERE id = $5
	`, s.Phone, s.Address, s.IsActive, s.UpdatedAt, s.ID)
	return err
}

// DeactivateStudent soft-deletes a student profile.
func (r *Repository) DeactivateStudent(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.deactivate(ctx, "students", id, at)
}

// -------- Teachers --------

const teacherSelect = `
	SELECT t.id, t.user_id, t.employee_id, u.first_name, u.last_name, u.email,
	       t.specialization, t.phone, t.office_number, t.joining_date, t.is_active, t.created_at, t.updated_at
	FROM teachers t JOIN users u ON u.id = t.user_id`

func scanTeacher(row store.Scanner) (models.Teacher, error) {
	var t models.Teacher
	err := row.Scan(&t.ID, &t.UserID, &t.EmployeeID, &t.FirstName, &t.LastName, &t.Email,
		&t.Specialization, &t.Phone, &t.OfficeNumber, &t.JoiningDate, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTeacher inserts a teacher profile.
func (r *Repository) CreateTeacher(ctx context.Context, t models.Teacher) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teachers (id, user_id, employee_id, specialization, phone, office_number, joining_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.UserID, t.EmployeeID, t.Specialization, t.Phone, t.OfficeNumber, t.JoiningDate, t.IsActive, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetTeacher returns the teacher with id, or nil.
func (r *Repository) GetTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	return r.oneTeacher(ctx, teacherSelect+` WHERE t.id = $1`, id)
}

// TeacherByUserID returns the teacher profile owned by a user, or nil.
func (r *Repository) TeacherByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	return r.oneTeacher(ctx, teacherSelect+` WHERE t.user_id = $1`, userID)
}

func (r *Repository) oneTeacher(ctx context.Context, query string, args ...any) (*models.Teacher, error) {
	t, err := scanTeacher(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListTeachers returns a page of teachers ordered by employee id.
func (r *Repository) ListTeachers(ctx context.Context, page store.PageRequest) ([]models.Teacher, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teachers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, teacherSelect+` ORDER BY t.employee_id LIMIT $1 OFFSET $2`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []models.Teacher{}
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, t)
	}
	return res, total, rows.Err()
}

// UpdateTeacher writes the mutable teacher fields.
func (r *Repository) UpdateTeacher(ctx context.Context, t models.Teacher) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE teachers
		SET specialization = $1, phone = $2, office_number = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, t.Specialization, t.Phone, t.OfficeNumber, t.IsActive, t.UpdatedAt, t.ID)
	return err
}

// DeactivateTeacher soft-deletes a teacher profile.
func (r *Repository) DeactivateTeacher(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.deactivate(ctx, "teachers", id, at)
}

// Dashboard holds the admin console counters.
type Dashboard struct {
	TotalUsers    int `json:"total_users"`
	TotalStudents int `json:"total_students"`
	TotalTeachers int `json:"total_teachers"`
	TotalCourses  int `json:"total_courses"`
}

// Dashboard counts users, active profiles and courses.
func (r *Repository) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM students WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM teachers WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM courses)
	`).Scan(&d.TotalUsers, &d.TotalStudents, &d.TotalTeachers, &d.TotalCourses)
	return d, err
}
