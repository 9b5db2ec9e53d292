// Package seed creates accounts, courses and enrollments directly through the
// repositories. cmd/seed uses it for sample data and tests use it for
// fixtures.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studenttracker/internal/auth"
	"studenttracker/internal/courses"
	"studenttracker/internal/models"
	"studenttracker/internal/store"
	"studenttracker/internal/users"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Seeder writes through q, which may be a pool or a transaction.
type Seeder struct {
	q    store.DBTX
	hash string
	Now  func() time.Time
}

// New hashes DefaultPassword once and reuses it for every account.
func New(q store.DBTX) (*Seeder, error) {
	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return nil, err
	}
	return &Seeder{q: q, hash: hash, Now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Seeder) user(ctx context.Context, email, first, last string, role models.Role) (models.User, error) {
	now := s.Now()
	u := models.User{
		ID: uuid.NewString(), Email: email, PasswordHash: s.hash,
		FirstName: first, LastName: last, Role: role, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := users.NewRepository(s.q).CreateUser(ctx, u); err != nil {
		return models.User{}, fmt.Errorf("seed user %s: %w", email, err)
	}
	return u, nil
}

func (s *Seeder) Admin(ctx context.Context, email string) (models.User, error) {
	return s.user(ctx, email, "System", "Admin", models.RoleAdmin)
}

func (s *Seeder) Teacher(ctx context.Context, email, employeeID, first, last, specialization string) (models.User, models.Teacher, error) {
	u, err := s.user(ctx, email, first, last, models.RoleTeacher)
	if err != nil {
		return models.User{}, models.Teacher{}, err
	}
	now := s.Now()
	t := models.Teacher{
		ID: uuid.NewString(), UserID: u.ID, EmployeeID: employeeID,
		FirstName: first, LastName: last, Email: email, Specialization: specialization,
		JoiningDate: now, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := users.NewRepository(s.q).CreateTeacher(ctx, t); err != nil {
		return models.User{}, models.Teacher{}, fmt.Errorf("seed teacher %s: %w", employeeID, err)
	}
	return u, t, nil
}

func (s *Seeder) Student(ctx context.Context, email, roll, first, last string) (models.User, models.Student, error) {
	u, err := s.user(ctx, email, first, last, models.RoleStudent)
	if err != nil {
		return models.User{}, models.Student{}, err
	}
	now := s.Now()
	st := models.Student{
		ID: uuid.NewString(), UserID: u.ID, RollNumber: roll,
		FirstName: first, LastName: last, Email: email,
		EnrollmentDate: now, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := users.NewRepository(s.q).CreateStudent(ctx, st); err != nil {
		return models.User{}, models.Student{}, fmt.Errorf("seed student %s: %w", roll, err)
	}
	return u, st, nil
}

func (s *Seeder) Course(ctx context.Context, teacherID, code, name string, maxStudents int) (models.Course, error) {
	now := s.Now()
	c := models.Course{
		ID: uuid.NewString(), Code: code, Name: name, TeacherID: teacherID,
		Credits: 3, Semester: "Fall", MaxStudents: maxStudents, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := courses.NewRepository(s.q).CreateCourse(ctx, c); err != nil {
		return models.Course{}, fmt.Errorf("seed course %s: %w", code, err)
	}
	return c, nil
}

// Enroll enrolls a student as of at, which orders course rosters.
func (s *Seeder) Enroll(ctx context.Context, studentID, courseID string, at time.Time) (models.Enrollment, error) {
	e := models.Enrollment{
		ID: uuid.NewString(), StudentID: studentID, CourseID: courseID,
		EnrollmentDate: at, IsActive: true, CreatedAt: at,
	}
	if err := courses.NewRepository(s.q).CreateEnrollment(ctx, e); err != nil {
		return models.Enrollment{}, fmt.Errorf("seed enrollment: %w", err)
	}
	return e, nil
}
