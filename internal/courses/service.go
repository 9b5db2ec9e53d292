package courses

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"studenttracker/internal/apperr"
	"studenttracker/internal/auth"
	"studenttracker/internal/models"
	"studenttracker/internal/store"
	"studenttracker/internal/users"
	"studenttracker/internal/validate"
)

const (
	defaultCredits     = 3
	defaultMaxStudents = 50
)

// Service manages the course catalog and enrollments.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type CreateInput struct {
	Code        string `json:"course_code" binding:"required"`
	Name        string `json:"course_name" binding:"required"`
	Description string `json:"description"`
	TeacherID   string `json:"teacher_id"`
	Credits     int    `json:"credits" binding:"gte=0"`
	Semester    string `json:"semester"`
	MaxStudents int    `json:"max_students" binding:"gte=0"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Name        *string `json:"course_name"`
	Description *string `json:"description"`
	Credits     *int    `json:"credits" binding:"omitempty,gte=0"`
	Semester    *string `json:"semester"`
	MaxStudents *int    `json:"max_students" binding:"omitempty,gte=1"`
	IsActive    *bool   `json:"is_active"`
}

// Detail is a course with its actively enrolled students.
type Detail struct {
	models.Course
	Students []models.Student `json:"students"`
}

func (s *Service) List(ctx context.Context, teacherID string, page store.PageRequest) ([]models.Course, int, error) {
	return NewRepository(s.db).ListCourses(ctx, teacherID, page)
}

func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	repo := NewRepository(s.db)
	c, err := repo.GetCourse(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if c == nil {
		return Detail{}, apperr.NotFound("Course not found")
	}
	students, err := repo.EnrolledStudents(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Course: *c, Students: students}, nil
}

// Create adds a course. Teachers always own what they create; admins must
// name the teacher.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (models.Course, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return models.Course{}, err
	}
	var out models.Course
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		people := users.NewRepository(tx)
		teacherID := in.TeacherID
		switch p.Role {
		case models.RoleTeacher:
			t, err := people.TeacherByUserID(ctx, p.UserID)
			if err != nil {
				return err
			}
			if t == nil {
				return apperr.Forbidden("Teacher profile not found")
			}
			teacherID = t.ID
		case models.RoleAdmin:
			if teacherID == "" {
				return apperr.Invalid("teacher_id is required")
			}
			t, err := people.GetTeacher(ctx, teacherID)
			if err != nil {
				return err
			}
			if t == nil {
				return apperr.NotFound("Teacher not found")
			}
		case models.RoleStudent:
		}
		if err := auth.Authorize(p, auth.ActionManageCourse, true); err != nil {
			return err
		}

		now := s.now()
		c := models.Course{
			ID:          uuid.NewString(),
			Code:        in.Code,
			Name:        in.Name,
			Description: in.Description,
			TeacherID:   teacherID,
			Credits:     in.Credits,
			Semester:    in.Semester,
			MaxStudents: in.MaxStudents,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if c.Credits == 0 {
			c.Credits = defaultCredits
		}
		if c.MaxStudents == 0 {
			c.MaxStudents = defaultMaxStudents
		}
		repo := NewRepository(tx)
		if err := repo.CreateCourse(ctx, c); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Wrap(apperr.KindConflict, "Course code already exists", err)
			}
			return err
		}
		created, err := repo.GetCourse(ctx, c.ID)
		if err != nil {
			return err
		}
		out = *created
		return nil
	})
	if err != nil {
		return models.Course{}, err
	}
	slog.InfoContext(ctx, "course created", slog.String("course_id", out.ID), slog.String("code", out.Code))
	return out, nil
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id string, in UpdateInput) (models.Course, error) {
	var out models.Course
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		c, err := s.manageable(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			c.Name = *in.Name
		}
		if in.Description != nil {
			c.Description = *in.Description
		}
		if in.Credits != nil {
			c.Credits = *in.Credits
		}
		if in.Semester != nil {
			c.Semester = *in.Semester
		}
		if in.MaxStudents != nil {
			c.MaxStudents = *in.MaxStudents
		}
		if in.IsActive != nil {
			c.IsActive = *in.IsActive
		}
		c.UpdatedAt = s.now()
		if err := repo.UpdateCourse(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// Delete soft-deletes a course.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.manageable(ctx, tx, p, id); err != nil {
			return err
		}
		return NewRepository(tx).DeactivateCourse(ctx, id, s.now())
	})
}

// manageable loads a course and checks that p may change it.
func (s *Service) manageable(ctx context.Context, q store.DBTX, p auth.Principal, id string) (models.Course, error) {
	c, err := NewRepository(q).GetCourse(ctx, id)
	if err != nil {
		return models.Course{}, err
	}
	if c == nil {
		return models.Course{}, apperr.NotFound("Course not found")
	}
	owns, err := OwnedBy(ctx, q, p, c.TeacherID)
	if err != nil {
		return models.Course{}, err
	}
	if err := auth.Authorize(p, auth.ActionManageCourse, owns); err != nil {
		return models.Course{}, err
	}
	return *c, nil
}

// OwnedBy reports whether p is the teacher with teacherID.
func OwnedBy(ctx context.Context, q store.DBTX, p auth.Principal, teacherID string) (bool, error) {
	if p.Role != models.RoleTeacher {
		return false, nil
	}
	t, err := users.NewRepository(q).TeacherByUserID(ctx, p.UserID)
	if err != nil || t == nil {
		return false, err
	}
	return t.ID == teacherID, nil
}

// Enroll enrolls the calling student. A dropped enrollment is reactivated
// instead of duplicated; created reports which happened.
func (s *Service) Enroll(ctx context.Context, p auth.Principal, courseID string) (e models.Enrollment, created bool, err error) {
	if err := auth.Authorize(p, auth.ActionEnroll, true); err != nil {
		return models.Enrollment{}, false, err
	}
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		student, err := users.NewRepository(tx).StudentByUserID(ctx, p.UserID)
		if err != nil {
			return err
		}
		if student == nil {
			return apperr.NotFound("Student profile not found")
		}
		repo := NewRepository(tx)
		c, err := repo.GetCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.NotFound("Course not found")
		}
		if !c.IsActive {
			return apperr.Invalid("Course is not active")
		}
		existing, err := repo.GetEnrollment(ctx, student.ID, courseID)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsActive {
			return apperr.Conflict("Already enrolled in this course")
		}
		if c.EnrolledStudents >= c.MaxStudents {
			return apperr.Invalid("Course is at full capacity")
		}

		if existing != nil {
			if err := repo.SetEnrollmentActive(ctx, existing.ID, true); err != nil {
				return err
			}
			existing.IsActive = true
			e = *existing
			return nil
		}
		now := s.now()
		e = models.Enrollment{
			ID:             uuid.NewString(),
			StudentID:      student.ID,
			CourseID:       courseID,
			CourseName:     c.Name,
			EnrollmentDate: now,
			IsActive:       true,
			CreatedAt:      now,
		}
		if err := repo.CreateEnrollment(ctx, e); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Wrap(apperr.KindConflict, "Already enrolled in this course", err)
			}
			return err
		}
		created = true
		return nil
	})
	return e, created, err
}

// Unenroll drops the calling student's active enrollment.
func (s *Service) Unenroll(ctx context.Context, p auth.Principal, courseID string) error {
	if err := auth.Authorize(p, auth.ActionEnroll, true); err != nil {
		return err
	}
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		student, err := users.NewRepository(tx).StudentByUserID(ctx, p.UserID)
		if err != nil {
			return err
		}
		if student == nil {
			return apperr.NotFound("Student profile not found")
		}
		repo := NewRepository(tx)
		e, err := repo.GetEnrollment(ctx, student.ID, courseID)
		if err != nil {
			return err
		}
		if e == nil || !e.IsActive {
			return apperr.NotFound("Not enrolled in this course")
		}
		return repo.SetEnrollmentActive(ctx, e.ID, false)
	})
}
